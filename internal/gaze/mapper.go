package gaze

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/dudu/interviewlens/internal/log"
)

// DefaultScale is the default projection scale in pixels per radian
const DefaultScale = 700.0

// Outcome tells whether a mapped point came from the calibration model
type Outcome int

const (
	OutcomeModel    Outcome = iota // Calibration model evaluated cleanly
	OutcomeFallback                // Default projection used for this frame
)

func (o Outcome) String() string {
	if o == OutcomeModel {
		return "model"
	}
	return "fallback"
}

// Result is a mapped, clamped screen point. Err is set when a loaded model
// failed to evaluate and the default projection was used instead.
type Result struct {
	Point   Point
	Outcome Outcome
	Err     error
}

// Mapper converts gaze readings to window coordinates
type Mapper struct {
	model     *Model
	window    Size
	scale     float64
	fallbacks int
}

// NewMapper creates a mapper. A nil model maps everything through the
// default projection; scale <= 0 selects DefaultScale.
func NewMapper(model *Model, window Size, scale float64) *Mapper {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Mapper{model: model, window: window, scale: scale}
}

// Model returns the loaded calibration model, or nil
func (m *Mapper) Model() *Model {
	return m.model
}

// Fallbacks returns how many frames fell back after a model failure
func (m *Mapper) Fallbacks() int {
	return m.fallbacks
}

// Map converts a gaze vector to a window coordinate
func (m *Mapper) Map(v r3.Vector) Result {
	return m.MapAngles(ToAngles(v))
}

// MapAngles converts gaze angles to a window coordinate. It never fails:
// model errors degrade to the default projection for this frame only.
func (m *Mapper) MapAngles(a Angles) Result {
	if m.model == nil {
		return Result{Point: m.clamp(DefaultProjection(a, m.window, m.scale)), Outcome: OutcomeFallback}
	}

	p, err := m.model.Apply(a)
	if err != nil {
		m.fallbacks++
		log.Debug(log.Fields{"method": m.model.Method, "error": err.Error()}, "gaze mapping fell back to default projection")
		return Result{
			Point:   m.clamp(DefaultProjection(a, m.window, m.scale)),
			Outcome: OutcomeFallback,
			Err:     err,
		}
	}
	return Result{Point: m.clamp(p), Outcome: OutcomeModel}
}

// DefaultProjection maps angles around the window centre with a fixed scale
func DefaultProjection(a Angles, window Size, scale float64) Point {
	return Point{
		X: math.Tan(a.Yaw)*scale + float64(window.Width)/2,
		Y: math.Tan(a.Pitch)*scale + float64(window.Height)/2,
	}
}

func (m *Mapper) clamp(p Point) Point {
	x, y := p.X, p.Y
	if math.IsNaN(x) {
		x = float64(m.window.Width) / 2
	}
	if math.IsNaN(y) {
		y = float64(m.window.Height) / 2
	}
	return Point{
		X: clamp(x, 0, float64(m.window.Width-1)),
		Y: clamp(y, 0, float64(m.window.Height-1)),
	}
}
