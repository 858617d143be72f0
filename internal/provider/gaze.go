package provider

import (
	"math"

	pigo "github.com/esimov/pigo/core"
	"github.com/golang/geo/r3"

	"github.com/dudu/interviewlens/internal/detector"
)

// perturbs is the number of jittered runs pigo averages per pupil
const perturbs = 63

// GazeConfig weighs the eye and head contributions to the gaze direction
type GazeConfig struct {
	// EyeGain converts a pupil offset (in half eye widths) to a tangent
	EyeGain float64 `yaml:"eye_gain" validate:"gt=0"`
	// HeadGain converts the nose offset (in inter-ocular distances) to a tangent
	HeadGain float64 `yaml:"head_gain" validate:"gte=0"`
}

// DefaultGazeConfig returns gains that keep a full-screen sweep within
// roughly ±30 degrees
func DefaultGazeConfig() GazeConfig {
	return GazeConfig{
		EyeGain:  0.6,
		HeadGain: 1.0,
	}
}

// Eye is an eye outline with its localized pupil
type Eye struct {
	Center detector.Point
	Width  float32
	Height float32
	Pupil  detector.Point
}

// NewEye measures an eye outline
func NewEye(outline []detector.Point) Eye {
	var e Eye
	if len(outline) == 0 {
		return e
	}
	minX, minY := outline[0].X, outline[0].Y
	maxX, maxY := minX, minY
	for _, p := range outline[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	e.Center = detector.Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	e.Width = maxX - minX
	e.Height = maxY - minY
	e.Pupil = e.Center
	return e
}

// Hint seeds the pupil search at the eye centre, sized to the eye width
func (e Eye) Hint() pigo.Puploc {
	return pigo.Puploc{
		Row:      int(math.Round(float64(e.Center.Y))),
		Col:      int(math.Round(float64(e.Center.X))),
		Scale:    e.Width * 1.2,
		Perturbs: perturbs,
	}
}

// Offset returns the pupil displacement from the eye centre in half widths
func (e Eye) Offset() (float64, float64) {
	half := float64(e.Width) / 2
	return float64(e.Pupil.X-e.Center.X) / half, float64(e.Pupil.Y-e.Center.Y) / half
}

// Vector combines both eyes with the head pose proxied by the nose tip
// position between the eyes and the mouth
func (c GazeConfig) Vector(eyes [2]Eye, l *detector.Landmarks106) (r3.Vector, bool) {
	var ex, ey float64
	for _, e := range eyes {
		if e.Width < 1 {
			return r3.Vector{}, false
		}
		dx, dy := e.Offset()
		ex += dx / 2
		ey += dy / 2
	}

	interocular := float64(eyes[0].Center.Dist(eyes[1].Center))
	if interocular < 1 {
		return r3.Vector{}, false
	}
	eyeMid := detector.Point{
		X: (eyes[0].Center.X + eyes[1].Center.X) / 2,
		Y: (eyes[0].Center.Y + eyes[1].Center.Y) / 2,
	}
	five := l.FivePoint()
	mouthMid := detector.Point{
		X: (five.LeftMouth.X + five.RightMouth.X) / 2,
		Y: (five.LeftMouth.Y + five.RightMouth.Y) / 2,
	}
	nose := l.Nose()

	// a frontal nose sits on the eye-mouth midline, halfway down
	hx := float64(nose.X-(eyeMid.X+mouthMid.X)/2) / interocular
	hy := float64(nose.Y-(eyeMid.Y+mouthMid.Y)/2) / interocular

	tx := c.EyeGain*ex + c.HeadGain*hx
	ty := c.EyeGain*ey + c.HeadGain*hy
	if math.IsNaN(tx) || math.IsNaN(ty) {
		return r3.Vector{}, false
	}

	return r3.Vector{X: -tx, Y: -ty, Z: -1}.Normalize(), true
}
