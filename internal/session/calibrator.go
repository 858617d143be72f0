package session

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/provider"
)

// DefaultMargin keeps calibration targets away from the window edges
const DefaultMargin = 0.1

// GridTargets returns n x n targets spread over the window, row by row,
// inset by margin (a fraction of each dimension) on every side
func GridTargets(window gaze.Size, n int, margin float64) []image.Point {
	if n < 2 {
		return []image.Point{{X: window.Width / 2, Y: window.Height / 2}}
	}
	x0, x1 := margin*float64(window.Width), (1-margin)*float64(window.Width-1)
	y0, y1 := margin*float64(window.Height), (1-margin)*float64(window.Height-1)

	targets := make([]image.Point, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			fx := float64(c) / float64(n-1)
			fy := float64(r) / float64(n-1)
			targets = append(targets, image.Point{
				X: int(math.Round(x0 + fx*(x1-x0))),
				Y: int(math.Round(y0 + fy*(y1-y0))),
			})
		}
	}
	return targets
}

// Calibrator walks the user through a target grid, capturing several gaze
// samples per target, then fits the mapping model
type Calibrator struct {
	provider  provider.Provider
	window    gaze.Size
	targets   []image.Point
	perTarget int
	current   int
	captured  int
	samples   []gaze.Sample
}

// NewCalibrator creates a calibrator over a grid x grid target layout. The
// provider stays owned by the caller.
func NewCalibrator(p provider.Provider, window gaze.Size, grid, perTarget int) *Calibrator {
	if perTarget < 1 {
		perTarget = 1
	}
	return &Calibrator{
		provider:  p,
		window:    window,
		targets:   GridTargets(window, grid, DefaultMargin),
		perTarget: perTarget,
	}
}

// Targets returns every target in display order
func (c *Calibrator) Targets() []image.Point {
	return c.targets
}

// Current returns the target the user should look at, false once done
func (c *Calibrator) Current() (image.Point, bool) {
	if c.Done() {
		return image.Point{}, false
	}
	return c.targets[c.current], true
}

// Progress returns the target index and captures taken for it
func (c *Calibrator) Progress() (target, captured int) {
	return c.current, c.captured
}

// Done reports whether every target has its samples
func (c *Calibrator) Done() bool {
	return c.current >= len(c.targets)
}

// Record stores a gaze reading for the current target
func (c *Calibrator) Record(v r3.Vector) (done bool) {
	target, ok := c.Current()
	if !ok {
		return true
	}
	c.samples = append(c.samples, gaze.Sample{
		Angles:  gaze.ToAngles(v),
		TargetX: target.X,
		TargetY: target.Y,
	})
	c.captured++
	if c.captured >= c.perTarget {
		c.current++
		c.captured = 0
	}
	return c.Done()
}

// CaptureFrame detects the face in frame and records its gaze for the
// current target. Failures are returned so the user can retry.
func (c *Calibrator) CaptureFrame(frame gocv.Mat) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = c.Done(), fmt.Errorf("%w: provider panic: %v", provider.ErrGazeEstimation, r)
		}
	}()

	if c.Done() {
		return true, nil
	}

	face, err := c.provider.Detect(frame)
	if err != nil {
		return false, err
	}
	if face == nil {
		return false, provider.ErrNoFaceDetected
	}

	v, err := c.provider.EstimateGaze(frame, face)
	if err != nil {
		return false, err
	}
	return c.Record(v), nil
}

// Samples returns the samples captured so far
func (c *Calibrator) Samples() []gaze.Sample {
	out := make([]gaze.Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Fit selects a mapping model from the captured samples and wraps it in a
// profile ready to be stored
func (c *Calibrator) Fit(opts gaze.FitOptions, screen gaze.Size) (*gaze.Profile, error) {
	samples := c.Samples()
	res, err := gaze.NewFitter(opts).Fit(samples)
	if err != nil {
		return nil, err
	}

	return gaze.NewProfile(res, samples, screen, c.window, len(c.targets), opts), nil
}
