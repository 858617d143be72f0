package gaze

import (
	"fmt"
	"math"

	"github.com/dudu/interviewlens/internal/log"
)

// MinSamples is the minimum number of samples the fitter accepts
const MinSamples = 4

// Sample is one calibration capture: the gaze angles measured while the
// user fixated a known on-screen target.
type Sample struct {
	Angles
	TargetX int `json:"target_x"`
	TargetY int `json:"target_y"`
}

// Target returns the sample's target as a point
func (s Sample) Target() Point {
	return Point{X: float64(s.TargetX), Y: float64(s.TargetY)}
}

// FitOptions configures the calibration fitter
type FitOptions struct {
	AverageByTarget bool    `yaml:"average_by_target"` // Collapse samples sharing a target into their mean angle
	RansacThreshold float64 `yaml:"ransac_threshold"`  // Reprojection threshold in pixels for the robust estimators
}

// DefaultFitOptions returns the options used by the calibrate command
func DefaultFitOptions() FitOptions {
	return FitOptions{
		AverageByTarget: false,
		RansacThreshold: 5.0,
	}
}

// Candidate records the outcome of one fitting method
type Candidate struct {
	Method    string
	MeanError float64
	Err       error
}

// FitResult is the selected model and the outcome of every method attempted
type FitResult struct {
	Model       *Model
	MeanError   float64
	SampleCount int
	Candidates  []Candidate
}

type fitMethod struct {
	name string
	fit  func(samples []Sample) (*Model, error)
}

// Fitter selects the calibration model with the lowest in-sample
// reprojection error. In-sample scoring can favour overfit polynomial and
// RBF models; selection keeps that rule so stored profiles stay comparable.
type Fitter struct {
	opts    FitOptions
	methods []fitMethod
}

// NewFitter creates a fitter that attempts, in order: homography, affine,
// polynomial degree 2 and 3, and RBF with each kernel.
func NewFitter(opts FitOptions) *Fitter {
	if opts.RansacThreshold <= 0 {
		opts.RansacThreshold = DefaultFitOptions().RansacThreshold
	}
	f := &Fitter{opts: opts}
	f.methods = []fitMethod{
		{MethodHomography, func(s []Sample) (*Model, error) { return fitHomography(s, opts.RansacThreshold) }},
		{MethodAffine, func(s []Sample) (*Model, error) { return fitAffine(s, opts.RansacThreshold) }},
		{MethodPoly2, func(s []Sample) (*Model, error) { return fitPolynomial(s, 2) }},
		{MethodPoly3, func(s []Sample) (*Model, error) { return fitPolynomial(s, 3) }},
		{MethodRBFMultiquadric, func(s []Sample) (*Model, error) { return fitRadialBasis(s, KernelMultiquadric) }},
		{MethodRBFThinPlate, func(s []Sample) (*Model, error) { return fitRadialBasis(s, KernelThinPlate) }},
		{MethodRBFGaussian, func(s []Sample) (*Model, error) { return fitRadialBasis(s, KernelGaussian) }},
	}
	return f
}

// Fit fits every method and returns the one with the lowest mean error.
// Ties keep the first method attempted.
func (f *Fitter) Fit(samples []Sample) (*FitResult, error) {
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, len(samples), MinSamples)
	}

	if f.opts.AverageByTarget {
		samples = AverageByTarget(samples)
		if len(samples) < MinSamples {
			return nil, fmt.Errorf("%w: %d distinct targets, need %d", ErrInsufficientSamples, len(samples), MinSamples)
		}
	}

	result := &FitResult{SampleCount: len(samples), MeanError: math.Inf(1)}

	for _, m := range f.methods {
		cand := Candidate{Method: m.name, MeanError: math.Inf(1)}

		model, err := m.fit(samples)
		if err == nil {
			model.Method = m.name
			cand.MeanError, err = MeanError(model, samples)
		}
		cand.Err = err
		result.Candidates = append(result.Candidates, cand)

		if err != nil {
			log.Debug(log.Fields{"method": m.name, "error": err.Error()}, "calibration method failed")
			continue
		}
		log.Debug(log.Fields{"method": m.name, "mean_error": cand.MeanError}, "calibration method fitted")

		if cand.MeanError < result.MeanError {
			result.Model = model
			result.MeanError = cand.MeanError
		}
	}

	if result.Model == nil {
		return result, fmt.Errorf("%w: all %d methods failed", ErrCalibrationFailed, len(f.methods))
	}

	log.Info(log.Fields{
		"method":     result.Model.Method,
		"mean_error": result.MeanError,
		"samples":    result.SampleCount,
	}, "calibration model selected")

	return result, nil
}

// MeanError is the mean Euclidean distance between the model's prediction
// and the target over the given samples.
func MeanError(m *Model, samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	var total float64
	for _, s := range samples {
		p, err := m.Apply(s.Angles)
		if err != nil {
			return 0, err
		}
		t := s.Target()
		total += math.Hypot(p.X-t.X, p.Y-t.Y)
	}
	return total / float64(len(samples)), nil
}

// AverageByTarget returns one sample per distinct target carrying the mean
// angles of all samples for that target, in first-seen target order.
func AverageByTarget(samples []Sample) []Sample {
	type acc struct {
		yaw, pitch float64
		n          int
	}
	type key struct{ x, y int }

	var order []key
	sums := make(map[key]*acc)
	for _, s := range samples {
		k := key{s.TargetX, s.TargetY}
		a, ok := sums[k]
		if !ok {
			a = &acc{}
			sums[k] = a
			order = append(order, k)
		}
		a.yaw += s.Yaw
		a.pitch += s.Pitch
		a.n++
	}

	out := make([]Sample, 0, len(order))
	for _, k := range order {
		a := sums[k]
		out = append(out, Sample{
			Angles:  Angles{Yaw: a.yaw / float64(a.n), Pitch: a.pitch / float64(a.n)},
			TargetX: k.x,
			TargetY: k.y,
		})
	}
	return out
}
