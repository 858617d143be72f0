package gaze

import (
	"errors"
	"math"
	"testing"
)

// affineSamples returns samples that satisfy target = A*angle + b exactly
func affineSamples(angles []Angles) []Sample {
	samples := make([]Sample, len(angles))
	for i, a := range angles {
		samples[i] = Sample{
			Angles:  a,
			TargetX: int(math.Round(1000*a.Yaw + 100*a.Pitch + 960)),
			TargetY: int(math.Round(-50*a.Yaw + 800*a.Pitch + 540)),
		}
	}
	return samples
}

func TestFit_InsufficientSamples(t *testing.T) {
	samples := affineSamples([]Angles{{-0.2, -0.1}, {0.2, -0.1}, {0.2, 0.1}})

	_, err := NewFitter(DefaultFitOptions()).Fit(samples)
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestFit_InsufficientDistinctTargets(t *testing.T) {
	samples := affineSamples([]Angles{{-0.2, -0.1}, {-0.2, -0.1}, {0.2, 0.1}, {0.2, 0.1}, {0.2, 0.1}})

	_, err := NewFitter(FitOptions{AverageByTarget: true}).Fit(samples)
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestFit_AffineRoundTrip(t *testing.T) {
	samples := affineSamples([]Angles{{-0.2, -0.1}, {0.2, -0.1}, {0.1, 0.2}, {-0.3, 0.2}})

	res, err := NewFitter(DefaultFitOptions()).Fit(samples)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if res.MeanError >= 1.0 {
		t.Fatalf("mean error %.4f px (method %s), want < 1", res.MeanError, res.Model.Method)
	}
	if len(res.Candidates) != 7 {
		t.Errorf("expected 7 candidates, got %d", len(res.Candidates))
	}

	mapper := NewMapper(res.Model, Size{Width: 1920, Height: 1080}, 0)
	for _, s := range samples {
		r := mapper.MapAngles(s.Angles)
		if r.Outcome != OutcomeModel {
			t.Fatalf("expected model outcome, got %v (%v)", r.Outcome, r.Err)
		}
		if d := math.Hypot(r.Point.X-float64(s.TargetX), r.Point.Y-float64(s.TargetY)); d > 1 {
			t.Errorf("target (%d,%d) reproduced as (%.2f,%.2f), %.2f px off",
				s.TargetX, s.TargetY, r.Point.X, r.Point.Y, d)
		}
	}
}

func TestFit_AllMethodsFail(t *testing.T) {
	boom := errors.New("singular")
	f := &Fitter{methods: []fitMethod{
		{"a", func([]Sample) (*Model, error) { return nil, boom }},
		{"b", func([]Sample) (*Model, error) { return &Model{Kind: KindProjective, Matrix: make([]float64, 9)}, nil }},
	}}

	res, err := f.Fit(affineSamples([]Angles{{-0.2, -0.1}, {0.2, -0.1}, {0.1, 0.2}, {-0.3, 0.2}}))
	if !errors.Is(err, ErrCalibrationFailed) {
		t.Fatalf("expected ErrCalibrationFailed, got %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	if !errors.Is(res.Candidates[0].Err, boom) {
		t.Errorf("first candidate error = %v", res.Candidates[0].Err)
	}
	if !errors.Is(res.Candidates[1].Err, ErrTransformEvaluation) {
		t.Errorf("second candidate error = %v", res.Candidates[1].Err)
	}
}

func TestFit_TieKeepsFirstMethod(t *testing.T) {
	exact := func([]Sample) (*Model, error) {
		return &Model{Kind: KindAffine, Matrix: []float64{1000, 100, 960, -50, 800, 540}}, nil
	}
	f := &Fitter{methods: []fitMethod{{"first", exact}, {"second", exact}}}

	res, err := f.Fit(affineSamples([]Angles{{-0.2, -0.1}, {0.2, -0.1}, {0.1, 0.2}, {-0.3, 0.2}}))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if res.Model.Method != "first" {
		t.Errorf("selected %q, want first", res.Model.Method)
	}
}

func TestFitPolynomial_QuadraticExact(t *testing.T) {
	var samples []Sample
	for _, yaw := range []float64{-0.3, -0.1, 0.1, 0.3} {
		for _, pitch := range []float64{-0.2, 0, 0.2} {
			samples = append(samples, Sample{
				Angles:  Angles{Yaw: yaw, Pitch: pitch},
				TargetX: int(math.Round(960 + 1000*yaw + 2000*yaw*yaw)),
				TargetY: int(math.Round(540 + 900*pitch - 1000*yaw*pitch)),
			})
		}
	}

	m, err := fitPolynomial(samples, 2)
	if err != nil {
		t.Fatalf("fitPolynomial failed: %v", err)
	}
	e, err := MeanError(m, samples)
	if err != nil {
		t.Fatalf("MeanError failed: %v", err)
	}
	if e > 1e-6 {
		t.Errorf("mean error %g, want exact fit", e)
	}
}

func TestFitRadialBasis_Interpolates(t *testing.T) {
	samples := []Sample{
		{Angles{-0.3, -0.2}, 100, 100},
		{Angles{0.3, -0.2}, 1800, 120},
		{Angles{0.0, 0.0}, 950, 560},
		{Angles{-0.3, 0.2}, 140, 1000},
		{Angles{0.3, 0.2}, 1750, 980},
	}

	for _, k := range []Kernel{KernelMultiquadric, KernelThinPlate, KernelGaussian} {
		m, err := fitRadialBasis(samples, k)
		if err != nil {
			t.Fatalf("%s: fit failed: %v", k, err)
		}
		e, err := MeanError(m, samples)
		if err != nil {
			t.Fatalf("%s: MeanError failed: %v", k, err)
		}
		if e > 1e-6 {
			t.Errorf("%s: mean error %g, want exact interpolation", k, e)
		}
	}
}

func TestFitRadialBasis_CoincidentSamples(t *testing.T) {
	samples := []Sample{
		{Angles{0.1, 0.1}, 100, 100},
		{Angles{0.1, 0.1}, 100, 100},
		{Angles{0.1, 0.1}, 100, 100},
		{Angles{0.1, 0.1}, 100, 100},
	}
	if _, err := fitRadialBasis(samples, KernelMultiquadric); err == nil {
		t.Error("expected error for coincident samples")
	}
}

func TestAverageByTarget(t *testing.T) {
	samples := []Sample{
		{Angles{0.1, 0.2}, 10, 10},
		{Angles{0.3, 0.4}, 10, 10},
		{Angles{-0.1, 0}, 50, 10},
	}

	got := AverageByTarget(samples)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if math.Abs(got[0].Yaw-0.2) > 1e-12 || math.Abs(got[0].Pitch-0.3) > 1e-12 {
		t.Errorf("averaged angles = %+v", got[0].Angles)
	}
	if got[1].TargetX != 50 {
		t.Errorf("expected first-seen order, got %+v", got)
	}
}
