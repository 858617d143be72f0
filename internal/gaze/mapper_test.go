package gaze

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

var testWindow = Size{Width: 1280, Height: 720}

func TestMapper_NoModelUsesDefaultProjection(t *testing.T) {
	m := NewMapper(nil, testWindow, 650)

	r := m.MapAngles(Angles{Yaw: 0.1, Pitch: -0.05})
	want := Point{X: math.Tan(0.1)*650 + 640, Y: math.Tan(-0.05)*650 + 360}

	if r.Outcome != OutcomeFallback {
		t.Errorf("expected fallback outcome without a model")
	}
	if r.Err != nil {
		t.Errorf("expected no error without a model, got %v", r.Err)
	}
	if math.Abs(r.Point.X-want.X) > 1e-9 || math.Abs(r.Point.Y-want.Y) > 1e-9 {
		t.Errorf("got %+v, want %+v", r.Point, want)
	}
}

func TestMapper_DefaultScale(t *testing.T) {
	m := NewMapper(nil, testWindow, 0)
	r := m.MapAngles(Angles{Yaw: 0.1})
	if want := math.Tan(0.1)*DefaultScale + 640; math.Abs(r.Point.X-want) > 1e-9 {
		t.Errorf("x = %v, want %v", r.Point.X, want)
	}
}

func TestMapper_ClampsToWindow(t *testing.T) {
	m := NewMapper(&Model{Kind: KindAffine, Matrix: []float64{1e5, 0, 0, 0, 1e5, 0}}, testWindow, 0)

	tests := []struct {
		a    Angles
		want Point
	}{
		{Angles{Yaw: 1, Pitch: 1}, Point{X: 1279, Y: 719}},
		{Angles{Yaw: -1, Pitch: -1}, Point{X: 0, Y: 0}},
	}
	for _, tt := range tests {
		r := m.MapAngles(tt.a)
		if r.Point != tt.want {
			t.Errorf("MapAngles(%+v) = %+v, want %+v", tt.a, r.Point, tt.want)
		}
	}
}

func TestMapper_CorruptedModelsFallBack(t *testing.T) {
	a := Angles{Yaw: 0.12, Pitch: 0.08}
	want := DefaultProjection(a, testWindow, 700)

	models := []struct {
		name  string
		model *Model
	}{
		{"zero homography", &Model{Kind: KindProjective, Matrix: make([]float64, 9)}},
		{"short homography", &Model{Kind: KindProjective, Matrix: []float64{1, 2}}},
		{"singular affine", &Model{Kind: KindAffine, Matrix: []float64{1, 2, 0, 2, 4, 0}}},
		{"polynomial length", &Model{Kind: KindPolynomial, Degree: 3, CoeffsX: []float64{1}, CoeffsY: []float64{1}}},
		{"rbf kernel panic", &Model{Kind: KindRadialBasis, Centers: []Angles{{0, 0}},
			WeightsX: []float64{1}, WeightsY: []float64{1}, Kernel: "bogus", Epsilon: 1}},
		{"unknown kind", &Model{Kind: "spline"}},
	}

	for _, tt := range models {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(tt.model, testWindow, 700)
			r := m.MapAngles(a)

			if r.Outcome != OutcomeFallback {
				t.Fatalf("expected fallback outcome")
			}
			if !errors.Is(r.Err, ErrTransformEvaluation) {
				t.Errorf("expected ErrTransformEvaluation, got %v", r.Err)
			}
			if r.Point != want {
				t.Errorf("got %+v, want default projection %+v", r.Point, want)
			}
			if m.Fallbacks() != 1 {
				t.Errorf("fallbacks = %d, want 1", m.Fallbacks())
			}
		})
	}
}

func TestMapper_HomographyPerspectiveDivide(t *testing.T) {
	m := NewMapper(&Model{Kind: KindProjective, Matrix: []float64{
		200, 0, 100,
		0, 200, 50,
		0, 0, 0.5,
	}}, testWindow, 0)

	r := m.MapAngles(Angles{Yaw: 0.5, Pitch: 0.25})
	if r.Outcome != OutcomeModel {
		t.Fatalf("unexpected fallback: %v", r.Err)
	}
	if want := (Point{X: 400, Y: 200}); r.Point != want {
		t.Errorf("got %+v, want %+v", r.Point, want)
	}
}

func TestMapper_MapVector(t *testing.T) {
	m := NewMapper(nil, testWindow, 0)
	r := m.Map(r3.Vector{X: 0, Y: 0, Z: -1})
	if r.Point != (Point{X: 640, Y: 360}) {
		t.Errorf("forward gaze mapped to %+v, want window centre", r.Point)
	}
}
