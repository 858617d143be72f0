package detector

import (
	"math"
	"testing"
)

func TestEstimateSimilarity_RecoversTransform(t *testing.T) {
	want := Similarity{
		A:  2 * math.Cos(math.Pi/6),
		B:  2 * math.Sin(math.Pi/6),
		TX: 10,
		TY: -5,
	}

	src := referenceLandmarks[:]
	dst := make([]Point, len(src))
	for i, p := range src {
		dst[i] = want.Apply(p)
	}

	got, err := EstimateSimilarity(src, dst)
	if err != nil {
		t.Fatalf("EstimateSimilarity failed: %v", err)
	}
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"A", got.A, want.A},
		{"B", got.B, want.B},
		{"TX", got.TX, want.TX},
		{"TY", got.TY, want.TY},
	} {
		if math.Abs(c.got-c.want) > 1e-3 {
			t.Errorf("%s: got %.5f, want %.5f", c.name, c.got, c.want)
		}
	}
	if math.Abs(got.Scale()-2) > 1e-3 {
		t.Errorf("scale %.5f, want 2", got.Scale())
	}
}

func TestEstimateSimilarity_Errors(t *testing.T) {
	if _, err := EstimateSimilarity([]Point{{1, 1}}, []Point{{2, 2}}); err == nil {
		t.Error("expected error for a single pair")
	}
	same := []Point{{5, 5}, {5, 5}, {5, 5}}
	if _, err := EstimateSimilarity(same, referenceLandmarks[:3]); err == nil {
		t.Error("expected error for coincident source points")
	}
}

func TestNewAligner_ScalesReference(t *testing.T) {
	a := NewAligner(224)
	if a.Size() != 224 {
		t.Fatalf("size %d, want 224", a.Size())
	}
	if math.Abs(float64(a.dst[0].X)-2*38.2946) > 1e-3 {
		t.Errorf("left eye x %.4f, want %.4f", a.dst[0].X, 2*38.2946)
	}
}
