package gaze

import (
	"math/rand"
	"testing"
)

func TestGrid_FocusClassification(t *testing.T) {
	window := Size{Width: 1280, Height: 720}
	rng := rand.New(rand.NewSource(7))

	t.Run("central region", func(t *testing.T) {
		g := NewGrid(160, 90, window)
		for i := 0; i < 1000; i++ {
			g.Record(Point{
				X: 0.3*1280 + rng.Float64()*0.4*1280,
				Y: 0.3*720 + rng.Float64()*0.4*720,
			})
		}
		if ratio := g.CenterRatio(); ratio <= 60 {
			t.Errorf("center ratio = %.1f, want > 60", ratio)
		}
		if got := g.FocusLabel(); got != FocusConcentrated {
			t.Errorf("focus = %q, want %q", got, FocusConcentrated)
		}
	})

	t.Run("full window", func(t *testing.T) {
		g := NewGrid(160, 90, window)
		for i := 0; i < 1000; i++ {
			g.Record(Point{X: rng.Float64() * 1279, Y: rng.Float64() * 719})
		}
		if ratio := g.CenterRatio(); ratio < 20 || ratio > 30 {
			t.Errorf("center ratio = %.1f, want 25 ± 5", ratio)
		}
		if got := g.FocusLabel(); got != FocusScattered {
			t.Errorf("focus = %q, want %q", got, FocusScattered)
		}
	})
}

func TestGrid_EmptyAndReset(t *testing.T) {
	g := NewGrid(16, 9, Size{Width: 160, Height: 90})
	if g.CenterRatio() != 0 {
		t.Errorf("empty grid center ratio = %v, want 0", g.CenterRatio())
	}

	g.Record(Point{X: 80, Y: 45})
	g.Record(Point{X: 80, Y: 45})
	if g.Total() != 2 || g.Count(8, 4) != 2 {
		t.Fatalf("total=%d count=%d", g.Total(), g.Count(8, 4))
	}

	g.Reset()
	if g.Total() != 0 || g.Count(8, 4) != 0 {
		t.Errorf("reset left total=%d count=%d", g.Total(), g.Count(8, 4))
	}
}

func TestGrid_ClampsOutOfRange(t *testing.T) {
	g := NewGrid(16, 9, Size{Width: 160, Height: 90})
	g.Record(Point{X: -5, Y: 500})
	if g.Count(0, 8) != 1 {
		t.Errorf("out-of-range point not clamped into corner cell")
	}
}

func TestFocusBand(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{60.1, FocusConcentrated},
		{60, FocusDistributed},
		{30.1, FocusDistributed},
		{30, FocusScattered},
		{0, FocusScattered},
	}
	for _, tt := range tests {
		if got := FocusBand(tt.ratio); got != tt.want {
			t.Errorf("FocusBand(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestGrid_Hotspots(t *testing.T) {
	g := NewGrid(4, 4, Size{Width: 40, Height: 40})
	for i := 0; i < 3; i++ {
		g.Record(Point{X: 5, Y: 5})
	}
	g.Record(Point{X: 35, Y: 35})

	spots := g.Hotspots(5)
	if len(spots) != 2 {
		t.Fatalf("expected 2 hotspots, got %d", len(spots))
	}
	if spots[0] != (Cell{Col: 0, Row: 0, Count: 3}) {
		t.Errorf("busiest = %+v", spots[0])
	}

	in := g.Intensity()
	if in[0] != 1 || in[15] < 0.33 || in[15] > 0.34 {
		t.Errorf("intensity = %v", in)
	}
}
