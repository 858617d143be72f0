package session

import (
	"math"
	"testing"
	"time"

	"github.com/dudu/interviewlens/internal/emotion"
)

func TestMetrics_Blinks(t *testing.T) {
	m := NewMetrics(0.15)

	// open, closed, closed, open, closed, open over one minute
	ratios := []float64{0.3, 0.1, 0.1, 0.3, 0.05, 0.3}
	for i, r := range ratios {
		ts := time.Duration(i) * 12 * time.Second
		m.Observe(emotion.Signals{EyeOpenRatio: emotion.Float(r)}, ts)
	}

	if m.Blinks() != 2 {
		t.Errorf("blinks %d, want 2", m.Blinks())
	}
	if got := m.BlinkRate(); math.Abs(got-2) > 1e-9 {
		t.Errorf("blink rate %.3f/min, want 2", got)
	}
	if got := m.Closure(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("closure %.3f, want 0.5", got)
	}
}

func TestMetrics_Tension(t *testing.T) {
	m := NewMetrics(0.15)
	if m.Tension() != 0 {
		t.Fatalf("empty tension %v, want 0", m.Tension())
	}

	for i := 0; i < 4; i++ {
		m.Observe(emotion.Signals{
			EyeOpenRatio:  emotion.Float(0.3),
			LipPressScore: emotion.Float(0.5),
		}, time.Duration(i)*time.Second)
	}
	// lip press 0.5, no closure, no blinks
	if got := m.Tension(); math.Abs(got-20) > 1e-9 {
		t.Errorf("tension %.3f, want 20", got)
	}

	m.Reset()
	if m.LipPress() != 0 || m.Blinks() != 0 {
		t.Error("reset left state behind")
	}
}

func TestMetrics_NilSignalsIgnored(t *testing.T) {
	m := NewMetrics(0.15)
	m.Observe(emotion.Signals{}, 0)
	m.Observe(emotion.Signals{}, 2*time.Second)
	if m.Closure() != 0 || m.LipPress() != 0 || m.BlinkRate() != 0 {
		t.Errorf("nil signals produced values: closure %v lip %v rate %v", m.Closure(), m.LipPress(), m.BlinkRate())
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		center, positive, tension float64
		want                      float64
	}{
		{100, 1, 0, 100},
		{0, 0, 100, 0},
		{50, 0.5, 40, 20 + 17.5 + 15},
	}
	for _, tt := range tests {
		if got := Confidence(tt.center, tt.positive, tt.tension); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Confidence(%v, %v, %v) = %v, want %v", tt.center, tt.positive, tt.tension, got, tt.want)
		}
	}
}
