package session

import (
	"time"

	"github.com/dudu/interviewlens/internal/emotion"
)

// blinks per minute treated as maximally tense
const tenseBlinkRate = 30.0

// Metrics accumulates the tension inputs of analyzed frames: blinks, eye
// closure and lip compression
type Metrics struct {
	blinkRatio float64

	closed       bool
	blinks       int
	eyeFrames    int
	closedFrames int

	lipSum    float64
	lipFrames int

	first, last time.Duration
	seen        bool
}

// NewMetrics creates an accumulator; eyes below blinkRatio count as closed
func NewMetrics(blinkRatio float64) *Metrics {
	return &Metrics{blinkRatio: blinkRatio}
}

// Observe records the signals of one analyzed frame
func (m *Metrics) Observe(s emotion.Signals, ts time.Duration) {
	if !m.seen {
		m.first = ts
		m.seen = true
	}
	m.last = ts

	if s.EyeOpenRatio != nil {
		m.eyeFrames++
		closed := *s.EyeOpenRatio < m.blinkRatio
		if closed {
			m.closedFrames++
			if !m.closed {
				m.blinks++
			}
		}
		m.closed = closed
	}

	if s.LipPressScore != nil {
		m.lipSum += *s.LipPressScore
		m.lipFrames++
	}
}

// Blinks returns the number of open-to-closed transitions
func (m *Metrics) Blinks() int {
	return m.blinks
}

// BlinkRate returns blinks per minute over the observed span, 0 under a second
func (m *Metrics) BlinkRate() float64 {
	span := m.last - m.first
	if span < time.Second {
		return 0
	}
	return float64(m.blinks) / span.Minutes()
}

// Closure returns the fraction of frames with closed eyes
func (m *Metrics) Closure() float64 {
	if m.eyeFrames == 0 {
		return 0
	}
	return float64(m.closedFrames) / float64(m.eyeFrames)
}

// LipPress returns the mean lip press score
func (m *Metrics) LipPress() float64 {
	if m.lipFrames == 0 {
		return 0
	}
	return m.lipSum / float64(m.lipFrames)
}

// Tension scores nervousness from 0 to 100
func (m *Metrics) Tension() float64 {
	return 100 * (0.4*m.LipPress() + 0.3*m.Closure() + 0.3*min(1, m.BlinkRate()/tenseBlinkRate))
}

// Confidence combines gaze centring, the positive/neutral emotion share and
// the absence of tension into a 0 to 100 score
func Confidence(centerRatio, positiveShare, tension float64) float64 {
	return 100 * (0.4*centerRatio/100 + 0.35*positiveShare + 0.25*(1-tension/100))
}

// Reset clears all accumulated values
func (m *Metrics) Reset() {
	*m = Metrics{blinkRatio: m.blinkRatio}
}
