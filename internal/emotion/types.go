// Package emotion turns per-frame classifier output into stable emotion
// readings: quality gating, rule-based probability correction, temporal
// smoothing and label stabilization.
package emotion

import "strings"

// Class is one of the seven emotion classes
type Class int

const (
	Anger Class = iota
	Disgust
	Fear
	Happy
	Neutral
	Sad
	Surprise
)

// NumClasses is the size of a probability vector
const NumClasses = 7

var classNames = [NumClasses]string{"anger", "disgust", "fear", "happy", "neutral", "sad", "surprise"}

// Classes lists every class in vector order
var Classes = []Class{Anger, Disgust, Fear, Happy, Neutral, Sad, Surprise}

func (c Class) String() string {
	if c < 0 || int(c) >= NumClasses {
		return "unknown"
	}
	return classNames[c]
}

// ParseClass resolves a class name, accepting the label spellings common
// to FER-style models (angry, happiness, sadness, surprised, ...).
func ParseClass(name string) (Class, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anger", "angry":
		return Anger, true
	case "disgust", "disgusted":
		return Disgust, true
	case "fear", "fearful", "scared":
		return Fear, true
	case "happy", "happiness":
		return Happy, true
	case "neutral":
		return Neutral, true
	case "sad", "sadness":
		return Sad, true
	case "surprise", "surprised":
		return Surprise, true
	}
	return 0, false
}

// Vector is a probability distribution over the seven classes
type Vector [NumClasses]float64

// Uniform returns the uniform distribution
func Uniform() Vector {
	var v Vector
	for i := range v {
		v[i] = 1.0 / NumClasses
	}
	return v
}

// Sum returns the total mass
func (v Vector) Sum() float64 {
	var s float64
	for _, p := range v {
		s += p
	}
	return s
}

// Max returns the most probable class and its probability. Ties keep the
// lower class index.
func (v Vector) Max() (Class, float64) {
	best := Anger
	for i := 1; i < NumClasses; i++ {
		if v[i] > v[best] {
			best = Class(i)
		}
	}
	return best, v[best]
}

// normalizeEpsilon guards the final division against floating point drift
const normalizeEpsilon = 1e-12

// Normalize clamps negative components to zero and rescales to sum to one.
// An empty vector becomes uniform.
func (v Vector) Normalize() Vector {
	var out Vector
	var sum float64
	for i, p := range v {
		if p > 0 {
			out[i] = p
			sum += p
		}
	}
	if sum <= 0 {
		return Uniform()
	}
	for i := range out {
		out[i] /= sum + normalizeEpsilon
	}
	return out
}

// Map returns the vector keyed by class name
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumClasses)
	for i, p := range v {
		m[classNames[i]] = p
	}
	return m
}

// Signals are landmark-derived measurements for one frame. A nil field
// means the measurement is unavailable and disables the rules that need it.
type Signals struct {
	SmileScore     *float64 `json:"smile_score,omitempty"`
	EyeOpenRatio   *float64 `json:"eye_open_ratio,omitempty"`
	LipPressScore  *float64 `json:"lip_press_score,omitempty"`
	MouthCurvature *float64 `json:"mouth_curvature,omitempty"`
}

// Float returns a pointer to v, for building Signals
func Float(v float64) *float64 {
	return &v
}
