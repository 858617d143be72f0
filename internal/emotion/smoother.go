package emotion

type observation struct {
	v          Vector
	confidence float64
}

// Smoother averages the most recent vectors, favouring newer and more
// confident ones.
type Smoother struct {
	window  int
	history []observation
}

// NewSmoother creates a smoother over the last window vectors
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{window: window, history: make([]observation, 0, window)}
}

// Push records v and returns the smoothed vector
func (s *Smoother) Push(v Vector) Vector {
	_, conf := v.Max()
	s.history = append(s.history, observation{v: v, confidence: conf})
	if len(s.history) > s.window {
		s.history = s.history[len(s.history)-s.window:]
	}
	return s.Smoothed()
}

// Smoothed returns the weighted average of the window. Weight i is
// (i+1) * (0.5 + 0.5*confidence), normalized, oldest first.
func (s *Smoother) Smoothed() Vector {
	switch len(s.history) {
	case 0:
		return Vector{}
	case 1:
		return s.history[0].v
	}

	weights := make([]float64, len(s.history))
	var total float64
	for i, o := range s.history {
		weights[i] = float64(i+1) * (0.5 + 0.5*o.confidence)
		total += weights[i]
	}

	var out Vector
	for i, o := range s.history {
		w := weights[i] / total
		for c := range out {
			out[c] += w * o.v[c]
		}
	}
	return out
}

// Len returns the number of vectors in the window
func (s *Smoother) Len() int {
	return len(s.history)
}

// Reset clears the history
func (s *Smoother) Reset() {
	s.history = s.history[:0]
}
