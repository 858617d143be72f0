package emotion

// Stabilizer turns noisy per-frame labels into a stable label: low
// confidence frames repeat the current stable label, and the stable label
// is the majority over a sliding window.
type Stabilizer struct {
	window    int
	threshold float64
	labels    []Class
	stable    Class
	hasStable bool
}

// NewStabilizer creates a stabilizer over the last window labels
func NewStabilizer(window int, threshold float64) *Stabilizer {
	if window < 1 {
		window = 1
	}
	return &Stabilizer{window: window, threshold: threshold}
}

// Update feeds the argmax of v and returns the stable label
func (s *Stabilizer) Update(v Vector) Class {
	label, conf := v.Max()
	return s.Observe(label, conf)
}

// Observe feeds one label with its confidence and returns the stable label
func (s *Stabilizer) Observe(label Class, confidence float64) Class {
	if confidence < s.threshold && s.hasStable {
		label = s.stable
	}

	s.labels = append(s.labels, label)
	if len(s.labels) > s.window {
		s.labels = s.labels[len(s.labels)-s.window:]
	}

	s.stable = majority(s.labels)
	s.hasStable = true
	return s.stable
}

// Stable returns the current stable label, if any frame was observed
func (s *Stabilizer) Stable() (Class, bool) {
	return s.stable, s.hasStable
}

// Reset forgets all labels
func (s *Stabilizer) Reset() {
	s.labels = s.labels[:0]
	s.hasStable = false
}

// majority returns the most frequent label; ties go to the label seen first
func majority(labels []Class) Class {
	var counts [NumClasses]int
	var order []Class
	for _, l := range labels {
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}

	best := order[0]
	for _, l := range order[1:] {
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best
}
