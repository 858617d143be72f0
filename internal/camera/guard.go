package camera

import (
	"errors"
	"fmt"
)

// ErrSourceFailed is returned by a Guard once a source failed too many
// times in a row
var ErrSourceFailed = errors.New("source failed")

// Guard reads from a source and gives up after Limit consecutive errors.
// Shorter error runs are returned as is so the caller can retry.
type Guard struct {
	Limit    int
	failures int
}

// NewGuard creates a guard allowing limit consecutive failures
func NewGuard(limit int) *Guard {
	if limit < 1 {
		limit = 1
	}
	return &Guard{Limit: limit}
}

// Read reads one frame. End of stream passes through untouched.
func (g *Guard) Read(src Source) (Frame, error) {
	f, err := src.Read()
	if err == nil {
		g.failures = 0
		return f, nil
	}
	if errors.Is(err, ErrEndOfStream) {
		return f, err
	}

	g.failures++
	if g.failures >= g.Limit {
		return f, fmt.Errorf("%w %d times in a row: %w", ErrSourceFailed, g.failures, err)
	}
	return f, err
}

// Failures returns the current run of consecutive errors
func (g *Guard) Failures() int {
	return g.failures
}
