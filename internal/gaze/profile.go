package gaze

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Profile is a persisted calibration: the selected model, the resolution
// it was collected at and the raw samples needed to refit it.
type Profile struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Screen          Size      `json:"screen"`
	Window          Size      `json:"window"`
	PointCount      int       `json:"point_count"`
	Method          string    `json:"method"`
	MeanError       float64   `json:"mean_error"`
	AverageByTarget bool      `json:"average_by_target"`
	Model           *Model    `json:"model"`
	Samples         []Sample  `json:"samples"`
}

// NewProfile builds a profile from a fit result
func NewProfile(res *FitResult, samples []Sample, screen, window Size, points int, opts FitOptions) *Profile {
	kept := make([]Sample, len(samples))
	copy(kept, samples)
	return &Profile{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Screen:          screen,
		Window:          window,
		PointCount:      points,
		Method:          res.Model.Method,
		MeanError:       res.MeanError,
		AverageByTarget: opts.AverageByTarget,
		Model:           res.Model,
		Samples:         kept,
	}
}

// Restore reconstructs the mapping model. Projective and affine models are
// taken from the stored matrix; polynomial and RBF models are refitted from
// the stored samples with the stored method.
func (p *Profile) Restore() (*Model, error) {
	switch p.Method {
	case MethodHomography, MethodAffine:
		if p.Model == nil {
			return nil, fmt.Errorf("profile %s: %s model missing", p.ID, p.Method)
		}
		m := *p.Model
		m.Method = p.Method
		return &m, nil
	}

	samples := p.Samples
	if p.AverageByTarget {
		samples = AverageByTarget(samples)
	}
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("profile %s: %w: %d stored", p.ID, ErrInsufficientSamples, len(samples))
	}

	f := NewFitter(FitOptions{AverageByTarget: p.AverageByTarget})
	for _, m := range f.methods {
		if m.name != p.Method {
			continue
		}
		model, err := m.fit(samples)
		if err != nil {
			return nil, fmt.Errorf("profile %s: refit %s: %w", p.ID, p.Method, err)
		}
		model.Method = p.Method
		return model, nil
	}
	return nil, fmt.Errorf("profile %s: unknown method %q", p.ID, p.Method)
}
