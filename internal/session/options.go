package session

import (
	"fmt"

	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
)

// Mode selects the threshold preset
type Mode string

const (
	ModeVideo  Mode = "video"
	ModeWebcam Mode = "webcam"
)

// ParseMode resolves a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVideo, ModeWebcam:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want video or webcam)", s)
}

// Options configures a tracking session
type Options struct {
	Mode    Mode           `yaml:"mode" validate:"oneof=video webcam"`
	Emotion emotion.Config `yaml:"emotion"`

	Window     gaze.Size `yaml:"window"`
	Scale      float64   `yaml:"scale" validate:"gte=0"` // pixels per radian for the default projection
	GridCols   int       `yaml:"grid_cols" validate:"gt=0"`
	GridRows   int       `yaml:"grid_rows" validate:"gt=0"`
	Hotspots   int       `yaml:"hotspots" validate:"gte=0"`
	CropSize   int       `yaml:"crop_size" validate:"gt=0"`
	BlinkRatio float64   `yaml:"blink_ratio" validate:"gt=0"` // eye ratio below which eyes count as closed

	// SnapshotEvery publishes a live snapshot every N frames, 0 disables
	SnapshotEvery int `yaml:"snapshot_every" validate:"gte=0"`
	// MaxReadFailures aborts a run after this many consecutive source errors
	MaxReadFailures int `yaml:"max_read_failures" validate:"gt=0"`
}

// DefaultOptions returns the settings for a mode
func DefaultOptions(mode Mode) Options {
	cfg := emotion.VideoConfig()
	if mode == ModeWebcam {
		cfg = emotion.WebcamConfig()
	}
	return Options{
		Mode:            mode,
		Emotion:         cfg,
		Window:          gaze.Size{Width: 1280, Height: 720},
		Scale:           gaze.DefaultScale,
		GridCols:        160,
		GridRows:        90,
		Hotspots:        5,
		CropSize:        112,
		BlinkRatio:      0.15,
		SnapshotEvery:   30,
		MaxReadFailures: 30,
	}
}
