// Package config loads interviewlens settings from a YAML file, a .env file
// and INTERVIEWLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dudu/interviewlens/internal/detector"
	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/inference"
	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/provider"
	"github.com/dudu/interviewlens/internal/session"
	"github.com/dudu/interviewlens/internal/store"
)

// DefaultPath is read when no path is given and INTERVIEWLENS_CONFIG is unset
const DefaultPath = "config.yaml"

// Environment overrides
const (
	EnvConfig    = "INTERVIEWLENS_CONFIG"
	EnvDSN       = "INTERVIEWLENS_DB_DSN"
	EnvRedisAddr = "INTERVIEWLENS_REDIS_ADDR"
	EnvRedisPass = "INTERVIEWLENS_REDIS_PASSWORD"
	EnvLogLevel  = "INTERVIEWLENS_LOG_LEVEL"
	EnvLogFile   = "INTERVIEWLENS_LOG_FILE"
	EnvORTLib    = "INTERVIEWLENS_ORT_LIB"
)

// Calibration configures the calibrate command
type Calibration struct {
	Grid       int             `yaml:"grid" validate:"oneof=3 4 5"`
	PerTarget  int             `yaml:"per_target" validate:"gt=0"`
	Fit        gaze.FitOptions `yaml:"fit"`
	ProfileDir string          `yaml:"profile_dir" validate:"required"`
	Screen     gaze.Size       `yaml:"screen"`
}

// Storage configures result persistence. Empty addresses disable a backend.
type Storage struct {
	DSN   string             `yaml:"dsn"`
	Redis store.RedisOptions `yaml:"redis"`
}

// Video configures batch analysis of recorded files
type Video struct {
	Workers int `yaml:"workers" validate:"gt=0"`
}

// Config is the root of config.yaml
type Config struct {
	Log         log.Options     `yaml:"log"`
	Models      session.Models  `yaml:"models"`
	Session     session.Options `yaml:"session"`
	Calibration Calibration     `yaml:"calibration"`
	Storage     Storage         `yaml:"storage"`
	Video       Video           `yaml:"video"`

	raw []byte // source YAML, re-applied over another mode's preset
}

// Default returns the settings used when nothing is configured. Models are
// looked up under dir.
func Default(mode session.Mode, dir string) *Config {
	return &Config{
		Log: log.Options{Level: "info"},
		Models: session.Models{
			ORTLibrary: inference.DefaultLibraryPath(),
			Provider: provider.Config{
				Detector:      detector.DefaultSCRFDConfig(filepath.Join(dir, "det_10g.onnx")),
				LandmarkModel: filepath.Join(dir, "2d106det.onnx"),
				PuplocCascade: filepath.Join(dir, "puploc"),
				Gaze:          provider.DefaultGazeConfig(),
			},
			Classifier: emotion.DefaultClassifierConfig(filepath.Join(dir, "emotion-ferplus-8.onnx")),
		},
		Session: session.DefaultOptions(mode),
		Calibration: Calibration{
			Grid:       3,
			PerTarget:  5,
			Fit:        gaze.DefaultFitOptions(),
			ProfileDir: "profiles",
			Screen:     gaze.Size{Width: 1920, Height: 1080},
		},
		Storage: Storage{
			Redis: store.RedisOptions{Channel: store.DefaultChannel, TTL: 10 * time.Minute},
		},
		Video: Video{Workers: 2},
	}
}

// Load reads the configuration. The mode preset is applied first and the
// file overrides it field by field, then environment variables override
// the file. A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		data = nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds a configuration from YAML bytes, applies environment
// overrides and validates the result
func Parse(data []byte) (*Config, error) {
	var head struct {
		Models struct {
			Dir string `yaml:"dir"`
		} `yaml:"models"`
		Session struct {
			Mode string `yaml:"mode"`
		} `yaml:"session"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	mode := session.ModeVideo
	if head.Session.Mode != "" {
		m, err := session.ParseMode(head.Session.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	dir := head.Models.Dir
	if dir == "" {
		dir = "models"
	}

	cfg := Default(mode, dir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.raw = data

	cfg.applyEnv()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPass); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(EnvORTLib); v != "" {
		c.Models.ORTLibrary = v
	}
}

var validate = validator.New()

// Validate checks every field constraint
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s", verrs[0].Error())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WithMode returns a copy using the threshold preset of mode. Emotion
// settings from the file are applied again over the new preset.
func (c *Config) WithMode(mode session.Mode) (*Config, error) {
	out := *c
	if out.Session.Mode == mode {
		return &out, nil
	}

	var doc struct {
		Session struct {
			Emotion emotion.Config `yaml:"emotion"`
		} `yaml:"session"`
	}
	doc.Session.Emotion = session.DefaultOptions(mode).Emotion
	if err := yaml.Unmarshal(c.raw, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	out.Session.Mode = mode
	out.Session.Emotion = doc.Session.Emotion
	if err := Validate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
