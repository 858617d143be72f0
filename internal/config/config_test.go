package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/session"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Session.Mode != session.ModeVideo {
		t.Errorf("mode %q, want video", cfg.Session.Mode)
	}
	if cfg.Session.Emotion != emotion.VideoConfig() {
		t.Error("video preset not applied")
	}
	if cfg.Models.Provider.LandmarkModel != filepath.Join("models", "2d106det.onnx") {
		t.Errorf("landmark model %q", cfg.Models.Provider.LandmarkModel)
	}
	if cfg.Calibration.Grid != 3 || cfg.Video.Workers != 2 {
		t.Errorf("calibration grid %d, workers %d", cfg.Calibration.Grid, cfg.Video.Workers)
	}
}

func TestParse_PresetThenOverrides(t *testing.T) {
	data := []byte(`
models:
  dir: /opt/models
session:
  mode: webcam
  emotion:
    smile_threshold: 0.5
  snapshot_every: 10
calibration:
  grid: 5
storage:
  redis:
    addr: localhost:6379
    ttl: 2m
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := emotion.WebcamConfig()
	want.SmileThreshold = 0.5
	if cfg.Session.Emotion != want {
		t.Errorf("emotion config = %+v, want webcam preset with smile threshold 0.5", cfg.Session.Emotion)
	}
	if cfg.Session.SnapshotEvery != 10 || cfg.Session.GridCols != 160 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Models.Provider.Detector.ModelPath != filepath.Join("/opt/models", "det_10g.onnx") {
		t.Errorf("detector model %q", cfg.Models.Provider.Detector.ModelPath)
	}
	if cfg.Calibration.Grid != 5 {
		t.Errorf("grid %d", cfg.Calibration.Grid)
	}
	if cfg.Storage.Redis.Addr != "localhost:6379" || cfg.Storage.Redis.TTL != 2*time.Minute {
		t.Errorf("redis = %+v", cfg.Storage.Redis)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown mode", "session:\n  mode: studio\n", "unknown mode"},
		{"grid size", "calibration:\n  grid: 7\n", "Grid"},
		{"probability out of range", "session:\n  emotion:\n    neutral_target: 1.5\n", "NeutralTarget"},
		{"log level", "log:\n  level: loud\n", "Level"},
		{"malformed", "session: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDSN, "postgres://u:p@db/interviews?sslmode=disable")
	t.Setenv(EnvRedisAddr, "cache:6379")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvORTLib, "/usr/lib/libonnxruntime.so")

	cfg, err := Parse([]byte("storage:\n  dsn: postgres://file\nlog:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.DSN != "postgres://u:p@db/interviews?sslmode=disable" {
		t.Errorf("dsn %q", cfg.Storage.DSN)
	}
	if cfg.Storage.Redis.Addr != "cache:6379" || cfg.Log.Level != "debug" {
		t.Errorf("redis %q, log level %q", cfg.Storage.Redis.Addr, cfg.Log.Level)
	}
	if cfg.Models.ORTLibrary != "/usr/lib/libonnxruntime.so" {
		t.Errorf("ort library %q", cfg.Models.ORTLibrary)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviewlens.yaml")
	if err := os.WriteFile(path, []byte("video:\n  workers: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.Workers != 4 {
		t.Errorf("workers %d, want 4", cfg.Video.Workers)
	}

	t.Setenv(EnvConfig, path)
	if cfg, err := Load(""); err != nil || cfg.Video.Workers != 4 {
		t.Errorf("Load via env: %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for an explicit missing file")
	}
}

func TestWithMode(t *testing.T) {
	cfg := Default(session.ModeVideo, "models")
	live, err := cfg.WithMode(session.ModeWebcam)
	if err != nil {
		t.Fatalf("WithMode: %v", err)
	}

	if live.Session.Mode != session.ModeWebcam || live.Session.Emotion != emotion.WebcamConfig() {
		t.Error("webcam preset not applied")
	}
	if cfg.Session.Mode != session.ModeVideo {
		t.Error("WithMode modified the receiver")
	}
}

func TestWithMode_KeepsFileOverrides(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		to   session.Mode
		base emotion.Config
	}{
		{
			name: "video file, webcam run",
			yaml: "session:\n  emotion:\n    min_brightness: 10\n    label_window: 12\n",
			to:   session.ModeWebcam,
			base: emotion.WebcamConfig(),
		},
		{
			name: "webcam file, video run",
			yaml: "session:\n  mode: webcam\n  emotion:\n    min_brightness: 10\n    label_window: 12\n",
			to:   session.ModeVideo,
			base: emotion.VideoConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got, err := cfg.WithMode(tt.to)
			if err != nil {
				t.Fatalf("WithMode: %v", err)
			}

			want := tt.base
			want.MinBrightness = 10
			want.LabelWindow = 12
			if got.Session.Emotion != want {
				t.Errorf("emotion config = %+v, want %+v", got.Session.Emotion, want)
			}
			if got.Session.Mode != tt.to {
				t.Errorf("mode %q, want %q", got.Session.Mode, tt.to)
			}
		})
	}
}
