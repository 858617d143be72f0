package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/dudu/interviewlens/internal/config"
	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/session"
	"github.com/dudu/interviewlens/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// loadModel resolves the calibration model: an explicit profile path, or
// the latest stored profile. No profile means the default projection.
func loadModel(cfg *config.Config, path string) (*gaze.Model, error) {
	profiles := store.NewProfileStore(cfg.Calibration.ProfileDir)

	var (
		p   *gaze.Profile
		err error
	)
	if path != "" {
		p, err = profiles.Load(path)
	} else {
		p, path, err = profiles.Latest()
		if errors.Is(err, store.ErrNoProfile) {
			log.Warn(log.Fields{"dir": profiles.Dir()}, "no calibration profile, using default projection")
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	model, err := p.Restore()
	if err != nil {
		return nil, fmt.Errorf("restore profile %s: %w", path, err)
	}
	if p.Window != cfg.Session.Window {
		log.Warn(log.Fields{"profile": p.Window, "session": cfg.Session.Window}, "profile was calibrated for a different window size")
	}
	log.Info(log.Fields{"profile": path, "method": p.Method, "mean_error": p.MeanError}, "calibration profile loaded")
	return model, nil
}

// storage holds the optional persistence backends
type storage struct {
	results   *store.ResultRepo
	snapshots *store.SnapshotPublisher
	close     []func() error
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	st := &storage{}

	if cfg.Storage.DSN != "" {
		db, err := store.OpenDatabase(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		st.close = append(st.close, db.Close)
		st.results = store.NewResultRepo(db)
		if err := st.results.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}

	if cfg.Storage.Redis.Addr != "" {
		st.snapshots = store.NewSnapshotPublisher(cfg.Storage.Redis)
		st.close = append(st.close, st.snapshots.Close)
	}
	return st, nil
}

// attach connects a session to the snapshot publisher when configured
func (st *storage) attach(s *session.Session) {
	if st.snapshots != nil {
		s.SetSink(st.snapshots)
	}
}

// save stores a report in the result repository when configured
func (st *storage) save(ctx context.Context, r *session.Report) {
	if st.results == nil {
		return
	}
	id, err := st.results.SaveResult(ctx, r)
	if err != nil {
		log.Error(log.Fields{"session": r.SessionID, "error": err.Error()}, "failed to store result")
		return
	}
	log.Info(log.Fields{"session": r.SessionID, "id": id}, "result stored")
}

func (st *storage) Close() error {
	var errs []error
	for i := len(st.close) - 1; i >= 0; i-- {
		errs = append(errs, st.close[i]())
	}
	return errors.Join(errs...)
}

// printReport writes the human readable summary
func printReport(r *session.Report) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n== %s (%s) ==\n", r.Source, r.SessionID)
	fmt.Fprintf(&b, "Frames: %d total, %d analyzed, %d no face, %d low quality, %d gaze failures, %d classifier errors\n",
		r.TotalFrames, r.AnalyzedFrames, r.NoFaceFrames, r.LowQualityFrames, r.GazeFailures, r.ClassifierErrors)
	if r.Gaze.CalibrationMethod != "" {
		fmt.Fprintf(&b, "Calibration: %s (%d fallbacks)\n", r.Gaze.CalibrationMethod, r.GazeFallbacks)
	}
	fmt.Fprintf(&b, "Gaze: %.1f%% centred, %s\n", r.Gaze.CenterRatio, r.Gaze.Focus)
	if r.DominantEmotion != "" {
		fmt.Fprintf(&b, "Emotion: mostly %s, final label %q\n", r.DominantEmotion, r.FinalLabel)
	}
	fmt.Fprintf(&b, "Tension: %.0f  Confidence: %.0f\n\n", r.Tension, r.Confidence)
	for _, l := range r.Feedback {
		fmt.Fprintf(&b, "  - %s\n", l)
	}
	fmt.Print(b.String())
}

// printSnapshot writes one live snapshot
func printSnapshot(s *session.Snapshot) {
	fmt.Printf("Session %s: frame %d at %s, %s\n", s.SessionID, s.FrameIndex, s.Timestamp.Round(time.Second), s.State)
	fmt.Printf("Analyzed %d of %d frames, %.1f%% gaze centred\n", s.Analyzed, s.Total, s.CenterRatio)
	if s.Label != "" {
		fmt.Printf("Stable label: %s\n", s.Label)
	}
	for c := emotion.Class(0); c < emotion.NumClasses; c++ {
		if p, ok := s.Emotions[c.String()]; ok {
			fmt.Printf("  %-9s %5.1f%%\n", c, 100*p)
		}
	}
}

// writeReport stores the JSON report in dir, named after the source
func writeReport(dir string, r *session.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(r.Source), filepath.Ext(r.Source))
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", base, r.SessionID[:8]))
	return os.WriteFile(path, data, 0o644)
}
