// Package session runs interview analysis over a frame stream: it owns the
// face provider and emotion classifier, applies gaze mapping and emotion
// correction per frame and summarizes the run in a report.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/camera"
	"github.com/dudu/interviewlens/internal/detector"
	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/inference"
	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/provider"
)

// Snapshot is the live state published while a session runs
type Snapshot struct {
	SessionID   string             `json:"session_id"`
	FrameIndex  int                `json:"frame_index"`
	Timestamp   time.Duration      `json:"timestamp"`
	State       string             `json:"state"`
	Label       string             `json:"label,omitempty"`
	Emotions    map[string]float64 `json:"emotions,omitempty"`
	CenterRatio float64            `json:"center_ratio"`
	Analyzed    int                `json:"analyzed"`
	Total       int                `json:"total"`
}

// SnapshotSink receives live snapshots
type SnapshotSink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Timing holds per-stage durations of the last processed frame
type Timing struct {
	Detection time.Duration
	Gaze      time.Duration
	Emotion   time.Duration
	Total     time.Duration
}

// FrameResult describes what one frame contributed
type FrameResult struct {
	Index   int
	State   State
	Face    *detector.Face
	Quality emotion.Quality
	Gaze    *gaze.Result
	Label   emotion.Class
	Labeled bool
	Vector  emotion.Vector // smoothed distribution when Labeled
	Err     error          // why the frame was skipped, nil when analyzed
}

// Session owns one tracking run's models and state. It is not safe for
// concurrent use.
type Session struct {
	id     string
	opts   Options
	source string

	provider   provider.Provider
	classifier emotion.Classifier
	release    func() error

	aligner    *detector.Aligner
	gate       *emotion.Gate
	corrector  *emotion.Corrector
	smoother   *emotion.Smoother
	stabilizer *emotion.Stabilizer
	mapper     *gaze.Mapper
	grid       *gaze.Grid
	metrics    *Metrics

	state         State
	counts        Counts
	emotionSum    emotion.Vector
	emotionFrames int
	labelCounts   [emotion.NumClasses]int
	startedAt     time.Time
	endedAt       time.Time
	lastTiming    Timing

	sink    SnapshotSink
	onFrame func(camera.Frame, FrameResult)
}

// Models locates everything Open loads
type Models struct {
	ORTLibrary string                   `yaml:"ort_library"`
	Provider   provider.Config          `yaml:"provider"`
	Classifier emotion.ClassifierConfig `yaml:"classifier"`
}

// Stage constructors used by Open
var (
	initInference     = inference.Initialize
	shutdownInference = inference.Shutdown
	openProvider      = func(cfg provider.Config) (provider.Provider, error) {
		p, err := provider.Open(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	openClassifier = func(cfg emotion.ClassifierConfig) (emotion.Classifier, error) {
		c, err := emotion.NewONNXClassifier(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
)

// Open initializes ONNX Runtime and loads the provider and classifier. On
// any failure the stages already acquired are released and their cleanup
// errors are joined to the returned error.
func Open(m Models, model *gaze.Model, opts Options) (*Session, error) {
	if err := initInference(m.ORTLibrary); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	prov, err := openProvider(m.Provider)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to open face provider: %w", err),
			shutdownInference(),
		)
	}

	cls, err := openClassifier(m.Classifier)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to create emotion classifier: %w", err),
			prov.Close(),
			shutdownInference(),
		)
	}

	s := New(prov, cls, model, opts)
	s.release = func() error {
		return errors.Join(cls.Close(), prov.Close(), shutdownInference())
	}
	return s, nil
}

// New creates a session around the given handles. The session takes
// ownership of both and closes them in Close. A nil model maps gaze through
// the default projection.
func New(p provider.Provider, c emotion.Classifier, model *gaze.Model, opts Options) *Session {
	s := &Session{
		id:         uuid.NewString(),
		opts:       opts,
		provider:   p,
		classifier: c,
		aligner:    detector.NewAligner(opts.CropSize),
		gate:       emotion.NewGate(opts.Emotion),
		corrector:  emotion.NewCorrector(opts.Emotion),
		smoother:   emotion.NewSmoother(opts.Emotion.SmoothingWindow),
		stabilizer: emotion.NewStabilizer(opts.Emotion.LabelWindow, opts.Emotion.ConfidenceThreshold),
		mapper:     gaze.NewMapper(model, opts.Window, opts.Scale),
		grid:       gaze.NewGrid(opts.GridCols, opts.GridRows, opts.Window),
		metrics:    NewMetrics(opts.BlinkRatio),
	}
	s.release = func() error {
		return errors.Join(c.Close(), p.Close())
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state
func (s *Session) State() State {
	return s.state
}

// Counts returns the frame accounting so far
func (s *Session) Counts() Counts {
	c := s.counts
	c.GazeFallbacks = s.mapper.Fallbacks()
	return c
}

// Grid returns the gaze heatmap
func (s *Session) Grid() *gaze.Grid {
	return s.grid
}

// LastTiming returns timing from the last ProcessFrame call
func (s *Session) LastTiming() Timing {
	return s.lastTiming
}

// SetSink publishes a snapshot every Options.SnapshotEvery frames
func (s *Session) SetSink(sink SnapshotSink) {
	s.sink = sink
}

// OnFrame registers a callback invoked after every processed frame, before
// the frame is released
func (s *Session) OnFrame(fn func(camera.Frame, FrameResult)) {
	s.onFrame = fn
}

// Reset clears every aggregate and returns to StateInit
func (s *Session) Reset() {
	s.grid.Reset()
	s.smoother.Reset()
	s.stabilizer.Reset()
	s.metrics.Reset()
	s.mapper = gaze.NewMapper(s.mapper.Model(), s.opts.Window, s.opts.Scale)
	s.counts = Counts{}
	s.emotionSum = emotion.Vector{}
	s.emotionFrames = 0
	s.labelCounts = [emotion.NumClasses]int{}
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.state = StateInit
}

// ProcessFrame analyzes one frame. Per-frame failures are counted and
// reported in the result; they never abort the session and a skipped frame
// changes no aggregate.
func (s *Session) ProcessFrame(f camera.Frame) FrameResult {
	start := time.Now()
	defer func() { s.lastTiming.Total = time.Since(start) }()

	s.counts.TotalFrames++
	res := FrameResult{Index: f.Index}

	face, err := s.detect(f.Mat)
	s.lastTiming.Detection = time.Since(start)
	if err != nil {
		s.counts.NoFaceFrames++
		return s.skip(res, err)
	}
	res.Face = face

	crop, err := s.aligner.Align(f.Mat, face.Landmarks)
	defer crop.Close()
	if err != nil {
		s.counts.LowQualityFrames++
		return s.skip(res, fmt.Errorf("%w: %v", emotion.ErrLowQualityFrame, err))
	}
	res.Quality, err = s.gate.Check(crop)
	if err != nil {
		s.counts.LowQualityFrames++
		return s.skip(res, err)
	}

	gazeStart := time.Now()
	v, err := s.estimateGaze(f.Mat, face)
	s.lastTiming.Gaze = time.Since(gazeStart)
	if err != nil {
		s.counts.GazeFailures++
		return s.skip(res, err)
	}

	// the frame is usable from here on
	s.counts.AnalyzedFrames++
	s.state = StateTracking
	res.State = s.state

	mapped := s.mapper.Map(v)
	s.grid.Record(mapped.Point)
	res.Gaze = &mapped

	signals := detector.ExtractSignals(face.Landmarks106)
	s.metrics.Observe(signals, f.Timestamp)

	emotionStart := time.Now()
	raw, err := s.predict(crop)
	s.lastTiming.Emotion = time.Since(emotionStart)
	if err != nil {
		s.counts.ClassifierErrors++
		log.Debug(log.Fields{"session": s.id, "frame": f.Index, "error": err.Error()}, "emotion classifier failed")
		return res
	}

	corrected := s.corrector.Apply(raw.Normalize(), signals)
	smoothed := s.smoother.Push(corrected)
	label := s.stabilizer.Update(smoothed)

	for i := range s.emotionSum {
		s.emotionSum[i] += smoothed[i]
	}
	s.emotionFrames++
	s.labelCounts[label]++

	res.Vector = smoothed
	res.Label = label
	res.Labeled = true
	return res
}

func (s *Session) skip(res FrameResult, err error) FrameResult {
	s.state = StateCollecting
	res.State = s.state
	res.Err = err
	return res
}

// detect absorbs provider panics as a missing face
func (s *Session) detect(frame gocv.Mat) (face *detector.Face, err error) {
	defer func() {
		if r := recover(); r != nil {
			face, err = nil, fmt.Errorf("%w: provider panic: %v", provider.ErrNoFaceDetected, r)
		}
	}()

	face, err = s.provider.Detect(frame)
	if err == nil && face == nil {
		err = provider.ErrNoFaceDetected
	}
	return face, err
}

// estimateGaze absorbs provider panics and invalid vectors as a gaze failure
func (s *Session) estimateGaze(frame gocv.Mat, face *detector.Face) (v r3.Vector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panic: %v", provider.ErrGazeEstimation, r)
		}
	}()

	v, err = s.provider.EstimateGaze(frame, face)
	if err != nil {
		return v, err
	}
	if n := v.Norm(); n < 1e-9 || math.IsNaN(n) || math.IsInf(n, 0) {
		return v, fmt.Errorf("%w: invalid gaze vector %v", provider.ErrGazeEstimation, v)
	}
	return v.Normalize(), nil
}

func (s *Session) predict(crop gocv.Mat) (v emotion.Vector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return s.classifier.Predict(crop)
}

// Run resets the session and analyzes src until end of stream or until ctx
// is done. The report is returned in both cases; a stop through ctx also
// returns ctx.Err().
func (s *Session) Run(ctx context.Context, name string, src camera.Source) (*Report, error) {
	s.Reset()
	s.source = name
	s.startedAt = time.Now().UTC()

	log.Info(log.Fields{"session": s.id, "source": name, "mode": s.opts.Mode}, "session started")

	err := s.loop(ctx, src)

	s.state = StateEnded
	s.endedAt = time.Now().UTC()
	report := s.Report()

	log.Info(log.Fields{
		"session":  s.id,
		"source":   name,
		"total":    report.TotalFrames,
		"analyzed": report.AnalyzedFrames,
		"label":    report.FinalLabel,
		"focus":    report.Gaze.Focus,
	}, "session ended")

	return report, err
}

func (s *Session) loop(ctx context.Context, src camera.Source) error {
	guard := camera.NewGuard(s.opts.MaxReadFailures)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := guard.Read(src)
		if errors.Is(err, camera.ErrEndOfStream) {
			return nil
		}
		if errors.Is(err, camera.ErrSourceFailed) {
			return err
		}
		if err != nil {
			log.Debug(log.Fields{"session": s.id, "error": err.Error()}, "frame read failed")
			continue
		}

		res := s.ProcessFrame(f)
		if res.Err != nil {
			log.Debug(log.Fields{"session": s.id, "frame": f.Index, "reason": res.Err.Error()}, "frame skipped")
		}
		if s.onFrame != nil {
			s.onFrame(f, res)
		}
		f.Close()

		s.publish(ctx, f, res)
	}
}

func (s *Session) publish(ctx context.Context, f camera.Frame, res FrameResult) {
	if s.sink == nil || s.opts.SnapshotEvery <= 0 || s.counts.TotalFrames%s.opts.SnapshotEvery != 0 {
		return
	}

	snap := Snapshot{
		SessionID:   s.id,
		FrameIndex:  f.Index,
		Timestamp:   f.Timestamp,
		State:       s.state.String(),
		CenterRatio: s.grid.CenterRatio(),
		Analyzed:    s.counts.AnalyzedFrames,
		Total:       s.counts.TotalFrames,
	}
	if label, ok := s.stabilizer.Stable(); ok {
		snap.Label = label.String()
	}
	if res.Labeled {
		snap.Emotions = res.Vector.Map()
	}

	if err := s.sink.Publish(ctx, snap); err != nil {
		log.Warn(log.Fields{"session": s.id, "error": err.Error()}, "snapshot publish failed")
	}
}

// Close releases the provider and classifier. It is safe to call twice.
func (s *Session) Close() error {
	if s.release == nil {
		return nil
	}
	err := s.release()
	s.release = nil
	if err != nil {
		return fmt.Errorf("cleanup errors: %w", err)
	}
	return nil
}
