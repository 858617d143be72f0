package session

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/camera"
	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/provider"
)

func TestProcessFrame_Accounting(t *testing.T) {
	good, dark := texturedFrame(), darkFrame()
	defer good.Close()
	defer dark.Close()

	prov := newFakeProvider(stepOK, stepNoFace, stepOK, stepGazeFail, stepPanic, stepOK)
	cls := happyClassifier()
	s := New(prov, cls, nil, testOptions())
	defer s.Close()

	frames := []gocv.Mat{good, good, dark, good, good, good}
	var results []FrameResult
	for i, m := range frames {
		results = append(results, s.ProcessFrame(frameAt(m, i)))
	}

	want := Counts{
		TotalFrames:      6,
		AnalyzedFrames:   2,
		NoFaceFrames:     2,
		LowQualityFrames: 1,
		GazeFailures:     1,
	}
	if got := s.Counts(); got != want {
		t.Fatalf("counts = %+v, want %+v", got, want)
	}

	if !errors.Is(results[1].Err, provider.ErrNoFaceDetected) {
		t.Errorf("frame 1: expected ErrNoFaceDetected, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, emotion.ErrLowQualityFrame) {
		t.Errorf("frame 2: expected ErrLowQualityFrame, got %v", results[2].Err)
	}
	if !errors.Is(results[3].Err, provider.ErrGazeEstimation) {
		t.Errorf("frame 3: expected ErrGazeEstimation, got %v", results[3].Err)
	}
	if !errors.Is(results[4].Err, provider.ErrNoFaceDetected) {
		t.Errorf("frame 4: provider panic should count as no face, got %v", results[4].Err)
	}
	if cls.calls != 2 {
		t.Errorf("classifier called %d times, want 2", cls.calls)
	}
}

func TestProcessFrame_SkippedFramesChangeNothing(t *testing.T) {
	good, dark := texturedFrame(), darkFrame()
	defer good.Close()
	defer dark.Close()

	s := New(newFakeProvider(stepOK, stepNoFace, stepOK, stepGazeFail), happyClassifier(), nil, testOptions())
	defer s.Close()

	if s.State() != StateInit {
		t.Fatalf("initial state %s", s.State())
	}

	first := s.ProcessFrame(frameAt(good, 0))
	if !first.Labeled || first.Label != emotion.Happy {
		t.Fatalf("first frame: labeled=%v label=%s err=%v", first.Labeled, first.Label, first.Err)
	}
	if s.State() != StateTracking {
		t.Fatalf("state %s, want tracking", s.State())
	}

	before := s.Report()
	for i, m := range []gocv.Mat{good, dark, good} {
		res := s.ProcessFrame(frameAt(m, i+1))
		if res.Err == nil {
			t.Fatalf("frame %d unexpectedly analyzed", i+1)
		}
		if s.State() != StateCollecting {
			t.Errorf("frame %d: state %s, want collecting", i+1, s.State())
		}
	}
	after := s.Report()

	if after.Gaze.Samples != before.Gaze.Samples {
		t.Errorf("heatmap changed: %d -> %d", before.Gaze.Samples, after.Gaze.Samples)
	}
	if after.FinalLabel != before.FinalLabel {
		t.Errorf("stable label changed: %s -> %s", before.FinalLabel, after.FinalLabel)
	}
	for k, v := range before.Emotions {
		if after.Emotions[k] != v {
			t.Errorf("emotion %s changed: %v -> %v", k, v, after.Emotions[k])
		}
	}
	if after.AnalyzedFrames != 1 || after.TotalFrames != 4 {
		t.Errorf("analyzed %d of %d, want 1 of 4", after.AnalyzedFrames, after.TotalFrames)
	}
}

func TestProcessFrame_ClassifierErrorKeepsGaze(t *testing.T) {
	good := texturedFrame()
	defer good.Close()

	cls := happyClassifier()
	cls.fail = true
	s := New(newFakeProvider(), cls, nil, testOptions())
	defer s.Close()

	res := s.ProcessFrame(frameAt(good, 0))
	if res.Labeled {
		t.Error("frame labeled despite classifier error")
	}
	c := s.Counts()
	if c.ClassifierErrors != 1 || c.AnalyzedFrames != 1 {
		t.Errorf("counts = %+v", c)
	}
	if s.Grid().Total() != 1 {
		t.Errorf("gaze not recorded")
	}
}

func TestProcessFrame_GazeUsesModel(t *testing.T) {
	good := texturedFrame()
	defer good.Close()

	// shifts every point 100px right of the default projection centre
	model := &gaze.Model{
		Kind:   gaze.KindAffine,
		Method: gaze.MethodAffine,
		Matrix: []float64{700, 0, 740, 0, 700, 360},
	}
	s := New(newFakeProvider(), happyClassifier(), model, testOptions())
	defer s.Close()

	res := s.ProcessFrame(frameAt(good, 0))
	if res.Gaze == nil || res.Gaze.Outcome != gaze.OutcomeModel {
		t.Fatalf("expected model outcome, got %+v", res.Gaze)
	}
	if res.Gaze.Point.X != 740 || res.Gaze.Point.Y != 360 {
		t.Errorf("mapped to %+v, want (740, 360)", res.Gaze.Point)
	}
	if r := s.Report(); r.Gaze.CalibrationMethod != gaze.MethodAffine {
		t.Errorf("calibration method %q", r.Gaze.CalibrationMethod)
	}
}

func TestRun_ResetsBetweenRuns(t *testing.T) {
	good := texturedFrame()
	defer good.Close()

	s := New(newFakeProvider(), happyClassifier(), nil, testOptions())
	defer s.Close()

	for run := 0; run < 2; run++ {
		src := &sliceSource{frames: []gocv.Mat{good, good, good}}
		report, err := s.Run(context.Background(), "clip.mp4", src)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if report.TotalFrames != 3 || report.AnalyzedFrames != 3 {
			t.Errorf("run %d: analyzed %d of %d, want 3 of 3", run, report.AnalyzedFrames, report.TotalFrames)
		}
		if report.AnalyzedRatio != 1 {
			t.Errorf("run %d: ratio %v", run, report.AnalyzedRatio)
		}
		if report.FinalLabel != "happy" || report.DominantEmotion != "happy" {
			t.Errorf("run %d: final %q dominant %q", run, report.FinalLabel, report.DominantEmotion)
		}
		if report.Gaze.Samples != 3 {
			t.Errorf("run %d: gaze samples %d", run, report.Gaze.Samples)
		}
		if report.Gaze.Focus != gaze.FocusConcentrated {
			t.Errorf("run %d: focus %q", run, report.Gaze.Focus)
		}
		if s.State() != StateEnded {
			t.Errorf("run %d: state %s", run, s.State())
		}
		if len(report.Feedback) == 0 {
			t.Errorf("run %d: no feedback", run)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	good := texturedFrame()
	defer good.Close()

	s := New(newFakeProvider(), happyClassifier(), nil, testOptions())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.OnFrame(func(f camera.Frame, _ FrameResult) {
		if f.Index == 1 {
			cancel()
		}
	})

	src := &sliceSource{frames: []gocv.Mat{good, good, good, good, good}}
	report, err := s.Run(ctx, "live", src)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil || report.TotalFrames != 2 {
		t.Fatalf("report = %+v, want 2 frames", report)
	}
	if s.State() != StateEnded {
		t.Errorf("state %s, want ended", s.State())
	}
}

func TestRun_PublishesSnapshots(t *testing.T) {
	good := texturedFrame()
	defer good.Close()

	opts := testOptions()
	opts.SnapshotEvery = 2
	s := New(newFakeProvider(), happyClassifier(), nil, opts)
	defer s.Close()

	sink := &fakeSink{}
	s.SetSink(sink)

	src := &sliceSource{frames: []gocv.Mat{good, good, good, good, good}}
	if _, err := s.Run(context.Background(), "clip", src); err != nil {
		t.Fatal(err)
	}
	if len(sink.snaps) != 2 {
		t.Fatalf("published %d snapshots, want 2", len(sink.snaps))
	}
	last := sink.snaps[1]
	if last.Total != 4 || last.Analyzed != 4 || last.Label != "happy" || last.SessionID != s.ID() {
		t.Errorf("unexpected snapshot %+v", last)
	}
}

func TestClose_ReleasesHandles(t *testing.T) {
	prov, cls := newFakeProvider(), happyClassifier()
	s := New(prov, cls, nil, testOptions())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if prov.closed != 1 || cls.closed != 1 {
		t.Errorf("provider closed %d times, classifier %d times, want 1 each", prov.closed, cls.closed)
	}
}

func TestRun_AbortsOnBrokenSource(t *testing.T) {
	opts := testOptions()
	opts.MaxReadFailures = 4
	s := New(newFakeProvider(), happyClassifier(), nil, opts)
	defer s.Close()

	src := &brokenSource{}
	report, err := s.Run(context.Background(), "camera 0", src)
	if !errors.Is(err, camera.ErrSourceFailed) {
		t.Fatalf("expected ErrSourceFailed, got %v", err)
	}
	if src.reads != 4 {
		t.Errorf("read %d times, want 4", src.reads)
	}
	if report == nil || report.TotalFrames != 0 {
		t.Errorf("report = %+v, want an empty report", report)
	}
}
