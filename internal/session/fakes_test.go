package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/camera"
	"github.com/dudu/interviewlens/internal/detector"
	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/provider"
)

// step scripts what the fake provider does for one frame
type step int

const (
	stepOK step = iota
	stepNoFace
	stepGazeFail
	stepPanic
)

type fakeProvider struct {
	plan     []step
	current  step
	gaze     r3.Vector
	closed   int
	closeErr error
}

func newFakeProvider(plan ...step) *fakeProvider {
	return &fakeProvider{plan: plan, gaze: r3.Vector{X: 0, Y: 0, Z: -1}}
}

// frontalFace puts the five landmarks where the aligner maps them 1:1 into
// the crop, so the crop is the frame region at (100, 50)
func frontalFace() *detector.Face {
	off := func(x, y float32) detector.Point { return detector.Point{X: x + 100, Y: y + 50} }
	return &detector.Face{
		BoundingBox: detector.BoundingBox{X1: 100, Y1: 50, X2: 212, Y2: 162},
		Landmarks: detector.Landmarks{
			LeftEye:    off(38.2946, 51.6963),
			RightEye:   off(73.5318, 51.5014),
			Nose:       off(56.0252, 71.7366),
			LeftMouth:  off(41.5493, 92.3655),
			RightMouth: off(70.7299, 92.2041),
		},
		Score: 0.9,
	}
}

func (p *fakeProvider) Detect(frame gocv.Mat) (*detector.Face, error) {
	p.current = stepOK
	if len(p.plan) > 0 {
		p.current, p.plan = p.plan[0], p.plan[1:]
	}
	switch p.current {
	case stepNoFace:
		return nil, provider.ErrNoFaceDetected
	case stepPanic:
		panic("detector blew up")
	}
	return frontalFace(), nil
}

func (p *fakeProvider) EstimateGaze(frame gocv.Mat, face *detector.Face) (r3.Vector, error) {
	if p.current == stepGazeFail {
		return r3.Vector{}, provider.ErrGazeEstimation
	}
	return p.gaze, nil
}

func (p *fakeProvider) Close() error {
	p.closed++
	return p.closeErr
}

type fakeClassifier struct {
	out    emotion.Vector
	fail   bool
	calls  int
	closed int
}

func happyClassifier() *fakeClassifier {
	r := 0.1 / 6
	return &fakeClassifier{out: emotion.Vector{r, r, r, 0.9, r, r, r}}
}

func (c *fakeClassifier) Predict(crop gocv.Mat) (emotion.Vector, error) {
	c.calls++
	if c.fail {
		return emotion.Vector{}, errors.New("model exploded")
	}
	return c.out, nil
}

func (c *fakeClassifier) Close() error {
	c.closed++
	return nil
}

// sliceSource replays frames, cloning each so the session can close it
type sliceSource struct {
	frames []gocv.Mat
	next   int
}

func (s *sliceSource) Read() (camera.Frame, error) {
	if s.next >= len(s.frames) {
		return camera.Frame{}, camera.ErrEndOfStream
	}
	f := camera.Frame{
		Mat:       s.frames[s.next].Clone(),
		Index:     s.next,
		Timestamp: time.Duration(s.next) * 100 * time.Millisecond,
	}
	s.next++
	return f, nil
}

// brokenSource fails every read
type brokenSource struct {
	reads int
}

func (s *brokenSource) Read() (camera.Frame, error) {
	s.reads++
	return camera.Frame{}, errors.New("device unplugged")
}

func (s *brokenSource) Width() int   { return 320 }
func (s *brokenSource) Height() int  { return 240 }
func (s *brokenSource) Close() error { return nil }

func (s *sliceSource) Width() int   { return 320 }
func (s *sliceSource) Height() int  { return 240 }
func (s *sliceSource) Close() error { return nil }

type fakeSink struct {
	snaps []Snapshot
}

func (s *fakeSink) Publish(ctx context.Context, snap Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return nil
}

// texturedFrame has 4 pixel vertical stripes of 78 and 178, mean 128
func texturedFrame() gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(78, 78, 78, 0), 240, 320, gocv.MatTypeCV8UC3)
	for x := 0; x < 320; x += 8 {
		gocv.Rectangle(&m, image.Rect(x+4, 0, x+8, 240), color.RGBA{R: 178, G: 178, B: 178, A: 255}, -1)
	}
	return m
}

func darkFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(5, 5, 5, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func frameAt(m gocv.Mat, i int) camera.Frame {
	return camera.Frame{Mat: m, Index: i, Timestamp: time.Duration(i) * 100 * time.Millisecond}
}

func testOptions() Options {
	opts := DefaultOptions(ModeVideo)
	opts.Window.Width, opts.Window.Height = 1280, 720
	opts.SnapshotEvery = 0
	return opts
}
