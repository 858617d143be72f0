package camera

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// File reads frames from a recorded video
type File struct {
	video  *gocv.VideoCapture
	path   string
	fps    float64
	width  int
	height int
	frames int
	index  int
}

// OpenFile opens a video file for sequential reading
func OpenFile(path string) (*File, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}

	fps := video.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 30
	}

	return &File{
		video:  video,
		path:   path,
		fps:    fps,
		width:  int(video.Get(gocv.VideoCaptureFrameWidth)),
		height: int(video.Get(gocv.VideoCaptureFrameHeight)),
		frames: int(video.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// Read decodes the next frame or returns ErrEndOfStream
func (f *File) Read() (Frame, error) {
	if f.video == nil {
		return Frame{}, ErrEndOfStream
	}

	mat := gocv.NewMat()
	if ok := f.video.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, ErrEndOfStream
	}

	// container timestamps are unreliable in some encodings, derive from fps
	ts := time.Duration(float64(f.index) / f.fps * float64(time.Second))
	frame := Frame{Mat: mat, Index: f.index, Timestamp: ts}
	f.index++
	return frame, nil
}

// Path returns the file path
func (f *File) Path() string {
	return f.path
}

// FPS returns the nominal frame rate
func (f *File) FPS() float64 {
	return f.fps
}

// FrameCount returns the container's frame count, 0 if unknown
func (f *File) FrameCount() int {
	return f.frames
}

// Width returns frame width
func (f *File) Width() int {
	return f.width
}

// Height returns frame height
func (f *File) Height() int {
	return f.height
}

// Close releases the decoder
func (f *File) Close() error {
	if f.video != nil {
		err := f.video.Close()
		f.video = nil
		return err
	}
	return nil
}
