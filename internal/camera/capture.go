// Package camera provides frame sources for analysis: a live webcam and
// recorded video files.
package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by Read once a source has no more frames.
// It marks normal termination.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one decoded image with its position in the stream
type Frame struct {
	Mat       gocv.Mat
	Index     int
	Timestamp time.Duration
}

// Close releases the frame's pixel buffer
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Source yields frames in order. The caller owns every returned frame.
type Source interface {
	Read() (Frame, error)
	Width() int
	Height() int
	Close() error
}

// Capture manages webcam capture
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int
	started   time.Time
	index     int
	mu        sync.Mutex
}

// NewCapture creates a new camera capture from device with default 720p resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 1280, 720)
}

// NewCaptureWithResolution creates a new camera capture with specified resolution
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	// Camera may not support requested resolution
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:    webcam,
		deviceID:  deviceID,
		targetFPS: targetFPS,
		width:     actualWidth,
		height:    actualHeight,
	}, nil
}

// Read grabs the next webcam frame, timestamped from the first read
func (c *Capture) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return Frame{}, ErrEndOfStream
	}

	mat := gocv.NewMat()
	if ok := c.webcam.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, fmt.Errorf("failed to read frame from camera %d", c.deviceID)
	}

	now := time.Now()
	if c.index == 0 {
		c.started = now
	}
	f := Frame{Mat: mat, Index: c.index, Timestamp: now.Sub(c.started)}
	c.index++
	return f, nil
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
