// Package ui draws the preview window used by live tracking and
// calibration.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/gaze"
)

// Key codes returned by WaitKey
const (
	KeyEsc   = 27
	KeySpace = 32
)

var (
	green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	yellow = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Window manages the preview display
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a preview window of the given size
func NewWindow(name string, size gaze.Size) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(size.Width, size.Height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// Show displays a frame and updates the FPS counter
func (w *Window) Show(frame *gocv.Mat) {
	w.frameCount++
	now := time.Now()

	// Calculate FPS every second
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}

	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", w.fps), image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, green, 2)

	w.window.IMShow(*frame)
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}

// DrawTarget draws a calibration target with its capture progress
func DrawTarget(frame *gocv.Mat, target image.Point, captured, needed int) {
	gocv.Circle(frame, target, 18, red, 2)
	gocv.Circle(frame, target, 4, red, -1)
	gocv.Line(frame, target.Add(image.Pt(-26, 0)), target.Add(image.Pt(26, 0)), red, 1)
	gocv.Line(frame, target.Add(image.Pt(0, -26)), target.Add(image.Pt(0, 26)), red, 1)
	gocv.PutText(frame, fmt.Sprintf("%d/%d", captured, needed), target.Add(image.Pt(24, -24)),
		gocv.FontHersheyPlain, 1.5, white, 2)
}

// DrawGaze marks the mapped gaze point. Points from a fallback projection
// are drawn in yellow.
func DrawGaze(frame *gocv.Mat, r gaze.Result) {
	c := green
	if r.Outcome != gaze.OutcomeModel {
		c = yellow
	}
	p := image.Pt(int(r.Point.X), int(r.Point.Y))
	gocv.Circle(frame, p, 10, c, -1)
	gocv.Circle(frame, p, 14, white, 1)
}

// DrawFace outlines the tracked face
func DrawFace(frame *gocv.Mat, box image.Rectangle) {
	gocv.Rectangle(frame, box, green, 2)
}

// DrawStatus writes text lines below the FPS counter
func DrawStatus(frame *gocv.Mat, lines ...string) {
	for i, l := range lines {
		gocv.PutText(frame, l, image.Pt(10, 60+28*i), gocv.FontHersheyPlain, 1.5, green, 2)
	}
}

// DrawHeatmap blends the gaze heatmap over frame. Cells never visited are
// left untouched.
func DrawHeatmap(frame *gocv.Mat, g *gaze.Grid, alpha float64) {
	cols, rows := g.Dims()
	intensity := g.Intensity()
	levels := make([]byte, len(intensity))
	for i, v := range intensity {
		if v > 0 {
			levels[i] = byte(max(1, math.Round(255*v)))
		}
	}

	heat, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, levels)
	if err != nil {
		return
	}
	defer heat.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(heat, &scaled, image.Pt(frame.Cols(), frame.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(scaled, &colored, gocv.ColormapJet)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(*frame, 1-alpha, colored, alpha, 0, &blended)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(scaled, &mask, 0, 255, gocv.ThresholdBinary)
	blended.CopyToWithMask(frame, mask)
}
