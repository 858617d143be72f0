// Package detector finds faces and facial landmarks with insightface ONNX
// models and derives geometric expression signals from them.
package detector

import (
	"image"
	"math"
)

// Point represents a 2D point in image pixels
type Point struct {
	X, Y float32
}

// Dist returns the Euclidean distance to q
func (p Point) Dist(q Point) float32 {
	return float32(math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y)))
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Rect returns the box as an integer rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point // index 0
	RightEye   Point // index 1
	Nose       Point // index 2
	LeftMouth  Point // index 3
	RightMouth Point // index 4
}

// Points returns the landmarks in SCRFD output order
func (l Landmarks) Points() [5]Point {
	return [5]Point{l.LeftEye, l.RightEye, l.Nose, l.LeftMouth, l.RightMouth}
}

// Landmarks106 represents 106 facial landmark points from insightface
type Landmarks106 [106]Point

// Regions of the insightface 2d106det layout
var (
	contourIndices  = indexRange(0, 32)
	rightEyeIndices = indexRange(33, 42)
	mouthIndices    = indexRange(52, 71)
	leftEyeIndices  = indexRange(87, 96)
)

const (
	mouthCornerA = 52
	mouthCornerB = 61
	noseTip      = 86
)

func indexRange(from, to int) []int {
	idx := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		idx = append(idx, i)
	}
	return idx
}

// Points returns the landmark points at the given indices
func (l *Landmarks106) Points(indices []int) []Point {
	points := make([]Point, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(l) {
			points = append(points, l[idx])
		}
	}
	return points
}

// LeftEye returns the ten points outlining the subject's left eye
func (l *Landmarks106) LeftEye() []Point { return l.Points(leftEyeIndices) }

// RightEye returns the ten points outlining the subject's right eye
func (l *Landmarks106) RightEye() []Point { return l.Points(rightEyeIndices) }

// Mouth returns the twenty mouth points
func (l *Landmarks106) Mouth() []Point { return l.Points(mouthIndices) }

// Contour returns the jaw line from ear to ear
func (l *Landmarks106) Contour() []Point { return l.Points(contourIndices) }

// Nose returns the nose tip
func (l *Landmarks106) Nose() Point { return l[noseTip] }

// FivePoint extracts 5-point landmarks from 106-point landmarks. SCRFD
// orders eyes by image position, so its left eye is the subject's right.
func (l *Landmarks106) FivePoint() Landmarks {
	return Landmarks{
		LeftEye:    centroid(l.RightEye()),
		RightEye:   centroid(l.LeftEye()),
		Nose:       l[noseTip],
		LeftMouth:  l[mouthCornerA],
		RightMouth: l[mouthCornerB],
	}
}

// BoundingBox computes tight bounding box around all 106 points
func (l *Landmarks106) BoundingBox() BoundingBox {
	return boundsOf(l[:])
}

func boundsOf(points []Point) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return BoundingBox{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}

func centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float32(len(points))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Face represents a detected face
type Face struct {
	BoundingBox  BoundingBox
	Landmarks    Landmarks     // 5-point from SCRFD
	Landmarks106 *Landmarks106 // 106-point from 2d106det (optional)
	Score        float32
}

// Largest returns the face with the biggest box, or nil for none. Interview
// footage has one candidate; smaller boxes are background people or posters.
func Largest(faces []Face) *Face {
	if len(faces) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].BoundingBox.Area() > faces[best].BoundingBox.Area() {
			best = i
		}
	}
	f := faces[best]
	return &f
}
