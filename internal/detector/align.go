package detector

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ArcFace reference landmarks for a 112x112 aligned face
var referenceLandmarks = [5]Point{
	{X: 38.2946, Y: 51.6963}, // left eye
	{X: 73.5318, Y: 51.5014}, // right eye
	{X: 56.0252, Y: 71.7366}, // nose
	{X: 41.5493, Y: 92.3655}, // left mouth
	{X: 70.7299, Y: 92.2041}, // right mouth
}

const referenceSize = 112

// Similarity is a 2D rotation, uniform scale and translation:
// x' = A*x - B*y + TX, y' = B*x + A*y + TY with A = s*cos, B = s*sin.
type Similarity struct {
	A, B, TX, TY float64
}

// Apply transforms p
func (s Similarity) Apply(p Point) Point {
	x, y := float64(p.X), float64(p.Y)
	return Point{
		X: float32(s.A*x - s.B*y + s.TX),
		Y: float32(s.B*x + s.A*y + s.TY),
	}
}

// Scale returns the uniform scale factor
func (s Similarity) Scale() float64 {
	return math.Hypot(s.A, s.B)
}

// Mat returns the transform as a 2x3 CV64F matrix; the caller closes it
func (s Similarity) Mat() gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, s.A)
	m.SetDoubleAt(0, 1, -s.B)
	m.SetDoubleAt(0, 2, s.TX)
	m.SetDoubleAt(1, 0, s.B)
	m.SetDoubleAt(1, 1, s.A)
	m.SetDoubleAt(1, 2, s.TY)
	return m
}

// EstimateSimilarity computes the least squares similarity transform
// mapping src onto dst
func EstimateSimilarity(src, dst []Point) (Similarity, error) {
	n := len(src)
	if n < 2 || n != len(dst) {
		return Similarity{}, fmt.Errorf("need at least 2 point pairs, got %d and %d", len(src), len(dst))
	}

	srcC, dstC := centroid(src), centroid(dst)

	// cross terms of the centred point sets
	var a11, a12, a21, a22, srcNorm float64
	for i := 0; i < n; i++ {
		sx := float64(src[i].X - srcC.X)
		sy := float64(src[i].Y - srcC.Y)
		dx := float64(dst[i].X - dstC.X)
		dy := float64(dst[i].Y - dstC.Y)

		a11 += sx * dx
		a12 += sx * dy
		a21 += sy * dx
		a22 += sy * dy
		srcNorm += sx*sx + sy*sy
	}
	if srcNorm < 1e-10 {
		return Similarity{}, fmt.Errorf("source points are coincident")
	}

	// closed form: s*cos = (a11+a22)/|src|², s*sin = (a12-a21)/|src|²
	A := (a11 + a22) / srcNorm
	B := (a12 - a21) / srcNorm

	cx, cy := float64(srcC.X), float64(srcC.Y)
	return Similarity{
		A:  A,
		B:  B,
		TX: float64(dstC.X) - (A*cx - B*cy),
		TY: float64(dstC.Y) - (B*cx + A*cy),
	}, nil
}

// Aligner warps faces into a canonical crop for the emotion classifier and
// the quality gate
type Aligner struct {
	size int
	dst  []Point
}

// NewAligner creates an aligner producing size x size crops
func NewAligner(size int) *Aligner {
	scale := float32(size) / referenceSize
	dst := make([]Point, len(referenceLandmarks))
	for i, p := range referenceLandmarks {
		dst[i] = Point{X: p.X * scale, Y: p.Y * scale}
	}
	return &Aligner{size: size, dst: dst}
}

// Size returns the crop edge length
func (a *Aligner) Size() int {
	return a.size
}

// Align returns the aligned crop; the caller closes it
func (a *Aligner) Align(img gocv.Mat, landmarks Landmarks) (gocv.Mat, error) {
	src := landmarks.Points()
	t, err := EstimateSimilarity(src[:], a.dst)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to align face: %w", err)
	}

	m := t.Mat()
	defer m.Close()

	aligned := gocv.NewMat()
	gocv.WarpAffine(img, &aligned, m, image.Pt(a.size, a.size))
	return aligned, nil
}
