package gaze

import (
	"fmt"
	"math"
)

// Kind identifies the active variant of a calibration model
type Kind string

const (
	KindProjective  Kind = "projective"
	KindAffine      Kind = "affine"
	KindPolynomial  Kind = "polynomial"
	KindRadialBasis Kind = "radial_basis"
)

// Kernel is a radial basis function kernel
type Kernel string

const (
	KernelMultiquadric Kernel = "multiquadric"
	KernelThinPlate    Kernel = "thin_plate"
	KernelGaussian     Kernel = "gaussian"
)

// Method tags, in the order the fitter attempts them
const (
	MethodHomography      = "homography"
	MethodAffine          = "affine"
	MethodPoly2           = "poly2"
	MethodPoly3           = "poly3"
	MethodRBFMultiquadric = "rbf_multiquadric"
	MethodRBFThinPlate    = "rbf_thin_plate"
	MethodRBFGaussian     = "rbf_gaussian"
)

// Model maps gaze angles to screen coordinates. Exactly one variant is
// active, selected by Kind; the fields of the other variants are empty.
type Model struct {
	Kind   Kind   `json:"kind"`
	Method string `json:"method"`

	// Projective: 3x3 row-major. Affine: first 6 entries, 2x3 row-major.
	Matrix []float64 `json:"matrix,omitempty"`

	// Polynomial
	Degree  int       `json:"degree,omitempty"`
	CoeffsX []float64 `json:"coeffs_x,omitempty"`
	CoeffsY []float64 `json:"coeffs_y,omitempty"`

	// Radial basis
	Centers  []Angles  `json:"centers,omitempty"`
	WeightsX []float64 `json:"weights_x,omitempty"`
	WeightsY []float64 `json:"weights_y,omitempty"`
	Kernel   Kernel    `json:"kernel,omitempty"`
	Epsilon  float64   `json:"epsilon,omitempty"`
}

// denomEpsilon is the smallest homogeneous denominator accepted by the projective variant
const denomEpsilon = 1e-9

// Apply evaluates the model at the given angles. Any failure, including a
// panic raised while evaluating, is reported as ErrTransformEvaluation.
func (m *Model) Apply(a Angles) (p Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransformEvaluation, r)
		}
	}()

	if m == nil {
		return Point{}, fmt.Errorf("%w: nil model", ErrTransformEvaluation)
	}

	switch m.Kind {
	case KindProjective:
		p, err = m.applyProjective(a)
	case KindAffine:
		p, err = m.applyAffine(a)
	case KindPolynomial:
		p, err = m.applyPolynomial(a)
	case KindRadialBasis:
		p, err = m.applyRadialBasis(a)
	default:
		err = fmt.Errorf("%w: unknown model kind %q", ErrTransformEvaluation, m.Kind)
	}
	if err != nil {
		return Point{}, err
	}

	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return Point{}, fmt.Errorf("%w: non-finite result", ErrTransformEvaluation)
	}
	return p, nil
}

func (m *Model) applyProjective(a Angles) (Point, error) {
	h := m.Matrix
	if len(h) != 9 {
		return Point{}, fmt.Errorf("%w: projective matrix has %d entries", ErrTransformEvaluation, len(h))
	}

	w := h[6]*a.Yaw + h[7]*a.Pitch + h[8]
	if math.Abs(w) < denomEpsilon {
		return Point{}, fmt.Errorf("%w: homogeneous denominator %.3g", ErrTransformEvaluation, w)
	}

	return Point{
		X: (h[0]*a.Yaw + h[1]*a.Pitch + h[2]) / w,
		Y: (h[3]*a.Yaw + h[4]*a.Pitch + h[5]) / w,
	}, nil
}

func (m *Model) applyAffine(a Angles) (Point, error) {
	t := m.Matrix
	if len(t) < 6 {
		return Point{}, fmt.Errorf("%w: affine matrix has %d entries", ErrTransformEvaluation, len(t))
	}

	// A degenerate linear part collapses every gaze onto a line
	if math.Abs(t[0]*t[4]-t[1]*t[3]) < denomEpsilon {
		return Point{}, fmt.Errorf("%w: singular affine transform", ErrTransformEvaluation)
	}

	return Point{
		X: t[0]*a.Yaw + t[1]*a.Pitch + t[2],
		Y: t[3]*a.Yaw + t[4]*a.Pitch + t[5],
	}, nil
}

func (m *Model) applyPolynomial(a Angles) (Point, error) {
	basis := polyBasis(a, m.Degree)
	if len(m.CoeffsX) != len(basis) || len(m.CoeffsY) != len(basis) {
		return Point{}, fmt.Errorf("%w: degree %d expects %d coefficients, got %d/%d",
			ErrTransformEvaluation, m.Degree, len(basis), len(m.CoeffsX), len(m.CoeffsY))
	}
	return Point{X: dot(basis, m.CoeffsX), Y: dot(basis, m.CoeffsY)}, nil
}

func (m *Model) applyRadialBasis(a Angles) (Point, error) {
	n := len(m.Centers)
	if n == 0 || len(m.WeightsX) != n || len(m.WeightsY) != n {
		return Point{}, fmt.Errorf("%w: %d centers with %d/%d weights",
			ErrTransformEvaluation, n, len(m.WeightsX), len(m.WeightsY))
	}

	var p Point
	for i, c := range m.Centers {
		phi := m.Kernel.eval(distance(a, c), m.Epsilon)
		p.X += m.WeightsX[i] * phi
		p.Y += m.WeightsY[i] * phi
	}
	return p, nil
}

// polyBasis expands (yaw, pitch) in graded lexicographic order:
// 1, y, p, y², yp, p², y³, y²p, yp², p³
func polyBasis(a Angles, degree int) []float64 {
	basis := []float64{1}
	for d := 1; d <= degree; d++ {
		for py := 0; py <= d; py++ {
			basis = append(basis, math.Pow(a.Yaw, float64(d-py))*math.Pow(a.Pitch, float64(py)))
		}
	}
	return basis
}

func (k Kernel) eval(r, eps float64) float64 {
	switch k {
	case KernelMultiquadric:
		return math.Sqrt((r/eps)*(r/eps) + 1)
	case KernelGaussian:
		return math.Exp(-(r / eps) * (r / eps))
	case KernelThinPlate:
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	}
	panic(fmt.Sprintf("unknown kernel %q", k))
}

func distance(a, b Angles) float64 {
	return math.Hypot(a.Yaw-b.Yaw, a.Pitch-b.Pitch)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
