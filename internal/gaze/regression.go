package gaze

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the relative singular value cutoff for least squares
const rankTolerance = 1e-12

// fitPolynomial regresses x and y independently on the polynomial basis,
// taking the minimum-norm least squares solution so that under-determined
// systems (few targets, high degree) still fit.
func fitPolynomial(samples []Sample, degree int) (*Model, error) {
	cols := len(polyBasis(Angles{}, degree))

	a := mat.NewDense(len(samples), cols, nil)
	b := mat.NewDense(len(samples), 2, nil)
	for i, s := range samples {
		a.SetRow(i, polyBasis(s.Angles, degree))
		b.Set(i, 0, float64(s.TargetX))
		b.Set(i, 1, float64(s.TargetY))
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("polynomial: SVD did not converge")
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return nil, errors.New("polynomial: design matrix has rank 0")
	}

	var coeffs mat.Dense
	svd.SolveTo(&coeffs, b, rank)

	return &Model{
		Kind:    KindPolynomial,
		Degree:  degree,
		CoeffsX: mat.Col(nil, 0, &coeffs),
		CoeffsY: mat.Col(nil, 1, &coeffs),
	}, nil
}

// fitRadialBasis builds the exact interpolant through every sample for x
// and y. Coincident samples make the system singular and fail the method.
func fitRadialBasis(samples []Sample, kernel Kernel) (*Model, error) {
	n := len(samples)
	centers := make([]Angles, n)
	for i, s := range samples {
		centers[i] = s.Angles
	}

	eps, err := averageSpacing(centers)
	if err != nil {
		return nil, err
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, kernel.eval(distance(centers[i], centers[j]), eps))
		}
		b.Set(i, 0, float64(samples[i].TargetX))
		b.Set(i, 1, float64(samples[i].TargetY))
	}

	var w mat.Dense
	if err := w.Solve(a, b); err != nil {
		return nil, fmt.Errorf("rbf %s: %w", kernel, err)
	}

	return &Model{
		Kind:     KindRadialBasis,
		Centers:  centers,
		WeightsX: mat.Col(nil, 0, &w),
		WeightsY: mat.Col(nil, 1, &w),
		Kernel:   kernel,
		Epsilon:  eps,
	}, nil
}

// averageSpacing approximates the average distance between nodes from the
// bounding box volume per node, ignoring flat dimensions.
func averageSpacing(centers []Angles) (float64, error) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	minP, maxP := math.Inf(1), math.Inf(-1)
	for _, c := range centers {
		minY, maxY = math.Min(minY, c.Yaw), math.Max(maxY, c.Yaw)
		minP, maxP = math.Min(minP, c.Pitch), math.Max(maxP, c.Pitch)
	}

	prod, dims := 1.0, 0
	for _, edge := range []float64{maxY - minY, maxP - minP} {
		if edge > 0 {
			prod *= edge
			dims++
		}
	}
	if dims == 0 {
		return 0, errors.New("rbf: all samples share the same angles")
	}
	return math.Pow(prod/float64(len(centers)), 1/float64(dims)), nil
}
