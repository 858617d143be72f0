package gaze

import (
	"errors"

	"gocv.io/x/gocv"
)

// fitHomography estimates a 3x3 projective transform from angles to
// targets with RANSAC.
func fitHomography(samples []Sample, ransacThreshold float64) (*Model, error) {
	src, dst := pointMats(samples)
	defer src.Close()
	defer dst.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(src, dst, gocv.HomographyMethodRANSAC, ransacThreshold, &mask, 2000, 0.995)
	defer h.Close()

	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return nil, errors.New("homography: estimation returned no transform")
	}

	matrix := make([]float64, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			matrix[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	return &Model{Kind: KindProjective, Matrix: matrix}, nil
}

// fitAffine estimates a 2x3 affine transform from angles to targets with RANSAC.
func fitAffine(samples []Sample, ransacThreshold float64) (*Model, error) {
	from := make([]gocv.Point2f, len(samples))
	to := make([]gocv.Point2f, len(samples))
	for i, s := range samples {
		from[i] = gocv.Point2f{X: float32(s.Yaw), Y: float32(s.Pitch)}
		to[i] = gocv.Point2f{X: float32(s.TargetX), Y: float32(s.TargetY)}
	}

	fromVec := gocv.NewPoint2fVectorFromPoints(from)
	defer fromVec.Close()
	toVec := gocv.NewPoint2fVectorFromPoints(to)
	defer toVec.Close()

	inliers := gocv.NewMat()
	defer inliers.Close()

	t := gocv.EstimateAffine2DWithParams(fromVec, toVec, inliers, int(gocv.HomographyMethodRANSAC),
		ransacThreshold, 2000, 0.99, 10)
	defer t.Close()

	if t.Empty() || t.Rows() != 2 || t.Cols() != 3 {
		return nil, errors.New("affine: estimation returned no transform")
	}

	matrix := make([]float64, 6)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			matrix[r*3+c] = t.GetDoubleAt(r, c)
		}
	}
	return &Model{Kind: KindAffine, Matrix: matrix}, nil
}

// pointMats packs sample angles and targets into Nx2 float32 matrices
func pointMats(samples []Sample) (gocv.Mat, gocv.Mat) {
	src := gocv.NewMatWithSize(len(samples), 2, gocv.MatTypeCV32F)
	dst := gocv.NewMatWithSize(len(samples), 2, gocv.MatTypeCV32F)
	for i, s := range samples {
		src.SetFloatAt(i, 0, float32(s.Yaw))
		src.SetFloatAt(i, 1, float32(s.Pitch))
		dst.SetFloatAt(i, 0, float32(s.TargetX))
		dst.SetFloatAt(i, 1, float32(s.TargetY))
	}
	return src, dst
}
