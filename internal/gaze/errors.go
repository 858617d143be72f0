package gaze

import "errors"

var (
	// ErrInsufficientSamples is returned when fewer than MinSamples are given to the fitter
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrCalibrationFailed is returned when every fitting method failed
	ErrCalibrationFailed = errors.New("calibration failed")

	// ErrTransformEvaluation marks a model that could not be evaluated for a frame
	ErrTransformEvaluation = errors.New("transform evaluation failed")
)
