// Package gaze converts gaze vectors to screen coordinates: angle conversion,
// calibration model fitting, per-frame mapping and heatmap accumulation.
package gaze

import (
	"math"

	"github.com/golang/geo/r3"
)

// Angles is a gaze direction in radians
type Angles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Point is a screen coordinate in window pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a window or screen resolution in pixels
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ToAngles converts a camera-relative unit gaze vector to yaw/pitch.
// Calibration and mapping must both go through this function.
func ToAngles(v r3.Vector) Angles {
	return Angles{
		Yaw:   math.Atan2(-v.X, -v.Z),
		Pitch: math.Asin(clamp(-v.Y, -1, 1)),
	}
}

// Vector returns the unit gaze vector that ToAngles maps back to a
func (a Angles) Vector() r3.Vector {
	cp := math.Cos(a.Pitch)
	return r3.Vector{
		X: -math.Sin(a.Yaw) * cp,
		Y: -math.Sin(a.Pitch),
		Z: -math.Cos(a.Yaw) * cp,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
