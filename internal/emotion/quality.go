package emotion

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrLowQualityFrame is returned when a face crop is too dark or too blurry
// for its emotion estimate to be trusted.
var ErrLowQualityFrame = errors.New("low quality frame")

// Quality holds the measured properties of a face crop
type Quality struct {
	Brightness float64
	Sharpness  float64
	Accepted   bool
}

// Gate rejects crops below brightness and sharpness thresholds
type Gate struct {
	minBrightness float64
	minSharpness  float64
}

// NewGate creates a quality gate using the thresholds from cfg
func NewGate(cfg Config) *Gate {
	return &Gate{
		minBrightness: cfg.MinBrightness,
		minSharpness:  cfg.MinSharpness,
	}
}

// Measure computes brightness as mean gray intensity and sharpness as the
// variance of the Laplacian. An empty crop measures zero on both.
func (g *Gate) Measure(crop gocv.Mat) Quality {
	if crop.Empty() {
		return Quality{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch crop.Channels() {
	case 1:
		crop.CopyTo(&gray)
	case 4:
		gocv.CvtColor(crop, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)
	}

	brightness := gray.Mean().Val1

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)
	sd := stddev.GetDoubleAt(0, 0)

	q := Quality{
		Brightness: brightness,
		Sharpness:  sd * sd,
	}
	q.Accepted = q.Brightness >= g.minBrightness && q.Sharpness >= g.minSharpness
	return q
}

// Check measures the crop and returns ErrLowQualityFrame when it is rejected
func (g *Gate) Check(crop gocv.Mat) (Quality, error) {
	q := g.Measure(crop)
	if !q.Accepted {
		return q, fmt.Errorf("%w: brightness %.1f (min %.1f), sharpness %.1f (min %.1f)",
			ErrLowQualityFrame, q.Brightness, g.minBrightness, q.Sharpness, g.minSharpness)
	}
	return q, nil
}
