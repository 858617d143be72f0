package detector

import (
	"github.com/dudu/interviewlens/internal/emotion"
)

const (
	// mouth width over inter-ocular distance: ~0.8 at rest, ~1.1 in a broad smile
	restMouthWidth  = 0.8
	smileWidthRange = 0.3

	// lift is the corner rise over mouth width
	curvatureGain = 2.0
	smileLiftGain = 4.0

	// outer-lip height over width at which the lips count as fully relaxed
	lipRelaxedRatio = 0.35
)

// ExtractSignals derives smile, eye openness, lip press and mouth curvature
// from 106-point landmarks. Signals whose geometry is degenerate are nil.
func ExtractSignals(l *Landmarks106) emotion.Signals {
	var s emotion.Signals
	if l == nil {
		return s
	}

	eyeA, okA := openness(l.RightEye())
	eyeB, okB := openness(l.LeftEye())
	switch {
	case okA && okB:
		s.EyeOpenRatio = emotion.Float((eyeA + eyeB) / 2)
	case okA:
		s.EyeOpenRatio = emotion.Float(eyeA)
	case okB:
		s.EyeOpenRatio = emotion.Float(eyeB)
	}

	mouth := l.Mouth()
	cornerA, cornerB := l[mouthCornerA], l[mouthCornerB]
	width := float64(cornerA.Dist(cornerB))
	if width < 1e-6 {
		return s
	}

	// image y grows downward, so corners above the centre give a positive lift
	center := centroid(mouth)
	lift := (float64(center.Y) - float64(cornerA.Y+cornerB.Y)/2) / width
	s.MouthCurvature = emotion.Float(unit(0.5 + curvatureGain*lift))

	bounds := boundsOf(mouth)
	opening := float64(bounds.Height()) / width
	s.LipPressScore = emotion.Float(unit(1 - opening/lipRelaxedRatio))

	interocular := float64(centroid(l.RightEye()).Dist(centroid(l.LeftEye())))
	if interocular > 1e-6 {
		widthScore := unit((width/interocular - restMouthWidth) / smileWidthRange)
		liftScore := unit(smileLiftGain * lift)
		s.SmileScore = emotion.Float(unit(0.6*widthScore + 0.4*liftScore))
	}

	return s
}

// openness returns the height over width of an eye outline
func openness(eye []Point) (float64, bool) {
	b := boundsOf(eye)
	if b.Width() < 1e-6 {
		return 0, false
	}
	return float64(b.Height()) / float64(b.Width()), true
}

func unit(x float64) float64 {
	return min(max(x, 0), 1)
}
