package session

import (
	"fmt"
	"time"

	"github.com/dudu/interviewlens/internal/emotion"
	"github.com/dudu/interviewlens/internal/gaze"
)

// Counts is the exact frame accounting of a run
type Counts struct {
	TotalFrames      int `json:"total_frames"`
	AnalyzedFrames   int `json:"analyzed_frames"`
	NoFaceFrames     int `json:"no_face_frames"`
	LowQualityFrames int `json:"low_quality_frames"`
	GazeFailures     int `json:"gaze_failures"`
	GazeFallbacks    int `json:"gaze_fallbacks"`
	ClassifierErrors int `json:"classifier_errors"`
}

// GazeSummary describes where the candidate looked
type GazeSummary struct {
	Samples           int         `json:"samples"`
	CenterRatio       float64     `json:"center_ratio"`
	Focus             string      `json:"focus"`
	Hotspots          []gaze.Cell `json:"hotspots"`
	CalibrationMethod string      `json:"calibration_method"`
}

// Report is the outcome of one tracking run
type Report struct {
	SessionID string        `json:"session_id"`
	Source    string        `json:"source"`
	Mode      Mode          `json:"mode"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"` // stream time covered by analyzed frames

	Counts
	AnalyzedRatio float64 `json:"analyzed_ratio"`

	Emotions        map[string]float64 `json:"emotions"`
	DominantEmotion string             `json:"dominant_emotion"`
	StableLabels    map[string]int     `json:"stable_labels"`
	FinalLabel      string             `json:"final_label"`

	Gaze GazeSummary `json:"gaze"`

	Blinks     int     `json:"blinks"`
	BlinkRate  float64 `json:"blink_rate"`
	EyeClosure float64 `json:"eye_closure"`
	LipPress   float64 `json:"lip_press"`
	Tension    float64 `json:"tension"`
	Confidence float64 `json:"confidence"`

	Feedback []string `json:"feedback"`
}

// Report summarizes the state accumulated so far
func (s *Session) Report() *Report {
	r := &Report{
		SessionID: s.id,
		Source:    s.source,
		Mode:      s.opts.Mode,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		Duration:  s.metrics.last - s.metrics.first,
		Counts:    s.counts,
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now().UTC()
	}
	r.GazeFallbacks = s.mapper.Fallbacks()
	if r.TotalFrames > 0 {
		r.AnalyzedRatio = float64(r.AnalyzedFrames) / float64(r.TotalFrames)
	}

	var mean emotion.Vector
	if s.emotionFrames > 0 {
		for i := range mean {
			mean[i] = s.emotionSum[i] / float64(s.emotionFrames)
		}
		dominant, _ := mean.Max()
		r.DominantEmotion = dominant.String()
	}
	r.Emotions = mean.Map()

	r.StableLabels = make(map[string]int)
	for i, n := range s.labelCounts {
		if n > 0 {
			r.StableLabels[emotion.Class(i).String()] = n
		}
	}
	if label, ok := s.stabilizer.Stable(); ok {
		r.FinalLabel = label.String()
	}

	r.Gaze = GazeSummary{
		Samples:     s.grid.Total(),
		CenterRatio: s.grid.CenterRatio(),
		Focus:       s.grid.FocusLabel(),
		Hotspots:    s.grid.Hotspots(s.opts.Hotspots),
	}
	if m := s.mapper.Model(); m != nil {
		r.Gaze.CalibrationMethod = m.Method
	}

	r.Blinks = s.metrics.Blinks()
	r.BlinkRate = s.metrics.BlinkRate()
	r.EyeClosure = s.metrics.Closure()
	r.LipPress = s.metrics.LipPress()
	r.Tension = s.metrics.Tension()
	r.Confidence = Confidence(r.Gaze.CenterRatio, mean[emotion.Happy]+mean[emotion.Neutral], r.Tension)

	r.Feedback = feedback(r)
	return r
}

// feedback turns the report numbers into advice lines
func feedback(r *Report) []string {
	var lines []string

	lines = append(lines, fmt.Sprintf("Analyzed %d of %d frames (%.0f%%).",
		r.AnalyzedFrames, r.TotalFrames, 100*r.AnalyzedRatio))
	if r.TotalFrames > 0 && r.AnalyzedRatio < 0.5 {
		lines = append(lines, "Less than half of the frames were usable: improve lighting and keep your face in view.")
	}
	if r.AnalyzedFrames == 0 {
		return lines
	}

	switch r.Gaze.Focus {
	case gaze.FocusConcentrated:
		lines = append(lines, fmt.Sprintf("Good eye contact: %.0f%% of your gaze stayed near the centre.", r.Gaze.CenterRatio))
	case gaze.FocusDistributed:
		lines = append(lines, fmt.Sprintf("Your gaze wandered at times (%.0f%% centred). Try to return to the camera.", r.Gaze.CenterRatio))
	default:
		lines = append(lines, fmt.Sprintf("Your gaze was mostly away from the screen (%.0f%% centred). Practise looking at the camera.", r.Gaze.CenterRatio))
	}

	switch {
	case r.Tension >= 60:
		lines = append(lines, "You appeared tense: relax your jaw and take slower breaths.")
	case r.Tension >= 35:
		lines = append(lines, "Some tension was visible; a brief pause before answering can help.")
	default:
		lines = append(lines, "You looked relaxed.")
	}

	if r.BlinkRate > tenseBlinkRate {
		lines = append(lines, fmt.Sprintf("Frequent blinking (%.0f per minute) can read as nervousness.", r.BlinkRate))
	}

	positive := r.Emotions[emotion.Happy.String()] + r.Emotions[emotion.Neutral.String()]
	if positive < 0.5 {
		lines = append(lines, fmt.Sprintf("Your expression read as mostly %s. A light smile makes answers feel more open.", r.DominantEmotion))
	} else if r.DominantEmotion == emotion.Happy.String() {
		lines = append(lines, "Your expression came across as positive and engaged.")
	}

	lines = append(lines, fmt.Sprintf("Overall confidence score: %.0f/100.", r.Confidence))
	return lines
}
