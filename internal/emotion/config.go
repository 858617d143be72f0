package emotion

// Config holds the thresholds for one operating mode. Webcam frames are
// noisier than recorded video, so the webcam preset is looser.
type Config struct {
	// Quality gate
	MinBrightness float64 `yaml:"min_brightness" validate:"gte=0,lte=255"`
	MinSharpness  float64 `yaml:"min_sharpness" validate:"gte=0"`

	// Smile boost
	SmileThreshold  float64 `yaml:"smile_threshold" validate:"gte=0,lte=1"`
	HappyTargetGain float64 `yaml:"happy_target_gain" validate:"gte=0"`
	HappyTargetCap  float64 `yaml:"happy_target_cap" validate:"gte=0,lte=1"`
	DonorCap        float64 `yaml:"donor_cap" validate:"gte=0,lte=1"` // Fraction of a donor's mass it may give per rule

	// Neutral boost
	EyeOpenThreshold float64 `yaml:"eye_open_threshold" validate:"gte=0"`
	NeutralTarget    float64 `yaml:"neutral_target" validate:"gte=0,lte=1"`

	// Surprise to happy
	SurpriseTransferCap float64 `yaml:"surprise_transfer_cap" validate:"gte=0,lte=1"`

	// Ceilings
	DisgustCeiling      float64 `yaml:"disgust_ceiling" validate:"gte=0,lte=1"`
	AngerCeiling        float64 `yaml:"anger_ceiling" validate:"gte=0,lte=1"`
	CeilingNeutralShare float64 `yaml:"ceiling_neutral_share" validate:"gte=0,lte=1"`

	// Curvature floor
	CurvatureGate    float64 `yaml:"curvature_gate" validate:"gte=0,lte=1"`
	HappyFloorGain   float64 `yaml:"happy_floor_gain" validate:"gte=0,lte=1"`
	NeutralFloorGain float64 `yaml:"neutral_floor_gain" validate:"gte=0,lte=1"`

	// Temporal
	SmoothingWindow     int     `yaml:"smoothing_window" validate:"gte=1"`
	LabelWindow         int     `yaml:"label_window" validate:"gte=1"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
}

// VideoConfig returns the preset for recorded video
func VideoConfig() Config {
	return Config{
		MinBrightness: 40,
		MinSharpness:  60,

		SmileThreshold:  0.3,
		HappyTargetGain: 0.8,
		HappyTargetCap:  0.7,
		DonorCap:        0.8,

		EyeOpenThreshold: 0.2,
		NeutralTarget:    0.45,

		SurpriseTransferCap: 0.15,

		DisgustCeiling:      0.4,
		AngerCeiling:        0.5,
		CeilingNeutralShare: 0.7,

		CurvatureGate:    0.45,
		HappyFloorGain:   0.5,
		NeutralFloorGain: 0.3,

		SmoothingWindow:     7,
		LabelWindow:         15,
		ConfidenceThreshold: 0.4,
	}
}

// WebcamConfig returns the preset for live webcam input
func WebcamConfig() Config {
	cfg := VideoConfig()
	cfg.MinBrightness = 25
	cfg.MinSharpness = 15
	cfg.SmileThreshold = 0.25
	cfg.DonorCap = 0.85
	cfg.NeutralTarget = 0.5
	cfg.SmoothingWindow = 5
	cfg.LabelWindow = 10
	cfg.ConfidenceThreshold = 0.35
	return cfg
}
