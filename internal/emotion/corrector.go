package emotion

import "math"

// Rule is one redistribution step. Rules move probability mass between
// classes without creating or destroying it.
type Rule struct {
	Name  string
	Apply func(v Vector, s Signals) Vector
}

// Corrector shifts probability mass using landmark signals to counter the
// classifier's bias toward negative classes on neutral or smiling faces.
type Corrector struct {
	cfg   Config
	rules []Rule
}

// NewCorrector creates a corrector with the fixed rule order: smile boost,
// neutral boost, surprise to happy, ceilings, curvature floor.
func NewCorrector(cfg Config) *Corrector {
	c := &Corrector{cfg: cfg}
	c.rules = []Rule{
		{"smile_boost", c.smileBoost},
		{"neutral_boost", c.neutralBoost},
		{"surprise_to_happy", c.surpriseToHappy},
		{"ceilings", c.ceilings},
		{"curvature_floor", c.curvatureFloor},
	}
	return c
}

// Rules returns the pipeline's rules in order
func (c *Corrector) Rules() []Rule {
	return c.rules
}

// Apply runs every rule and renormalizes the result once
func (c *Corrector) Apply(v Vector, s Signals) Vector {
	for _, r := range c.rules {
		v = r.Apply(v, s)
	}
	return v.Normalize()
}

func (c *Corrector) smiling(s Signals) bool {
	return s.SmileScore != nil && *s.SmileScore > c.cfg.SmileThreshold
}

func (c *Corrector) eyesOpen(s Signals) bool {
	return s.EyeOpenRatio != nil && *s.EyeOpenRatio >= c.cfg.EyeOpenThreshold
}

func (c *Corrector) smileBoost(v Vector, s Signals) Vector {
	if !c.smiling(s) {
		return v
	}
	target := math.Min(c.cfg.HappyTargetCap, *s.SmileScore*c.cfg.HappyTargetGain)
	transfer(&v, Happy, target-v[Happy], []Class{Anger, Disgust, Fear, Sad}, c.cfg.DonorCap)
	return v
}

// neutralBoost lifts neutral on a blank face: a measured non-smile with open eyes
func (c *Corrector) neutralBoost(v Vector, s Signals) Vector {
	if s.SmileScore == nil || *s.SmileScore > c.cfg.SmileThreshold || !c.eyesOpen(s) {
		return v
	}
	need := c.cfg.NeutralTarget - v[Neutral]
	if need <= 0 {
		return v
	}

	donors := []Class{Anger, Disgust, Fear, Sad, Surprise}
	var pool float64
	for _, d := range donors {
		pool += v[d]
	}
	if pool <= 0 {
		return v
	}

	take := math.Min(need, pool*c.cfg.DonorCap)
	var moved float64
	for _, d := range donors {
		give := take * v[d] / pool
		v[d] -= give
		moved += give
	}
	v[Neutral] += moved
	return v
}

func (c *Corrector) surpriseToHappy(v Vector, s Signals) Vector {
	if !c.smiling(s) {
		return v
	}
	amount := math.Min(0.5*v[Surprise], c.cfg.SurpriseTransferCap)
	v[Surprise] -= amount
	v[Happy] += amount
	return v
}

// ceilings clip disgust and anger; the excess goes mostly to neutral and
// the remainder is split between fear and sad
func (c *Corrector) ceilings(v Vector, _ Signals) Vector {
	limits := []struct {
		class   Class
		ceiling float64
	}{
		{Disgust, c.cfg.DisgustCeiling},
		{Anger, c.cfg.AngerCeiling},
	}

	for _, l := range limits {
		excess := v[l.class] - l.ceiling
		if excess <= 0 {
			continue
		}
		v[l.class] -= excess
		toNeutral := excess * c.cfg.CeilingNeutralShare
		rest := excess - toNeutral
		v[Neutral] += toNeutral
		v[Fear] += rest / 2
		v[Sad] += rest - rest/2
	}
	return v
}

func (c *Corrector) curvatureFloor(v Vector, s Signals) Vector {
	if s.SmileScore == nil || s.MouthCurvature == nil || !c.eyesOpen(s) {
		return v
	}
	conf := 0.5**s.SmileScore + 0.5**s.MouthCurvature
	if conf <= c.cfg.CurvatureGate {
		return v
	}

	donors := []Class{Sad, Fear, Disgust}
	transfer(&v, Happy, conf*c.cfg.HappyFloorGain-v[Happy], donors, c.cfg.DonorCap)
	transfer(&v, Neutral, conf*c.cfg.NeutralFloorGain-v[Neutral], donors, c.cfg.DonorCap)
	return v
}

// transfer moves up to need into the acceptor, draining donors in order,
// each giving at most cap of its current mass. It returns the amount moved.
func transfer(v *Vector, to Class, need float64, donors []Class, cap float64) float64 {
	var moved float64
	for _, d := range donors {
		if need <= 0 {
			break
		}
		give := math.Min(v[d]*cap, need)
		if give <= 0 {
			continue
		}
		v[d] -= give
		v[to] += give
		need -= give
		moved += give
	}
	return moved
}
