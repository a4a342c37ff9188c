package correlation

import (
	"math"

	"intel-correlation-service/internal/models"
)

// criticalityWeights scale the base severity by asset importance.
var criticalityWeights = map[models.CriticalityTier]float64{
	models.CriticalityLow:      0.8,
	models.CriticalityMedium:   1.0,
	models.CriticalityHigh:     1.15,
	models.CriticalityCritical: 1.3,
}

// Scorer converts a candidate match into a risk score in [0.0, 10.0].
//
// score = clamp(base * criticality_factor + pir_boost, 0, 10), one decimal.
// Criticality scales the underlying severity; the PIR boost is a fixed
// additive escalation independent of severity magnitude, applied pre-clamp
// only when the match came through a PIR keyword.
type Scorer struct {
	defaultCVSS float64
	pirBoost    float64
}

func NewScorer(cfg models.CorrelationSettings) *Scorer {
	s := &Scorer{defaultCVSS: cfg.DefaultCVSS, pirBoost: cfg.PIRBoost}
	if s.defaultCVSS <= 0 || s.defaultCVSS > 10 {
		s.defaultCVSS = 5.0
	}
	return s
}

// Score computes the risk score for one candidate.
func (s *Scorer) Score(c Candidate) float64 {
	base := s.defaultCVSS
	if c.Item.CVSS != nil && *c.Item.CVSS >= 0 && *c.Item.CVSS <= 10 {
		base = *c.Item.CVSS
	}

	weight, ok := criticalityWeights[c.Asset.Criticality]
	if !ok {
		weight = 1.0
	}

	score := base * weight
	if c.Kind == KindPIR {
		score += s.pirBoost
	}

	score = math.Min(10.0, math.Max(0.0, score))
	return math.Round(score*10) / 10
}
