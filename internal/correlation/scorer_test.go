package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"intel-correlation-service/internal/models"
)

func f64(v float64) *float64 { return &v }

func scorerSettings() models.CorrelationSettings {
	return models.CorrelationSettings{DefaultCVSS: 5.0, PIRBoost: 0.5}
}

func TestScoreCriticalityWeights(t *testing.T) {
	s := NewScorer(scorerSettings())

	tests := []struct {
		name        string
		criticality models.CriticalityTier
		expected    float64
	}{
		{"low", models.CriticalityLow, 6.4},
		{"medium", models.CriticalityMedium, 8.0},
		{"high", models.CriticalityHigh, 9.2},
		{"critical clamps at ten", models.CriticalityCritical, 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{
				Item:  models.RawIntelItem{CVSS: f64(8.0)},
				Asset: models.Asset{Criticality: tt.criticality},
				Kind:  KindTag,
			}
			assert.Equal(t, tt.expected, s.Score(c))
		})
	}
}

func TestScoreDefaultCVSS(t *testing.T) {
	s := NewScorer(scorerSettings())
	c := Candidate{
		Item:  models.RawIntelItem{},
		Asset: models.Asset{Criticality: models.CriticalityMedium},
		Kind:  KindTag,
	}
	assert.Equal(t, 5.0, s.Score(c))

	// Out-of-range CVSS falls back to the default as well.
	c.Item.CVSS = f64(42.0)
	assert.Equal(t, 5.0, s.Score(c))
	c.Item.CVSS = f64(-1.0)
	assert.Equal(t, 5.0, s.Score(c))
}

func TestScorePIRBoost(t *testing.T) {
	s := NewScorer(scorerSettings())
	c := Candidate{
		Item:  models.RawIntelItem{CVSS: f64(6.0)},
		Asset: models.Asset{Criticality: models.CriticalityMedium},
		Kind:  KindPIR,
	}
	assert.Equal(t, 6.5, s.Score(c))

	// The boost never pushes past the ceiling.
	c.Item.CVSS = f64(9.8)
	c.Asset.Criticality = models.CriticalityCritical
	assert.Equal(t, 10.0, s.Score(c))

	// Tag matches carry no boost.
	c = Candidate{
		Item:  models.RawIntelItem{CVSS: f64(6.0)},
		Asset: models.Asset{Criticality: models.CriticalityMedium},
		Kind:  KindTag,
	}
	assert.Equal(t, 6.0, s.Score(c))
}

func TestScoreRounding(t *testing.T) {
	s := NewScorer(scorerSettings())
	c := Candidate{
		Item:  models.RawIntelItem{CVSS: f64(7.3)},
		Asset: models.Asset{Criticality: models.CriticalityHigh},
		Kind:  KindTag,
	}
	// 7.3 * 1.15 = 8.395, rounded to one decimal.
	assert.Equal(t, 8.4, s.Score(c))
}

func TestScoreUnknownTierDefaultsToMedium(t *testing.T) {
	s := NewScorer(scorerSettings())
	c := Candidate{
		Item:  models.RawIntelItem{CVSS: f64(8.0)},
		Asset: models.Asset{Criticality: models.CriticalityTier("bogus")},
		Kind:  KindTag,
	}
	assert.Equal(t, 8.0, s.Score(c))
}

func TestNewScorerSanitizesDefaultCVSS(t *testing.T) {
	s := NewScorer(models.CorrelationSettings{DefaultCVSS: -3, PIRBoost: 0.5})
	c := Candidate{
		Item:  models.RawIntelItem{},
		Asset: models.Asset{Criticality: models.CriticalityMedium},
		Kind:  KindTag,
	}
	assert.Equal(t, 5.0, s.Score(c))
}
