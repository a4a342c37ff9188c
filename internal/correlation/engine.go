package correlation

import (
	"strings"

	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/models"
)

// MatchKind records which path produced a candidate. A PIR hit outranks a
// plain tag match: when an asset matches through both paths the candidate
// is emitted once with KindPIR, so the boost is applied at most once.
type MatchKind string

const (
	KindTag MatchKind = "tag"
	KindPIR MatchKind = "pir"
)

// Candidate is one (item, asset) pair the engine proposes for scoring.
type Candidate struct {
	Item  models.RawIntelItem
	Asset models.Asset
	Kind  MatchKind
}

// Engine matches raw intel items against the asset inventory. Matching is
// case-insensitive, tag-set based, and deterministic: no fuzzy scoring.
type Engine struct {
	logger *logrus.Logger
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{logger: logger}
}

// Match emits one candidate per matching (item, asset) pair. Running it
// twice over the same inputs yields the same candidates; the ledger upsert
// keeps re-runs from creating duplicate rows.
func (e *Engine) Match(items []models.RawIntelItem, assets []models.Asset) []Candidate {
	var out []Candidate
	for _, item := range items {
		tags := lowerAll(item.ProductTags)
		title := strings.ToLower(item.Title)
		for _, asset := range assets {
			kind, ok := e.matchOne(tags, title, asset)
			if !ok {
				continue
			}
			out = append(out, Candidate{Item: item, Asset: asset, Kind: kind})
			e.logger.Debugf("Matched intel %s against asset %s (%s)", item.DedupKey, asset.Hostname, kind)
		}
	}
	return out
}

func (e *Engine) matchOne(itemTags []string, title string, asset models.Asset) (MatchKind, bool) {
	// PIR keywords first so a dual hit carries the PIR escalation.
	for _, kw := range asset.PIRKeywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(title, k) {
			return KindPIR, true
		}
		for _, t := range itemTags {
			if tagsOverlap(t, k) {
				return KindPIR, true
			}
		}
	}
	for _, at := range asset.SoftwareTags {
		a := strings.ToLower(strings.TrimSpace(at))
		if a == "" {
			continue
		}
		for _, t := range itemTags {
			if tagsOverlap(t, a) {
				return KindTag, true
			}
		}
	}
	return "", false
}

// tagsOverlap reports whether either tag contains the other.
func tagsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
