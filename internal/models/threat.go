package models

import "time"

// ThreatStatus tracks operator triage of a validated threat. Transitions
// happen only through explicit operator action, never automatically.
type ThreatStatus string

const (
	ThreatOpen         ThreatStatus = "open"
	ThreatAcknowledged ThreatStatus = "acknowledged"
	ThreatResolved     ThreatStatus = "resolved"
)

func (s ThreatStatus) Valid() bool {
	switch s {
	case ThreatOpen, ThreatAcknowledged, ThreatResolved:
		return true
	}
	return false
}

// ValidatedThreat is a scored correlation between one intel item and one
// asset. At most one row exists per (intel_id, asset_id); re-scoring updates
// the score in place and preserves any non-open status.
type ValidatedThreat struct {
	ID        int64        `json:"id"`
	IntelID   int64        `json:"intel_id"`
	AssetID   int64        `json:"asset_id"`
	RiskScore float64      `json:"risk_score"`
	Status    ThreatStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// ThreatDetail joins a threat with its intel item and asset, the shape the
// notification and reporting paths work with.
type ThreatDetail struct {
	Threat ValidatedThreat `json:"threat"`
	Intel  RawIntelItem    `json:"intel"`
	Asset  Asset           `json:"asset"`
}
