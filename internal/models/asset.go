package models

import "time"

// CriticalityTier ranks how important an asset is to the business.
type CriticalityTier string

const (
	CriticalityLow      CriticalityTier = "low"
	CriticalityMedium   CriticalityTier = "medium"
	CriticalityHigh     CriticalityTier = "high"
	CriticalityCritical CriticalityTier = "critical"
)

// Valid reports whether the tier is one of the known values.
func (t CriticalityTier) Valid() bool {
	switch t {
	case CriticalityLow, CriticalityMedium, CriticalityHigh, CriticalityCritical:
		return true
	}
	return false
}

// Asset is one entry of the internal inventory. The inventory is loaded by
// an external collaborator and treated as read-only within a correlation run.
type Asset struct {
	ID           int64           `json:"id"`
	Hostname     string          `json:"hostname"`
	IPAddress    string          `json:"ip_address"`
	Owner        string          `json:"owner,omitempty"`
	Criticality  CriticalityTier `json:"criticality"`
	SoftwareTags []string        `json:"software_tags"`
	PIRKeywords  []string        `json:"pir_keywords,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
