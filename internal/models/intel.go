package models

import (
	"fmt"
	"time"
)

// RawIntelItem is one normalized advisory record handed over by the external
// feed fetchers. Items are unique by DedupKey and read-only once ingested.
type RawIntelItem struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id"`
	DedupKey    string    `json:"dedup_key"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	ProductTags []string  `json:"product_tags"`
	CVSS        *float64  `json:"cvss,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BuildDedupKey derives the stable identifier used to skip already-seen items.
func BuildDedupKey(source, externalID string) string {
	return fmt.Sprintf("%s:%s", source, externalID)
}

// Validate checks the fields ingestion depends on. A failing item is a
// recoverable data error: it is skipped with a warning, not fatal to a batch.
func (r RawIntelItem) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("intel item missing source")
	}
	if r.ExternalID == "" {
		return fmt.Errorf("intel item missing external_id")
	}
	if r.CVSS != nil && (*r.CVSS < 0.0 || *r.CVSS > 10.0) {
		return fmt.Errorf("intel item %s: cvss %.2f out of range", r.ExternalID, *r.CVSS)
	}
	return nil
}
