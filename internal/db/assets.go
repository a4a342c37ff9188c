package db

import (
	"context"
	"fmt"

	"intel-correlation-service/internal/models"
)

// ListAssets returns the full asset inventory. The inventory is maintained
// by the external asset loader; a correlation run treats it as immutable.
func (d *DB) ListAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := d.Pool.Query(ctx, `
        SELECT id, hostname, ip_address, owner, criticality, software_tags, pir_keywords, created_at
        FROM assets
        ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		var tier string
		if err := rows.Scan(&a.ID, &a.Hostname, &a.IPAddress, &a.Owner, &tier,
			&a.SoftwareTags, &a.PIRKeywords, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Criticality = models.CriticalityTier(tier)
		if !a.Criticality.Valid() {
			a.Criticality = models.CriticalityMedium
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
