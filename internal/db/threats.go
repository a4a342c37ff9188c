package db

import (
	"context"
	"fmt"
	"time"

	"intel-correlation-service/internal/models"
)

// UpsertThreat inserts or re-scores the threat for one (intel_id, asset_id)
// pair. Re-runs update risk_score only: manual triage state is sticky, so a
// non-open status is never reset by a re-score. The returned flag reports
// whether the row was newly created.
func (d *DB) UpsertThreat(ctx context.Context, intelID, assetID int64, score float64) (models.ValidatedThreat, bool, error) {
	var t models.ValidatedThreat
	var status string
	var inserted bool
	err := d.Pool.QueryRow(ctx, `
        INSERT INTO validated_threats (intel_id, asset_id, risk_score, status, created_at)
        VALUES ($1, $2, $3, 'open', NOW())
        ON CONFLICT (intel_id, asset_id)
        DO UPDATE SET risk_score = EXCLUDED.risk_score
        RETURNING id, intel_id, asset_id, risk_score, status, created_at, (xmax = 0)`,
		intelID, assetID, score).
		Scan(&t.ID, &t.IntelID, &t.AssetID, &t.RiskScore, &status, &t.CreatedAt, &inserted)
	if err != nil {
		return models.ValidatedThreat{}, false, fmt.Errorf("failed to upsert threat (%d,%d): %w", intelID, assetID, err)
	}
	t.Status = models.ThreatStatus(status)
	return t, inserted, nil
}

// UpdateThreatStatus applies an operator triage action (acknowledge or
// resolve).
func (d *DB) UpdateThreatStatus(ctx context.Context, id int64, status models.ThreatStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid threat status %q", status)
	}
	tag, err := d.Pool.Exec(ctx, `UPDATE validated_threats SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update threat %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("threat %d not found", id)
	}
	return nil
}

const threatDetailSelect = `
        SELECT vt.id, vt.intel_id, vt.asset_id, vt.risk_score, vt.status, vt.created_at,
               ri.id, ri.source, ri.external_id, ri.dedup_key, ri.title, ri.published_at, ri.product_tags, ri.cvss, ri.created_at,
               a.id, a.hostname, a.ip_address, a.owner, a.criticality, a.software_tags, a.pir_keywords, a.created_at
        FROM validated_threats vt
        JOIN raw_intel ri ON vt.intel_id = ri.id
        JOIN assets a ON vt.asset_id = a.id`

func scanThreatDetail(row interface{ Scan(...any) error }) (models.ThreatDetail, error) {
	var dt models.ThreatDetail
	var tStatus, aTier string
	err := row.Scan(
		&dt.Threat.ID, &dt.Threat.IntelID, &dt.Threat.AssetID, &dt.Threat.RiskScore, &tStatus, &dt.Threat.CreatedAt,
		&dt.Intel.ID, &dt.Intel.Source, &dt.Intel.ExternalID, &dt.Intel.DedupKey, &dt.Intel.Title,
		&dt.Intel.PublishedAt, &dt.Intel.ProductTags, &dt.Intel.CVSS, &dt.Intel.CreatedAt,
		&dt.Asset.ID, &dt.Asset.Hostname, &dt.Asset.IPAddress, &dt.Asset.Owner, &aTier,
		&dt.Asset.SoftwareTags, &dt.Asset.PIRKeywords, &dt.Asset.CreatedAt)
	if err != nil {
		return models.ThreatDetail{}, err
	}
	dt.Threat.Status = models.ThreatStatus(tStatus)
	dt.Asset.Criticality = models.CriticalityTier(aTier)
	return dt, nil
}

// ListThreatsSince returns threats created at or after the given instant
// with risk_score >= minScore, highest score first.
func (d *DB) ListThreatsSince(ctx context.Context, since time.Time, minScore float64) ([]models.ThreatDetail, error) {
	rows, err := d.Pool.Query(ctx, threatDetailSelect+`
        WHERE vt.created_at >= $1 AND vt.risk_score >= $2
        ORDER BY vt.risk_score DESC, vt.created_at DESC`, since, minScore)
	if err != nil {
		return nil, fmt.Errorf("failed to list threats since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var out []models.ThreatDetail
	for rows.Next() {
		dt, err := scanThreatDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat detail: %w", err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

// ListThreats returns the most recent threats above minScore for the
// operator console.
func (d *DB) ListThreats(ctx context.Context, minScore float64, limit int) ([]models.ThreatDetail, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := d.Pool.Query(ctx, threatDetailSelect+`
        WHERE vt.risk_score >= $1
        ORDER BY vt.created_at DESC
        LIMIT $2`, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threats: %w", err)
	}
	defer rows.Close()

	var out []models.ThreatDetail
	for rows.Next() {
		dt, err := scanThreatDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat detail: %w", err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

// CountThreatsByStatus summarizes ledger state for the weekly report.
func (d *DB) CountThreatsByStatus(ctx context.Context, since time.Time) (map[models.ThreatStatus]int, error) {
	rows, err := d.Pool.Query(ctx, `
        SELECT status, COUNT(*) FROM validated_threats
        WHERE created_at >= $1 GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count threats: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ThreatStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan threat count: %w", err)
		}
		counts[models.ThreatStatus(status)] = n
	}
	return counts, rows.Err()
}
