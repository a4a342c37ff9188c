package db

import (
	"context"
	"fmt"

	"intel-correlation-service/internal/models"
)

// InsertIntel stores a raw intel item, returning false when the dedup key
// already exists. A duplicate is a no-op, not an error.
func (d *DB) InsertIntel(ctx context.Context, item models.RawIntelItem) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `
        INSERT INTO raw_intel (source, external_id, dedup_key, title, published_at, product_tags, cvss, processed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
        ON CONFLICT (dedup_key) DO NOTHING`,
		item.Source, item.ExternalID, item.DedupKey, item.Title,
		item.PublishedAt, item.ProductTags, item.CVSS)
	if err != nil {
		return false, fmt.Errorf("failed to insert intel %s: %w", item.DedupKey, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListUnprocessed returns intel items correlation has not seen yet, newest
// first.
func (d *DB) ListUnprocessed(ctx context.Context) ([]models.RawIntelItem, error) {
	rows, err := d.Pool.Query(ctx, `
        SELECT id, source, external_id, dedup_key, title, published_at, product_tags, cvss, created_at
        FROM raw_intel
        WHERE processed = FALSE
        ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed intel: %w", err)
	}
	defer rows.Close()

	var items []models.RawIntelItem
	for rows.Next() {
		var it models.RawIntelItem
		if err := rows.Scan(&it.ID, &it.Source, &it.ExternalID, &it.DedupKey, &it.Title,
			&it.PublishedAt, &it.ProductTags, &it.CVSS, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan intel item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkProcessed flags the given intel items so the next run does not
// re-correlate them.
func (d *DB) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.Pool.Exec(ctx, `UPDATE raw_intel SET processed = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark intel processed: %w", err)
	}
	return nil
}

// GetIntel fetches one item by id.
func (d *DB) GetIntel(ctx context.Context, id int64) (models.RawIntelItem, error) {
	var it models.RawIntelItem
	err := d.Pool.QueryRow(ctx, `
        SELECT id, source, external_id, dedup_key, title, published_at, product_tags, cvss, created_at
        FROM raw_intel WHERE id = $1`, id).
		Scan(&it.ID, &it.Source, &it.ExternalID, &it.DedupKey, &it.Title,
			&it.PublishedAt, &it.ProductTags, &it.CVSS, &it.CreatedAt)
	if err != nil {
		return models.RawIntelItem{}, fmt.Errorf("failed to get intel %d: %w", id, err)
	}
	return it, nil
}
