package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// MetricsRepo stores impression snapshots and implements
// learning.MetricsSource.
type MetricsRepo struct{ db *sql.DB }

// NewMetricsRepo creates a Postgres-backed metrics repository.
func NewMetricsRepo(db *sql.DB) *MetricsRepo { return &MetricsRepo{db: db} }

// Insert records one snapshot. Re-collection of the same window keeps
// the first observation.
func (r *MetricsRepo) Insert(ctx context.Context, m *domain.MetricSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO post_metrics
			(published_post_id, hours_after_publish, impression_count, collected_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (published_post_id, hours_after_publish) DO NOTHING
	`, m.PublishedPostID, m.HoursAfterPublish, m.ImpressionCount, m.CollectedAt)
	if err != nil {
		return fmt.Errorf("insert metric snapshot: %w", err)
	}
	return nil
}

// Snapshot returns (nil, nil) when no snapshot exists for the window:
// the post simply is not ready for learning yet.
func (r *MetricsRepo) Snapshot(ctx context.Context, publishedPostID string, hoursAfterPublish int) (*domain.MetricSnapshot, error) {
	m := &domain.MetricSnapshot{}
	err := r.db.QueryRowContext(ctx, `
		SELECT published_post_id, hours_after_publish, impression_count, collected_at
		FROM post_metrics
		WHERE published_post_id = $1 AND hours_after_publish = $2
	`, publishedPostID, hoursAfterPublish).Scan(
		&m.PublishedPostID, &m.HoursAfterPublish, &m.ImpressionCount, &m.CollectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metric snapshot: %w", err)
	}
	return m, nil
}
