package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// PublishedRepo stores the agent's own posts and implements
// learning.PublishedStore.
type PublishedRepo struct{ db *sql.DB }

// NewPublishedRepo creates a Postgres-backed published-post repository.
func NewPublishedRepo(db *sql.DB) *PublishedRepo { return &PublishedRepo{db: db} }

const publishedColumns = `id, platform, external_id, arm_id, format, hook_type, topic,
       content, published_at, learned_at,
       flag_duplicate, flag_low_quality, flag_over_posting`

func (r *PublishedRepo) Insert(ctx context.Context, p *domain.PublishedPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO published_posts
			(id, platform, external_id, arm_id, format, hook_type, topic,
			 content, published_at, flag_duplicate, flag_low_quality, flag_over_posting)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, p.ID, p.Platform, p.ExternalID, p.ArmID, p.Format, p.HookType, p.Topic,
		p.Content, p.PublishedAt, p.FlagDuplicate, p.FlagLowQuality, p.FlagOverPosting)
	if err != nil {
		return fmt.Errorf("insert published post: %w", err)
	}
	return nil
}

func (r *PublishedRepo) ListUnlearned(ctx context.Context, since time.Time) ([]domain.PublishedPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+publishedColumns+`
		FROM published_posts
		WHERE learned_at IS NULL AND published_at >= $1
		ORDER BY published_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list unlearned: %w", err)
	}
	defer rows.Close()
	return scanPublished(rows)
}

func (r *PublishedRepo) MarkLearned(ctx context.Context, postID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE published_posts SET learned_at = $1 WHERE id = $2 AND learned_at IS NULL`,
		at, postID)
	if err != nil {
		return fmt.Errorf("mark learned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark learned: post %s missing or already learned", postID)
	}
	return nil
}

// ListRecent returns the newest posts for a platform, for the API and
// for duplicate-fingerprint seeding on startup.
func (r *PublishedRepo) ListRecent(ctx context.Context, platform domain.Platform, limit int) ([]domain.PublishedPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+publishedColumns+`
		FROM published_posts
		WHERE platform = $1
		ORDER BY published_at DESC
		LIMIT $2
	`, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent published: %w", err)
	}
	defer rows.Close()
	return scanPublished(rows)
}

// CountSince returns how many posts went out on a platform after the
// cutoff, for the over-posting check.
func (r *PublishedRepo) CountSince(ctx context.Context, platform domain.Platform, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM published_posts WHERE platform = $1 AND published_at >= $2`,
		platform, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count published: %w", err)
	}
	return n, nil
}

// ListAwaitingMetrics returns posts published at least `hours` hours ago
// that have no snapshot for that window yet.
func (r *PublishedRepo) ListAwaitingMetrics(ctx context.Context, hours int, limit int) ([]domain.PublishedPost, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+publishedColumns+`
		FROM published_posts p
		WHERE p.published_at <= NOW() - ($1 || ' hours')::interval
		  AND NOT EXISTS (
		      SELECT 1 FROM post_metrics m
		      WHERE m.published_post_id = p.id AND m.hours_after_publish = $2
		  )
		ORDER BY p.published_at
		LIMIT $3
	`, hours, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("list awaiting metrics: %w", err)
	}
	defer rows.Close()
	return scanPublished(rows)
}

func scanPublished(rows *sql.Rows) ([]domain.PublishedPost, error) {
	var out []domain.PublishedPost
	for rows.Next() {
		var p domain.PublishedPost
		var learned sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.Platform, &p.ExternalID, &p.ArmID, &p.Format, &p.HookType, &p.Topic,
			&p.Content, &p.PublishedAt, &learned,
			&p.FlagDuplicate, &p.FlagLowQuality, &p.FlagOverPosting,
		); err != nil {
			return nil, fmt.Errorf("scan published post: %w", err)
		}
		if learned.Valid {
			t := learned.Time
			p.LearnedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
