package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// PatternRepo implements miner.PatternStore against PostgreSQL.
type PatternRepo struct{ db *sql.DB }

// NewPatternRepo creates a Postgres-backed pattern repository.
func NewPatternRepo(db *sql.DB) *PatternRepo { return &PatternRepo{db: db} }

func (r *PatternRepo) Insert(ctx context.Context, p *domain.Pattern) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mined_patterns
			(id, post_id, format, hook_type, payload_type, rhetorical,
			 length_bucket, emoji_density, punctuation_style,
			 taboo_flags, quality_score, extracted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (post_id) DO NOTHING
	`, p.ID, p.PostID, p.Format, p.HookType, p.PayloadType, p.Rhetorical,
		p.LengthBucket, p.EmojiDensity, p.PunctuationStyle,
		pq.Array(p.TabooFlags), p.QualityScore, p.ExtractedAt)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

func (r *PatternRepo) MinedPostIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT post_id FROM mined_patterns`)
	if err != nil {
		return nil, fmt.Errorf("mined post ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *PatternRepo) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.Pattern, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, format, hook_type, payload_type, rhetorical,
		       length_bucket, emoji_density, punctuation_style,
		       taboo_flags, quality_score, extracted_at
		FROM mined_patterns
		WHERE extracted_at >= $1
		ORDER BY extracted_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent patterns: %w", err)
	}
	defer rows.Close()

	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		if err := rows.Scan(
			&p.ID, &p.PostID, &p.Format, &p.HookType, &p.PayloadType, &p.Rhetorical,
			&p.LengthBucket, &p.EmojiDensity, &p.PunctuationStyle,
			pq.Array(&p.TabooFlags), &p.QualityScore, &p.ExtractedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
