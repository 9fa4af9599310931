package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// PostRepo stores harvested posts and implements miner.PostSource.
type PostRepo struct{ db *sql.DB }

// NewPostRepo creates a Postgres-backed harvested-post repository.
func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{db: db} }

// UpsertHarvested inserts a harvested post, refreshing engagement counts
// and buzz on re-harvest of the same (platform, external_id).
func (r *PostRepo) UpsertHarvested(ctx context.Context, p *domain.HarvestedPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO harvested_posts
			(id, platform, external_id, author_handle, follower_count, content,
			 language, likes, reposts, replies, quotes, spam_flagged,
			 buzz_score, velocity, posted_at, collected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
		ON CONFLICT (platform, external_id) DO UPDATE SET
			likes = EXCLUDED.likes,
			reposts = EXCLUDED.reposts,
			replies = EXCLUDED.replies,
			quotes = EXCLUDED.quotes,
			follower_count = EXCLUDED.follower_count,
			spam_flagged = EXCLUDED.spam_flagged,
			buzz_score = EXCLUDED.buzz_score,
			velocity = EXCLUDED.velocity,
			collected_at = NOW()
	`, p.ID, p.Platform, p.ExternalID, p.AuthorHandle, p.FollowerCount, p.Content,
		p.Language, p.Likes, p.Reposts, p.Replies, p.Quotes, p.SpamFlagged,
		p.BuzzScore, p.Velocity, p.PostedAt)
	if err != nil {
		return fmt.Errorf("upsert harvested post: %w", err)
	}
	return nil
}

func (r *PostRepo) ListEligible(ctx context.Context, language string, minBuzz float64, limit int) ([]domain.HarvestedPost, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, platform, external_id, author_handle, follower_count, content,
		       language, likes, reposts, replies, quotes, spam_flagged,
		       buzz_score, velocity, posted_at, collected_at
		FROM harvested_posts
		WHERE language = $1 AND NOT spam_flagged AND buzz_score >= $2
		ORDER BY buzz_score DESC
		LIMIT $3
	`, language, minBuzz, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible posts: %w", err)
	}
	defer rows.Close()

	var out []domain.HarvestedPost
	for rows.Next() {
		var p domain.HarvestedPost
		if err := rows.Scan(
			&p.ID, &p.Platform, &p.ExternalID, &p.AuthorHandle, &p.FollowerCount, &p.Content,
			&p.Language, &p.Likes, &p.Reposts, &p.Replies, &p.Quotes, &p.SpamFlagged,
			&p.BuzzScore, &p.Velocity, &p.PostedAt, &p.CollectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan harvested post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostRepo) BuzzScores(ctx context.Context, postIDs []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(postIDs))
	if len(postIDs) == 0 {
		return scores, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, buzz_score FROM harvested_posts WHERE id = ANY($1)`,
		pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("buzz scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var buzz float64
		if err := rows.Scan(&id, &buzz); err != nil {
			return nil, fmt.Errorf("scan buzz score: %w", err)
		}
		scores[id] = buzz
	}
	return scores, rows.Err()
}
