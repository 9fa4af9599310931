package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// ArmRepo implements bandit.ArmStore against PostgreSQL.
type ArmRepo struct{ db *sql.DB }

// NewArmRepo creates a Postgres-backed arm repository.
func NewArmRepo(db *sql.DB) *ArmRepo { return &ArmRepo{db: db} }

const armColumns = `arm_id, platform, format, hook_type, topic, length_bucket,
       time_bucket, day_of_week, emoji_density,
       alpha, beta, total_reward, pull_count, source, updated_at`

func scanArm(row interface{ Scan(...any) error }) (*domain.Arm, error) {
	a := &domain.Arm{}
	err := row.Scan(
		&a.ArmID, &a.Platform, &a.Format, &a.HookType, &a.Topic, &a.LengthBucket,
		&a.TimeBucket, &a.DayOfWeek, &a.EmojiDensity,
		&a.Alpha, &a.Beta, &a.TotalReward, &a.PullCount, &a.Source, &a.UpdatedAt,
	)
	return a, err
}

func (r *ArmRepo) Get(ctx context.Context, armID string) (*domain.Arm, error) {
	a, err := scanArm(r.db.QueryRowContext(ctx,
		`SELECT `+armColumns+` FROM bandit_arms WHERE arm_id = $1`, armID))
	if err == sql.ErrNoRows {
		return nil, bandit.ErrArmNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get arm: %w", err)
	}
	return a, nil
}

func (r *ArmRepo) Upsert(ctx context.Context, a *domain.Arm) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bandit_arms
			(arm_id, platform, format, hook_type, topic, length_bucket,
			 time_bucket, day_of_week, emoji_density,
			 alpha, beta, total_reward, pull_count, source, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
		ON CONFLICT (arm_id) DO UPDATE SET
			alpha = EXCLUDED.alpha,
			beta = EXCLUDED.beta,
			total_reward = EXCLUDED.total_reward,
			pull_count = EXCLUDED.pull_count,
			source = EXCLUDED.source,
			updated_at = NOW()
	`, a.ArmID, a.Platform, a.Format, a.HookType, a.Topic, a.LengthBucket,
		a.TimeBucket, a.DayOfWeek, a.EmojiDensity,
		a.Alpha, a.Beta, a.TotalReward, a.PullCount, a.Source)
	if err != nil {
		return fmt.Errorf("upsert arm: %w", err)
	}
	return nil
}

func (r *ArmRepo) TotalPulls(ctx context.Context, platform string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(pull_count), 0) FROM bandit_arms WHERE platform = $1`,
		platform).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total pulls: %w", err)
	}
	return total, nil
}

// List returns arms for a platform ordered by pull count, for the
// inspection API and the S3 state snapshot.
func (r *ArmRepo) List(ctx context.Context, platform string, limit int) ([]domain.Arm, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+armColumns+` FROM bandit_arms
		 WHERE platform = $1 ORDER BY pull_count DESC, arm_id LIMIT $2`,
		platform, limit)
	if err != nil {
		return nil, fmt.Errorf("list arms: %w", err)
	}
	defer rows.Close()

	var out []domain.Arm
	for rows.Next() {
		a, err := scanArm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan arm: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
