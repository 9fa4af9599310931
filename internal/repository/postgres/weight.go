package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// WeightRepo implements synth.WeightStore against PostgreSQL.
type WeightRepo struct{ db *sql.DB }

// NewWeightRepo creates a Postgres-backed template-weight repository.
func NewWeightRepo(db *sql.DB) *WeightRepo { return &WeightRepo{db: db} }

func (r *WeightRepo) Upsert(ctx context.Context, w *domain.TemplateWeight) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO template_weights
			(week_start, platform, format, hook_type, payload_type,
			 weight, sample_count, avg_buzz_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (week_start, platform, format, hook_type, payload_type)
		DO UPDATE SET
			weight = EXCLUDED.weight,
			sample_count = EXCLUDED.sample_count,
			avg_buzz_score = EXCLUDED.avg_buzz_score
	`, w.WeekStart, w.Platform, w.Format, w.HookType, w.PayloadType,
		w.Weight, w.SampleCount, w.AvgBuzzScore)
	if err != nil {
		return fmt.Errorf("upsert weight: %w", err)
	}
	return nil
}

func (r *WeightRepo) ListForWeek(ctx context.Context, weekStart time.Time, platform domain.Platform) ([]domain.TemplateWeight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT week_start, platform, format, hook_type, payload_type,
		       weight, sample_count, avg_buzz_score
		FROM template_weights
		WHERE week_start = $1 AND platform = $2
	`, weekStart, platform)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	var out []domain.TemplateWeight
	for rows.Next() {
		var w domain.TemplateWeight
		if err := rows.Scan(
			&w.WeekStart, &w.Platform, &w.Format, &w.HookType, &w.PayloadType,
			&w.Weight, &w.SampleCount, &w.AvgBuzzScore,
		); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
