// Package postgres implements the persistence interfaces of the miner,
// bandit, synth, and learning packages against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the agent's tables if they do not exist yet.
// Called once on startup by cmd/migrate and by the worker in dev mode.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS harvested_posts (
			id              TEXT PRIMARY KEY,
			platform        TEXT NOT NULL,
			external_id     TEXT NOT NULL,
			author_handle   TEXT NOT NULL DEFAULT '',
			follower_count  BIGINT NOT NULL DEFAULT 0,
			content         TEXT NOT NULL,
			language        TEXT NOT NULL DEFAULT '',
			likes           BIGINT NOT NULL DEFAULT 0,
			reposts         BIGINT NOT NULL DEFAULT 0,
			replies         BIGINT NOT NULL DEFAULT 0,
			quotes          BIGINT NOT NULL DEFAULT 0,
			spam_flagged    BOOLEAN NOT NULL DEFAULT FALSE,
			buzz_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
			velocity        DOUBLE PRECISION NOT NULL DEFAULT 0,
			posted_at       TIMESTAMPTZ NOT NULL,
			collected_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (platform, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_harvested_buzz
			ON harvested_posts (language, buzz_score DESC) WHERE NOT spam_flagged`,

		`CREATE TABLE IF NOT EXISTS mined_patterns (
			id                TEXT PRIMARY KEY,
			post_id           TEXT NOT NULL REFERENCES harvested_posts(id),
			format            TEXT NOT NULL DEFAULT '',
			hook_type         TEXT NOT NULL DEFAULT '',
			payload_type      TEXT NOT NULL DEFAULT '',
			rhetorical        TEXT NOT NULL DEFAULT '',
			length_bucket     TEXT NOT NULL DEFAULT '',
			emoji_density     TEXT NOT NULL DEFAULT '',
			punctuation_style TEXT NOT NULL DEFAULT '',
			taboo_flags       TEXT[] NOT NULL DEFAULT '{}',
			quality_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
			extracted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (post_id)
		)`,

		`CREATE TABLE IF NOT EXISTS bandit_arms (
			arm_id        TEXT PRIMARY KEY,
			platform      TEXT NOT NULL,
			format        TEXT NOT NULL,
			hook_type     TEXT NOT NULL,
			topic         TEXT NOT NULL,
			length_bucket TEXT NOT NULL,
			time_bucket   TEXT NOT NULL,
			day_of_week   TEXT NOT NULL,
			emoji_density TEXT NOT NULL,
			alpha         DOUBLE PRECISION NOT NULL DEFAULT 1,
			beta          DOUBLE PRECISION NOT NULL DEFAULT 1,
			total_reward  DOUBLE PRECISION NOT NULL DEFAULT 0,
			pull_count    BIGINT NOT NULL DEFAULT 0,
			source        TEXT NOT NULL DEFAULT 'self_learning',
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_arms_platform ON bandit_arms (platform)`,

		`CREATE TABLE IF NOT EXISTS template_weights (
			week_start     TIMESTAMPTZ NOT NULL,
			platform       TEXT NOT NULL,
			format         TEXT NOT NULL DEFAULT '',
			hook_type      TEXT NOT NULL DEFAULT '',
			payload_type   TEXT NOT NULL DEFAULT '',
			weight         DOUBLE PRECISION NOT NULL DEFAULT 1,
			sample_count   INTEGER NOT NULL DEFAULT 0,
			avg_buzz_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (week_start, platform, format, hook_type, payload_type)
		)`,

		`CREATE TABLE IF NOT EXISTS published_posts (
			id                TEXT PRIMARY KEY,
			platform          TEXT NOT NULL,
			external_id       TEXT NOT NULL DEFAULT '',
			arm_id            TEXT NOT NULL DEFAULT '',
			format            TEXT NOT NULL DEFAULT '',
			hook_type         TEXT NOT NULL DEFAULT '',
			topic             TEXT NOT NULL DEFAULT '',
			content           TEXT NOT NULL,
			published_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			learned_at        TIMESTAMPTZ,
			flag_duplicate    BOOLEAN NOT NULL DEFAULT FALSE,
			flag_low_quality  BOOLEAN NOT NULL DEFAULT FALSE,
			flag_over_posting BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_published_unlearned
			ON published_posts (published_at) WHERE learned_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS post_metrics (
			published_post_id   TEXT NOT NULL REFERENCES published_posts(id),
			hours_after_publish INTEGER NOT NULL,
			impression_count    BIGINT NOT NULL DEFAULT 0,
			collected_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (published_post_id, hours_after_publish)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
