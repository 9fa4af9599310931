// Package learning runs the periodic reward feedback job: it pulls
// recently published posts with known 24-hour metrics, shapes a reward,
// and feeds it into the bandit posterior.
package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

// metricWindowHours is the observation window the learning step requires.
const metricWindowHours = 24

// DefaultLookback is how far back the job scans for unlearned posts.
const DefaultLookback = 48 * time.Hour

// PublishedStore is the slice of published-post persistence the job
// needs: listing unlearned posts and marking them learned afterwards.
// The learned marker makes reruns idempotent — a post feeds the
// posterior exactly once.
type PublishedStore interface {
	ListUnlearned(ctx context.Context, since time.Time) ([]domain.PublishedPost, error)
	MarkLearned(ctx context.Context, postID string, at time.Time) error
}

// MetricsSource is read-only access to impression snapshots. A missing
// snapshot returns (nil, nil): the post simply isn't ready yet.
type MetricsSource interface {
	Snapshot(ctx context.Context, publishedPostID string, hoursAfterPublish int) (*domain.MetricSnapshot, error)
}

// ArmUpdater is the bandit update entrypoint.
type ArmUpdater interface {
	Update(ctx context.Context, armID string, platform domain.Platform, reward float64) error
}

// Result summarizes one learning run.
type Result struct {
	Examined int      `json:"examined"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Orchestrator wires the three collaborators together.
type Orchestrator struct {
	published PublishedStore
	metrics   MetricsSource
	arms      ArmUpdater
	lookback  time.Duration
	now       func() time.Time
}

// New creates an Orchestrator. A zero lookback defaults to 48 hours.
func New(published PublishedStore, metrics MetricsSource, arms ArmUpdater, lookback time.Duration) *Orchestrator {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Orchestrator{
		published: published,
		metrics:   metrics,
		arms:      arms,
		lookback:  lookback,
		now:       time.Now,
	}
}

// RunLearningUpdate applies one reward per ready post. Posts without an
// arm reference or without a 24h snapshot yet are counted as skipped,
// not retried — a later run catches them once metrics exist. Per-item
// failures are collected; only total inability to list posts raises.
func (o *Orchestrator) RunLearningUpdate(ctx context.Context) (*Result, error) {
	since := o.now().Add(-o.lookback)
	posts, err := o.published.ListUnlearned(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("learning update: list published: %w", err)
	}

	res := &Result{Examined: len(posts)}
	for _, post := range posts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if post.ArmID == "" {
			res.Skipped++
			continue
		}

		snap, err := o.metrics.Snapshot(ctx, post.ID, metricWindowHours)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("post %s: load snapshot: %v", post.ID, err))
			continue
		}
		if snap == nil {
			res.Skipped++
			continue
		}

		reward := bandit.CalculateReward(snap.ImpressionCount, bandit.PenaltyFlags{
			Duplicate:   post.FlagDuplicate,
			LowQuality:  post.FlagLowQuality,
			OverPosting: post.FlagOverPosting,
		})

		if err := o.arms.Update(ctx, post.ArmID, post.Platform, reward); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("post %s: update arm: %v", post.ID, err))
			continue
		}
		if err := o.published.MarkLearned(ctx, post.ID, o.now()); err != nil {
			// The reward already landed; the worst case is one extra
			// pseudo-observation if the marker never sticks.
			res.Errors = append(res.Errors, fmt.Sprintf("post %s: mark learned: %v", post.ID, err))
		}
		res.Updated++
	}

	logger.Info("learning update complete",
		"examined", res.Examined,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"errors", len(res.Errors))
	return res, nil
}
