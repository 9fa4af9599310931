package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

const (
	// DefaultBatchSize caps how many posts one mining run classifies.
	DefaultBatchSize = 50
	// DefaultDistributionCap bounds how many recent patterns feed one
	// distribution computation.
	DefaultDistributionCap = 100
	// DefaultClassifyDelay spaces out classification calls to respect
	// collaborator rate limits.
	DefaultClassifyDelay = 500 * time.Millisecond
	// DefaultBuzzFloor is the minimum buzz score a post needs to be
	// worth classifying.
	DefaultBuzzFloor = 0.5
	// DefaultWindowDays is the trailing window for the distribution.
	DefaultWindowDays = 7
)

// Config tunes one Miner.
type Config struct {
	Language        string
	BuzzFloor       float64
	BatchSize       int
	ClassifyDelay   time.Duration
	DistributionCap int
}

// Result summarizes one mining run. Errors holds one entry per failed
// post; the run itself never aborts on per-item failures.
type Result struct {
	Processed int      `json:"processed"`
	Extracted int      `json:"extracted"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Miner mines structural patterns out of harvested posts.
type Miner struct {
	posts      PostSource
	patterns   PatternStore
	classifier Classifier
	cfg        Config
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

// New creates a Miner, filling zero config fields with defaults.
func New(posts PostSource, patterns PatternStore, classifier Classifier, cfg Config) *Miner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ClassifyDelay <= 0 {
		cfg.ClassifyDelay = DefaultClassifyDelay
	}
	if cfg.BuzzFloor <= 0 {
		cfg.BuzzFloor = DefaultBuzzFloor
	}
	if cfg.DistributionCap <= 0 {
		cfg.DistributionCap = DefaultDistributionCap
	}
	return &Miner{
		posts:      posts,
		patterns:   patterns,
		classifier: classifier,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Mine classifies the most-buzzing eligible posts that have no pattern
// yet, persisting extractions that pass the quality gate. Classification
// failures are collected per-post and never abort the batch. A complete
// absence of eligible posts is not an error.
func (m *Miner) Mine(ctx context.Context) (*Result, error) {
	mined, err := m.patterns.MinedPostIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("mine: load mined post ids: %w", err)
	}

	// Over-fetch so the set-difference can still fill a batch.
	posts, err := m.posts.ListEligible(ctx, m.cfg.Language, m.cfg.BuzzFloor, m.cfg.BatchSize+len(mined))
	if err != nil {
		return nil, fmt.Errorf("mine: list eligible posts: %w", err)
	}

	res := &Result{}
	for _, post := range posts {
		if res.Processed >= m.cfg.BatchSize {
			break
		}
		if _, seen := mined[post.ID]; seen {
			continue
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		if res.Processed > 0 {
			m.sleep(ctx, m.cfg.ClassifyDelay)
		}
		res.Processed++

		extraction, err := m.classifier.ExtractPattern(ctx, post.Content)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("post %s: %v", post.ID, err))
			continue
		}

		pattern := &domain.Pattern{
			ID:               uuid.NewString(),
			PostID:           post.ID,
			Format:           extraction.Format,
			HookType:         extraction.HookType,
			PayloadType:      extraction.PayloadType,
			Rhetorical:       extraction.Rhetorical,
			LengthBucket:     extraction.LengthBucket,
			EmojiDensity:     extraction.EmojiDensity,
			PunctuationStyle: extraction.PunctuationStyle,
			TabooFlags:       extraction.TabooFlags,
			QualityScore:     extraction.QualityScore,
			ExtractedAt:      m.now(),
		}
		if !pattern.Usable() {
			res.Skipped++
			continue
		}

		if err := m.patterns.Insert(ctx, pattern); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("post %s: persist pattern: %v", post.ID, err))
			continue
		}
		res.Extracted++
	}

	logger.Info("mining run complete",
		"processed", res.Processed,
		"extracted", res.Extracted,
		"skipped", res.Skipped,
		"errors", len(res.Errors))
	return res, nil
}

// Distribution aggregates patterns extracted within the trailing window
// into per-value counts and average source-post buzz for each of the
// three weighted dimensions. Values never observed are absent; callers
// default to neutral.
func (m *Miner) Distribution(ctx context.Context, days int) (*domain.PatternDistribution, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	since := m.now().Add(-time.Duration(days) * 24 * time.Hour)

	patterns, err := m.patterns.ListRecent(ctx, since, m.cfg.DistributionCap)
	if err != nil {
		return nil, fmt.Errorf("distribution: list patterns: %w", err)
	}

	dist := &domain.PatternDistribution{
		Formats:      make(map[string]domain.DimensionStat),
		HookTypes:    make(map[string]domain.DimensionStat),
		PayloadTypes: make(map[string]domain.DimensionStat),
		WindowDays:   days,
		PatternCount: len(patterns),
	}
	if len(patterns) == 0 {
		return dist, nil
	}

	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		ids = append(ids, p.PostID)
	}
	buzz, err := m.posts.BuzzScores(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("distribution: load buzz scores: %w", err)
	}

	type acc struct {
		count int
		sum   float64
	}
	formats := make(map[string]*acc)
	hooks := make(map[string]*acc)
	payloads := make(map[string]*acc)

	add := func(m map[string]*acc, value string, b float64) {
		if value == "" {
			return
		}
		a, ok := m[value]
		if !ok {
			a = &acc{}
			m[value] = a
		}
		a.count++
		a.sum += b
	}

	for _, p := range patterns {
		if !p.Usable() {
			// Unusable patterns are never persisted, but the gate is
			// cheap and the aggregation must not depend on that.
			continue
		}
		b := buzz[p.PostID] // missing source post contributes 0 buzz
		add(formats, p.Format, b)
		add(hooks, p.HookType, b)
		add(payloads, p.PayloadType, b)
	}

	finalize := func(src map[string]*acc, dst map[string]domain.DimensionStat) {
		for v, a := range src {
			dst[v] = domain.DimensionStat{Count: a.count, AvgBuzz: a.sum / float64(a.count)}
		}
	}
	finalize(formats, dist.Formats)
	finalize(hooks, dist.HookTypes)
	finalize(payloads, dist.PayloadTypes)

	return dist, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
