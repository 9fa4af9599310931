// Package policy reviews drafts before publish. Hard violations (NG
// expressions, exact duplicates) block the post; soft violations set
// penalty flags that later discount the arm's reward.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/generator"
)

// DuplicateChecker reports whether near-identical content already went
// out on the platform. Satisfied by the guard.
type DuplicateChecker interface {
	SeenContent(ctx context.Context, platform domain.Platform, content string) (bool, error)
}

// PostCounter counts recent publishes per platform. Satisfied by the
// published-post repository.
type PostCounter interface {
	CountSince(ctx context.Context, platform domain.Platform, since time.Time) (int, error)
}

// Config carries the review thresholds.
type Config struct {
	// NGExpressions block a draft outright when present.
	NGExpressions []string
	// MaxPerDay is the soft daily cap; beyond it posts still go out
	// but carry the over-posting penalty.
	MaxPerDay int
	// MinRunes below which a draft is flagged low quality.
	MinRunes int
}

// Review is the outcome of one policy check.
type Review struct {
	Publishable bool               `json:"publishable"`
	Flags       bandit.PenaltyFlags `json:"flags"`
	Reasons     []string           `json:"reasons,omitempty"`
}

// Engine applies the checks.
type Engine struct {
	dup     DuplicateChecker
	counter PostCounter
	cfg     Config
	now     func() time.Time
}

// New creates a policy engine. MaxPerDay defaults to 8 and MinRunes
// to 20.
func New(dup DuplicateChecker, counter PostCounter, cfg Config) *Engine {
	if cfg.MaxPerDay <= 0 {
		cfg.MaxPerDay = 8
	}
	if cfg.MinRunes <= 0 {
		cfg.MinRunes = 20
	}
	return &Engine{dup: dup, counter: counter, cfg: cfg, now: time.Now}
}

// ReviewDraft runs all checks. Order matters: NG expressions first so
// a blocked draft never touches the fingerprint store.
func (e *Engine) ReviewDraft(ctx context.Context, draft *generator.Draft) (*Review, error) {
	review := &Review{Publishable: true}

	lower := strings.ToLower(draft.Content)
	for _, ng := range e.cfg.NGExpressions {
		if ng != "" && strings.Contains(lower, strings.ToLower(ng)) {
			review.Publishable = false
			review.Reasons = append(review.Reasons, fmt.Sprintf("blocked expression %q", ng))
			return review, nil
		}
	}

	seen, err := e.dup.SeenContent(ctx, draft.Platform, draft.Content)
	if err != nil {
		return nil, fmt.Errorf("policy review: duplicate check: %w", err)
	}
	if seen {
		review.Publishable = false
		review.Flags.Duplicate = true
		review.Reasons = append(review.Reasons, "duplicate of recent content")
		return review, nil
	}

	if isLowQuality(draft.Content, e.cfg.MinRunes) {
		review.Flags.LowQuality = true
		review.Reasons = append(review.Reasons, "low quality draft")
	}

	dayStart := e.now().Add(-24 * time.Hour)
	count, err := e.counter.CountSince(ctx, draft.Platform, dayStart)
	if err != nil {
		return nil, fmt.Errorf("policy review: post count: %w", err)
	}
	if count >= e.cfg.MaxPerDay {
		review.Flags.OverPosting = true
		review.Reasons = append(review.Reasons, fmt.Sprintf("%d posts in 24h, soft cap %d", count, e.cfg.MaxPerDay))
	}

	return review, nil
}

// isLowQuality catches the degenerate drafts a model occasionally
// emits: too short, shouting, or exclamation-heavy.
func isLowQuality(content string, minRunes int) bool {
	if utf8.RuneCountInString(content) < minRunes {
		return true
	}
	if strings.Count(content, "!") >= 4 {
		return true
	}

	var letters, uppers int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	return letters >= 10 && float64(uppers)/float64(letters) > 0.7
}
