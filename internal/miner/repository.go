package miner

import (
	"context"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// PostSource is read-only access to harvested posts.
type PostSource interface {
	// ListEligible returns non-spam posts in the given language with a
	// buzz score at or above the floor, most-buzzing first. The limit
	// is generous; the miner still set-differences against already
	// mined IDs and caps its own batch.
	ListEligible(ctx context.Context, language string, minBuzz float64, limit int) ([]domain.HarvestedPost, error)

	// BuzzScores returns the buzz score for each requested post ID.
	// Missing posts are simply absent from the map.
	BuzzScores(ctx context.Context, postIDs []string) (map[string]float64, error)
}

// PatternStore persists mined patterns.
type PatternStore interface {
	Insert(ctx context.Context, p *domain.Pattern) error

	// MinedPostIDs returns the set of post IDs that already have a
	// pattern, for set-difference during mining.
	MinedPostIDs(ctx context.Context) (map[string]struct{}, error)

	// ListRecent returns patterns extracted at or after the cutoff,
	// newest first, capped at limit.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.Pattern, error)
}

// Classifier is the LLM text-classification collaborator. Errors are
// per-item: a failed call skips that post and never aborts the batch.
type Classifier interface {
	ExtractPattern(ctx context.Context, text string) (*domain.PatternExtraction, error)
}
