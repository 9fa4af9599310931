package bandit

import (
	"context"
	"errors"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// ErrArmNotFound is returned by ArmStore.Get for arms that have never
// been written. The bandit treats it as "use the uniform prior".
var ErrArmNotFound = errors.New("arm not found")

// ArmStore persists bandit arm records keyed by their encoded arm ID.
// Implementations must upsert on natural key; concurrent upserts of the
// same arm resolve last-write-wins (both writers carry equivalent
// default priors on first creation).
type ArmStore interface {
	// Get returns the arm record. Returns ErrArmNotFound if it has
	// never been written.
	Get(ctx context.Context, armID string) (*domain.Arm, error)

	// Upsert writes the full arm record by arm ID.
	Upsert(ctx context.Context, arm *domain.Arm) error

	// TotalPulls returns the sum of pull counts across all arms for a
	// platform. Used by the UCB exploration term.
	TotalPulls(ctx context.Context, platform string) (int64, error)
}

// WeightSource exposes the current effective template weights for a
// platform. Every configured format/hook/payload value must be present
// (neutral 1.0 when no data exists for the current week).
type WeightSource interface {
	CurrentWeights(ctx context.Context, platform domain.Platform) (domain.WeightSet, error)
}
