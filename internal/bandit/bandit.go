package bandit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// minPriorSamples is the number of mined-pattern observations a
// dimension value needs before prior injection trusts it.
const minPriorSamples = 3

// maxBuzzFloor guards the per-dimension max average buzz against a
// zero denominator.
const maxBuzzFloor = 0.01

// Config carries the enumerated candidate lists and tunables. The lists
// are injected explicitly so the arm space is testable with small
// synthetic sets.
type Config struct {
	Formats       []string
	HookTypes     []string
	Topics        []string
	RewardDivisor float64
}

// CandidateSets optionally narrows the search space for one selection.
// Nil or empty slices fall back to the configured lists.
type CandidateSets struct {
	Formats   []string
	HookTypes []string
	Topics    []string
}

// Selection is the winning combination of one Thompson draw across the
// arm space.
type Selection struct {
	Platform string  `json:"platform"`
	Format   string  `json:"format"`
	HookType string  `json:"hook_type"`
	Topic    string  `json:"topic"`
	ArmID    string  `json:"arm_id"`
	Sample   float64 `json:"sample"`
}

// InjectionResult reports one prior-injection pass.
type InjectionResult struct {
	Injected int      `json:"injected"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Bandit is the decision core. It owns no persistence; arms live in the
// ArmStore and weights come from the WeightSource.
type Bandit struct {
	arms    ArmStore
	weights WeightSource
	sampler *Sampler
	cfg     Config
	now     func() time.Time
}

// New creates a Bandit with a wall-clock sampler.
func New(arms ArmStore, weights WeightSource, cfg Config) *Bandit {
	if cfg.RewardDivisor <= 0 {
		cfg.RewardDivisor = DefaultRewardDivisor
	}
	return &Bandit{
		arms:    arms,
		weights: weights,
		sampler: NewSampler(),
		cfg:     cfg,
		now:     time.Now,
	}
}

// SelectArm runs one Thompson-Sampling pass over the full candidate
// Cartesian product for a platform and returns the winning combination.
// The current time bucket and weekday are fixed context dimensions, not
// search dimensions. Template weights modulate alpha for format and
// hook only; topic is never weighted.
func (b *Bandit) SelectArm(ctx context.Context, platform domain.Platform, candidates *CandidateSets) (*Selection, error) {
	formats, hooks, topics := b.cfg.Formats, b.cfg.HookTypes, b.cfg.Topics
	if candidates != nil {
		if len(candidates.Formats) > 0 {
			formats = candidates.Formats
		}
		if len(candidates.HookTypes) > 0 {
			hooks = candidates.HookTypes
		}
		if len(candidates.Topics) > 0 {
			topics = candidates.Topics
		}
	}
	if len(formats) == 0 || len(hooks) == 0 || len(topics) == 0 {
		return nil, fmt.Errorf("select arm: empty candidate list (formats=%d hooks=%d topics=%d)",
			len(formats), len(hooks), len(topics))
	}

	now := b.now()
	timeBucket := TimeBucketFor(now.Hour())
	dayOfWeek := DayOfWeekFor(now)

	ws, err := b.weights.CurrentWeights(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("select arm: load weights: %w", err)
	}

	var (
		best       *Selection
		bestMissed bool // winner had no stored record yet
	)
	for _, f := range formats {
		for _, h := range hooks {
			for _, tp := range topics {
				key := ArmKey{
					Platform:   string(platform),
					Format:     f,
					HookType:   h,
					Topic:      tp,
					TimeBucket: timeBucket,
					DayOfWeek:  dayOfWeek,
				}
				armID := key.Encode()

				arm, err := b.arms.Get(ctx, armID)
				missed := false
				switch {
				case errors.Is(err, ErrArmNotFound):
					arm = key.NewArm(now)
					missed = true
				case err != nil:
					return nil, fmt.Errorf("select arm: get %s: %w", armID, err)
				}

				adjustedAlpha := arm.Alpha * ws.FormatWeight(f) * ws.HookTypeWeight(h)
				x := b.sampler.Beta(adjustedAlpha, arm.Beta)

				// Strict > keeps first-seen on ties; draws are
				// continuous so exact ties are measure-zero anyway.
				if best == nil || x > best.Sample {
					best = &Selection{
						Platform: string(platform),
						Format:   f,
						HookType: h,
						Topic:    tp,
						ArmID:    armID,
						Sample:   x,
					}
					bestMissed = missed
				}
			}
		}
	}

	// Lazy creation: the chosen arm enters the store on first selection
	// so its lifecycle is observable before the first reward lands.
	if bestMissed {
		key, _ := DecodeArmKey(best.ArmID)
		if err := b.arms.Upsert(ctx, key.NewArm(now)); err != nil {
			// A failed lazy create does not invalidate the choice.
			log.Printf("[Bandit] lazy create %s failed: %v", best.ArmID, err)
		}
	}

	return best, nil
}

// Update applies one observed reward to an arm as a conjugate Beta
// update. The reward is normalized into [0,1] before being treated as a
// Bernoulli-like pseudo-observation; the unnormalized value accumulates
// into TotalReward for reporting. Missing arms are created from the
// dimensions parsed out of the arm ID.
func (b *Bandit) Update(ctx context.Context, armID string, platform domain.Platform, reward float64) error {
	arm, err := b.arms.Get(ctx, armID)
	if errors.Is(err, ErrArmNotFound) {
		key, derr := DecodeArmKey(armID)
		if derr != nil {
			return fmt.Errorf("update: %w", derr)
		}
		if key.Platform == "" {
			key.Platform = string(platform)
		}
		arm = key.NewArm(b.now())
	} else if err != nil {
		return fmt.Errorf("update: get %s: %w", armID, err)
	}

	if reward < 0 {
		reward = 0
	}
	norm := normalizeReward(reward, b.cfg.RewardDivisor)

	arm.Alpha += norm
	arm.Beta += 1 - norm
	arm.TotalReward += reward
	arm.PullCount++
	arm.UpdatedAt = b.now()

	if err := b.arms.Upsert(ctx, arm); err != nil {
		return fmt.Errorf("update: upsert %s: %w", armID, err)
	}
	return nil
}

// InjectExternalPriors lifts the alpha of partial arms (wildcarded on
// everything except platform and one dimension) from the mined-pattern
// distribution. Injection only ever raises alpha; accumulated
// self-learning evidence is never pushed down. Values with fewer than 3
// samples are skipped as statistically unreliable.
func (b *Bandit) InjectExternalPriors(ctx context.Context, platform domain.Platform, dist *domain.PatternDistribution) (*InjectionResult, error) {
	if dist == nil {
		return &InjectionResult{}, nil
	}

	res := &InjectionResult{}
	inject := func(stats map[string]domain.DimensionStat, buildKey func(value string) ArmKey) {
		maxBuzz := maxBuzzFloor
		for _, s := range stats {
			if s.Count >= minPriorSamples && s.AvgBuzz > maxBuzz {
				maxBuzz = s.AvgBuzz
			}
		}
		for value, s := range stats {
			if s.Count < minPriorSamples {
				res.Skipped++
				continue
			}
			boost := s.AvgBuzz / maxBuzz
			if err := b.injectOne(ctx, buildKey(value), boost); err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			res.Injected++
		}
	}

	inject(dist.Formats, func(v string) ArmKey {
		return ArmKey{Platform: string(platform), Format: v}
	})
	inject(dist.HookTypes, func(v string) ArmKey {
		return ArmKey{Platform: string(platform), HookType: v}
	})

	return res, nil
}

func (b *Bandit) injectOne(ctx context.Context, key ArmKey, boost float64) error {
	armID := key.Encode()
	arm, err := b.arms.Get(ctx, armID)
	if errors.Is(err, ErrArmNotFound) {
		arm = key.NewArm(b.now())
	} else if err != nil {
		return fmt.Errorf("inject %s: %w", armID, err)
	}

	if candidate := 1 + boost*2; candidate > arm.Alpha {
		arm.Alpha = candidate
	}
	arm.Source = domain.ArmSourceExternalPatterns
	arm.UpdatedAt = b.now()

	if err := b.arms.Upsert(ctx, arm); err != nil {
		return fmt.Errorf("inject %s: upsert: %w", armID, err)
	}
	return nil
}

// CalculateUCB scores an arm with UCB1. Untried arms score +Inf so they
// are always explored first. This is the deterministic alternative to
// Thompson Sampling; the production selection path never calls it.
func CalculateUCB(arm *domain.Arm, totalPulls int64) float64 {
	if arm.PullCount == 0 {
		return math.Inf(1)
	}
	exploitation := arm.TotalReward / float64(arm.PullCount)
	exploration := math.Sqrt(2 * math.Log(float64(totalPulls)+1) / float64(arm.PullCount))
	return exploitation + exploration
}
