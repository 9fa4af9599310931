package bandit

import "math"

// Fixed penalties subtracted from the raw reward when the policy engine
// flagged the post.
const (
	penaltyDuplicate   = 2.0
	penaltyLowQuality  = 1.0
	penaltyOverPosting = 0.5
)

// DefaultRewardDivisor normalizes raw rewards into [0,1] before the
// conjugate Beta update. ln(1+impressions) rarely exceeds ~10 for this
// audience size, so /10 keeps pseudo-observations well inside range.
const DefaultRewardDivisor = 10.0

// PenaltyFlags are the policy verdicts that shape the reward downward.
type PenaltyFlags struct {
	Duplicate   bool
	LowQuality  bool
	OverPosting bool
}

// CalculateReward maps a 24-hour impression count and policy penalties
// to a scalar reward, floored at zero. The log transform compresses
// outliers so a single viral post cannot dominate the posterior.
func CalculateReward(impressions int64, flags PenaltyFlags) float64 {
	if impressions < 0 {
		impressions = 0
	}
	reward := math.Log(1 + float64(impressions))
	if flags.Duplicate {
		reward -= penaltyDuplicate
	}
	if flags.LowQuality {
		reward -= penaltyLowQuality
	}
	if flags.OverPosting {
		reward -= penaltyOverPosting
	}
	if reward < 0 {
		return 0
	}
	return reward
}

// normalizeReward squeezes a raw reward into [0,1] so it can be treated
// as a Bernoulli-like pseudo-observation.
func normalizeReward(reward, divisor float64) float64 {
	if divisor <= 0 {
		divisor = DefaultRewardDivisor
	}
	n := reward / divisor
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
