package bandit

import (
	"math"
	"testing"
)

func TestCalculateReward(t *testing.T) {
	tests := []struct {
		name        string
		impressions int64
		flags       PenaltyFlags
		want        float64
	}{
		{"zero impressions", 0, PenaltyFlags{}, 0},
		{"one impression", 1, PenaltyFlags{}, math.Log(2)},
		{"clean thousand", 1000, PenaltyFlags{}, math.Log(1001)},
		{"duplicate penalty", 1000, PenaltyFlags{Duplicate: true}, math.Log(1001) - 2},
		{"low quality penalty", 1000, PenaltyFlags{LowQuality: true}, math.Log(1001) - 1},
		{"over-posting penalty", 1000, PenaltyFlags{OverPosting: true}, math.Log(1001) - 0.5},
		{"all penalties floored", 5, PenaltyFlags{Duplicate: true, LowQuality: true, OverPosting: true}, 0},
		{"negative impressions clamped", -50, PenaltyFlags{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReward(tt.impressions, tt.flags)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateReward(%d, %+v) = %v, want %v", tt.impressions, tt.flags, got, tt.want)
			}
		})
	}
}

func TestCalculateRewardMonotonic(t *testing.T) {
	allFlags := PenaltyFlags{Duplicate: true, LowQuality: true, OverPosting: true}
	prevClean, prevFlagged := -1.0, -1.0
	for _, n := range []int64{0, 1, 10, 100, 1000, 100000, 10000000} {
		clean := CalculateReward(n, PenaltyFlags{})
		flagged := CalculateReward(n, allFlags)
		if clean < prevClean {
			t.Errorf("reward must be non-decreasing in impressions: %v < %v at %d", clean, prevClean, n)
		}
		if flagged < prevFlagged {
			t.Errorf("flagged reward must be non-decreasing: %v < %v at %d", flagged, prevFlagged, n)
		}
		if flagged < 0 || clean < 0 {
			t.Errorf("reward must never go below 0")
		}
		prevClean, prevFlagged = clean, flagged
	}
}

func TestNormalizeReward(t *testing.T) {
	tests := []struct {
		name            string
		reward, divisor float64
		want            float64
	}{
		{"mid range", 5, 10, 0.5},
		{"zero", 0, 10, 0},
		{"clamped high", 25, 10, 1},
		{"clamped low", -3, 10, 0},
		{"zero divisor falls back", 5, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeReward(tt.reward, tt.divisor); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("normalizeReward(%v, %v) = %v, want %v", tt.reward, tt.divisor, got, tt.want)
			}
		})
	}
}
