package buzz

import (
	"math"
	"testing"
	"time"
)

func TestComputeEngagementWeights(t *testing.T) {
	now := time.Now()
	postedAt := now.Add(-1 * time.Hour)

	tests := []struct {
		name                            string
		likes, reposts, replies, quotes int64
		wantVelocity                    float64
	}{
		{"likes only", 10, 0, 0, 0, 10},
		{"reposts count double", 0, 10, 0, 0, 20},
		{"replies count 1.5x", 0, 0, 10, 0, 15},
		{"quotes count 2.5x", 0, 0, 0, 10, 25},
		{"mixed", 4, 2, 2, 2, 4 + 4 + 3 + 5},
		{"zero engagement", 0, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.likes, tt.reposts, tt.replies, tt.quotes, postedAt, now, 1000)
			if math.Abs(got.Velocity-tt.wantVelocity) > 1e-9 {
				t.Errorf("Velocity = %v, want %v", got.Velocity, tt.wantVelocity)
			}
		})
	}
}

func TestComputeAgeFloor(t *testing.T) {
	now := time.Now()

	// A post from 6 minutes ago must be treated as 30 minutes old.
	fresh := Compute(100, 0, 0, 0, now.Add(-6*time.Minute), now, 0)
	floored := Compute(100, 0, 0, 0, now.Add(-30*time.Minute), now, 0)

	if math.Abs(fresh.Velocity-floored.Velocity) > 1e-9 {
		t.Errorf("fresh velocity %v != floored velocity %v", fresh.Velocity, floored.Velocity)
	}
	if math.Abs(fresh.Velocity-200) > 1e-9 {
		t.Errorf("velocity = %v, want 200 (100 engagement / 0.5h)", fresh.Velocity)
	}
}

func TestComputeFollowerDamping(t *testing.T) {
	now := time.Now()
	postedAt := now.Add(-2 * time.Hour)

	prev := Compute(500, 50, 20, 10, postedAt, now, 100)
	for _, followers := range []int64{200, 400, 800, 1600, 1_000_000} {
		cur := Compute(500, 50, 20, 10, postedAt, now, followers)
		if cur.BuzzScore >= prev.BuzzScore {
			t.Errorf("buzz score should strictly decrease as followers grow: %v (at %d) >= %v", cur.BuzzScore, followers, prev.BuzzScore)
		}
		if cur.Velocity != prev.Velocity {
			t.Errorf("velocity should not depend on followers")
		}
		prev = cur
	}
}

func TestComputeNonNegativeFinite(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name                            string
		likes, reposts, replies, quotes int64
		age                             time.Duration
		followers                       int64
	}{
		{"all zero", 0, 0, 0, 0, time.Hour, 0},
		{"negative counts clamped", -5, -1, -2, -3, time.Hour, -10},
		{"future post", 10, 0, 0, 0, -time.Hour, 100},
		{"huge values", 1 << 40, 1 << 40, 1 << 40, 1 << 40, time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.likes, tt.reposts, tt.replies, tt.quotes, now.Add(-tt.age), now, tt.followers)
			if got.BuzzScore < 0 || math.IsNaN(got.BuzzScore) || math.IsInf(got.BuzzScore, 0) {
				t.Errorf("BuzzScore = %v, want non-negative finite", got.BuzzScore)
			}
			if got.Velocity < 0 || math.IsNaN(got.Velocity) || math.IsInf(got.Velocity, 0) {
				t.Errorf("Velocity = %v, want non-negative finite", got.Velocity)
			}
		})
	}
}
