package domain

import "time"

// ArmSource tags where an arm's current prior came from.
type ArmSource string

const (
	// ArmSourceSelfLearning marks arms shaped only by observed rewards.
	ArmSourceSelfLearning ArmSource = "self_learning"
	// ArmSourceExternalPatterns marks arms whose alpha was lifted by
	// prior injection from mined external patterns.
	ArmSourceExternalPatterns ArmSource = "external_patterns"
)

// Arm is one bandit arm: a context-and-choice combination identified by
// its dimension tuple. Alpha and Beta are the Beta-distribution shape
// parameters and must stay strictly positive; reward normalization keeps
// every increment in [0,1].
type Arm struct {
	ArmID        string    `json:"arm_id" db:"arm_id"`
	Platform     string    `json:"platform" db:"platform"`
	Format       string    `json:"format" db:"format"`
	HookType     string    `json:"hook_type" db:"hook_type"`
	Topic        string    `json:"topic" db:"topic"`
	LengthBucket string    `json:"length_bucket" db:"length_bucket"`
	TimeBucket   string    `json:"time_bucket" db:"time_bucket"`
	DayOfWeek    string    `json:"day_of_week" db:"day_of_week"`
	EmojiDensity string    `json:"emoji_density" db:"emoji_density"`
	Alpha        float64   `json:"alpha" db:"alpha"`
	Beta         float64   `json:"beta" db:"beta"`
	TotalReward  float64   `json:"total_reward" db:"total_reward"`
	PullCount    int64     `json:"pull_count" db:"pull_count"`
	Source       ArmSource `json:"source" db:"source"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
