package domain

import "time"

// Platform identifies a publishing target.
type Platform string

const (
	PlatformX       Platform = "x"
	PlatformThreads Platform = "threads"
)

// HarvestedPost is an externally trending post collected from a platform
// search. Engagement counts are clamped to zero at ingest; BuzzScore and
// Velocity are computed once at collection time.
type HarvestedPost struct {
	ID             string    `json:"id" db:"id"`
	Platform       Platform  `json:"platform" db:"platform"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	AuthorHandle   string    `json:"author_handle" db:"author_handle"`
	FollowerCount  int64     `json:"follower_count" db:"follower_count"`
	Content        string    `json:"content" db:"content"`
	Language       string    `json:"language" db:"language"`
	Likes          int64     `json:"likes" db:"likes"`
	Reposts        int64     `json:"reposts" db:"reposts"`
	Replies        int64     `json:"replies" db:"replies"`
	Quotes         int64     `json:"quotes" db:"quotes"`
	SpamFlagged    bool      `json:"spam_flagged" db:"spam_flagged"`
	BuzzScore      float64   `json:"buzz_score" db:"buzz_score"`
	Velocity       float64   `json:"velocity" db:"velocity"`
	PostedAt       time.Time `json:"posted_at" db:"posted_at"`
	CollectedAt    time.Time `json:"collected_at" db:"collected_at"`
}

// PublishedPost is a post this agent generated and published. ArmID ties
// the post back to the bandit arm that chose its shape; LearnedAt marks
// that the 24h metric snapshot has already been fed into the posterior,
// so reruns of the learning job skip it.
type PublishedPost struct {
	ID          string     `json:"id" db:"id"`
	Platform    Platform   `json:"platform" db:"platform"`
	ExternalID  string     `json:"external_id" db:"external_id"`
	ArmID       string     `json:"arm_id" db:"arm_id"`
	Format      string     `json:"format" db:"format"`
	HookType    string     `json:"hook_type" db:"hook_type"`
	Topic       string     `json:"topic" db:"topic"`
	Content     string     `json:"content" db:"content"`
	PublishedAt time.Time  `json:"published_at" db:"published_at"`
	LearnedAt   *time.Time `json:"learned_at,omitempty" db:"learned_at"`

	// Policy penalty flags, set by the policy engine at publish/review time.
	FlagDuplicate   bool `json:"flag_duplicate" db:"flag_duplicate"`
	FlagLowQuality  bool `json:"flag_low_quality" db:"flag_low_quality"`
	FlagOverPosting bool `json:"flag_over_posting" db:"flag_over_posting"`
}

// MetricSnapshot is an impression observation for a published post taken
// at a fixed number of hours after publish (6, 24, or 48).
type MetricSnapshot struct {
	PublishedPostID   string    `json:"published_post_id" db:"published_post_id"`
	HoursAfterPublish int       `json:"hours_after_publish" db:"hours_after_publish"`
	ImpressionCount   int64     `json:"impression_count" db:"impression_count"`
	CollectedAt       time.Time `json:"collected_at" db:"collected_at"`
}
