package domain

import "time"

// Pattern is a mined structural description of one harvested post.
// Patterns with QualityScore below 0.5 or two or more taboo flags are
// never persisted and never aggregated.
type Pattern struct {
	ID               string    `json:"id" db:"id"`
	PostID           string    `json:"post_id" db:"post_id"`
	Format           string    `json:"format" db:"format"`
	HookType         string    `json:"hook_type" db:"hook_type"`
	PayloadType      string    `json:"payload_type" db:"payload_type"`
	Rhetorical       string    `json:"rhetorical" db:"rhetorical"`
	LengthBucket     string    `json:"length_bucket" db:"length_bucket"`
	EmojiDensity     string    `json:"emoji_density" db:"emoji_density"`
	PunctuationStyle string    `json:"punctuation_style" db:"punctuation_style"`
	TabooFlags       []string  `json:"taboo_flags" db:"taboo_flags"`
	QualityScore     float64   `json:"quality_score" db:"quality_score"`
	ExtractedAt      time.Time `json:"extracted_at" db:"extracted_at"`
}

// Usable reports whether the pattern passed the mining quality gate.
func (p Pattern) Usable() bool {
	return p.QualityScore >= 0.5 && len(p.TabooFlags) < 2
}

// PatternExtraction is the raw output of the text-classification
// collaborator for a single post, before the quality gate.
type PatternExtraction struct {
	Format           string   `json:"format"`
	HookType         string   `json:"hook_type"`
	PayloadType      string   `json:"payload_type"`
	Rhetorical       string   `json:"rhetorical"`
	LengthBucket     string   `json:"length_bucket"`
	EmojiDensity     string   `json:"emoji_density"`
	PunctuationStyle string   `json:"punctuation_style"`
	TabooFlags       []string `json:"taboo_flags"`
	QualityScore     float64  `json:"quality_score"`
}

// DimensionStat is the per-value aggregate of a pattern dimension over
// the trailing window: how often the value appeared and the average buzz
// of the posts it appeared on.
type DimensionStat struct {
	Count   int     `json:"count"`
	AvgBuzz float64 `json:"avg_buzz"`
}

// PatternDistribution maps each observed value of the three weighted
// dimensions to its aggregate. Values with zero occurrences are absent;
// consumers must default to neutral.
type PatternDistribution struct {
	Formats      map[string]DimensionStat `json:"formats"`
	HookTypes    map[string]DimensionStat `json:"hook_types"`
	PayloadTypes map[string]DimensionStat `json:"payload_types"`
	WindowDays   int                      `json:"window_days"`
	PatternCount int                      `json:"pattern_count"`
}
