package domain

import "time"

// TemplateWeight is the weekly multiplicative weight for one value of
// one weighted dimension on one platform. Exactly one of Format,
// HookType, PayloadType is non-empty per row. Weight stays in
// [0.5, 2.0]; rows for past weeks are kept as history and only the
// current week is read for live decisions.
type TemplateWeight struct {
	WeekStart    time.Time `json:"week_start" db:"week_start"`
	Platform     Platform  `json:"platform" db:"platform"`
	Format       string    `json:"format" db:"format"`
	HookType     string    `json:"hook_type" db:"hook_type"`
	PayloadType  string    `json:"payload_type" db:"payload_type"`
	Weight       float64   `json:"weight" db:"weight"`
	SampleCount  int       `json:"sample_count" db:"sample_count"`
	AvgBuzzScore float64   `json:"avg_buzz_score" db:"avg_buzz_score"`
}

// WeightSet is the effective per-platform weight lookup consumed by arm
// scoring. Every configured value is present; lookups of unknown values
// fall back to the neutral weight 1.0.
type WeightSet struct {
	Formats      map[string]float64 `json:"formats"`
	HookTypes    map[string]float64 `json:"hook_types"`
	PayloadTypes map[string]float64 `json:"payload_types"`
}

// FormatWeight returns the weight for a format, neutral if unknown.
func (ws WeightSet) FormatWeight(v string) float64 { return weightOrNeutral(ws.Formats, v) }

// HookTypeWeight returns the weight for a hook type, neutral if unknown.
func (ws WeightSet) HookTypeWeight(v string) float64 { return weightOrNeutral(ws.HookTypes, v) }

// PayloadTypeWeight returns the weight for a payload type, neutral if unknown.
func (ws WeightSet) PayloadTypeWeight(v string) float64 { return weightOrNeutral(ws.PayloadTypes, v) }

func weightOrNeutral(m map[string]float64, v string) float64 {
	if w, ok := m[v]; ok {
		return w
	}
	return 1.0
}
