package bandit

import (
	"fmt"
	"strings"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// Wildcard is the sentinel written into an arm key segment whose
// dimension is unset. Two keys with identical segments (wildcards
// included) name the same arm.
const Wildcard = "any"

// armKeySegments is the fixed number of colon-joined segments in a key.
const armKeySegments = 8

// ArmKey is the dimension tuple identifying one arm. Empty fields are
// wildcards. Encode/Decode is the single canonical codec for arm IDs;
// no other code parses the string form.
type ArmKey struct {
	Platform     string
	Format       string
	HookType     string
	Topic        string
	LengthBucket string
	TimeBucket   string
	DayOfWeek    string
	EmojiDensity string
}

// Encode renders the key as 8 colon-separated segments in fixed order,
// substituting the wildcard sentinel for unset dimensions.
func (k ArmKey) Encode() string {
	segs := [armKeySegments]string{
		k.Platform, k.Format, k.HookType, k.Topic,
		k.LengthBucket, k.TimeBucket, k.DayOfWeek, k.EmojiDensity,
	}
	for i, s := range segs {
		if s == "" {
			segs[i] = Wildcard
		}
	}
	return strings.Join(segs[:], ":")
}

// DecodeArmKey parses an encoded arm ID back into its dimension tuple.
// Wildcard segments decode to empty fields.
func DecodeArmKey(armID string) (ArmKey, error) {
	parts := strings.Split(armID, ":")
	if len(parts) != armKeySegments {
		return ArmKey{}, fmt.Errorf("malformed arm id %q: want %d segments, got %d", armID, armKeySegments, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return ArmKey{}, fmt.Errorf("malformed arm id %q: empty segment %d", armID, i)
		}
		if p == Wildcard {
			parts[i] = ""
		}
	}
	return ArmKey{
		Platform:     parts[0],
		Format:       parts[1],
		HookType:     parts[2],
		Topic:        parts[3],
		LengthBucket: parts[4],
		TimeBucket:   parts[5],
		DayOfWeek:    parts[6],
		EmojiDensity: parts[7],
	}, nil
}

// NewArm builds a default-prior arm record for a key. Alpha and beta
// start at 1 (uniform prior).
func (k ArmKey) NewArm(now time.Time) *domain.Arm {
	return &domain.Arm{
		ArmID:        k.Encode(),
		Platform:     k.Platform,
		Format:       k.Format,
		HookType:     k.HookType,
		Topic:        k.Topic,
		LengthBucket: k.LengthBucket,
		TimeBucket:   k.TimeBucket,
		DayOfWeek:    k.DayOfWeek,
		EmojiDensity: k.EmojiDensity,
		Alpha:        1,
		Beta:         1,
		Source:       domain.ArmSourceSelfLearning,
		UpdatedAt:    now,
	}
}

// Time buckets partition the day into 7 named ranges.
var timeBuckets = []struct {
	name      string
	from, til int // [from, til) in hours
}{
	{"late_night", 0, 5},
	{"early_morning", 5, 8},
	{"morning", 8, 11},
	{"midday", 11, 14},
	{"afternoon", 14, 17},
	{"evening", 17, 20},
	{"night", 20, 24},
}

// TimeBucketFor returns the bucket name for an hour of day (0-23).
func TimeBucketFor(hour int) string {
	for _, b := range timeBuckets {
		if hour >= b.from && hour < b.til {
			return b.name
		}
	}
	return timeBuckets[0].name
}

// DayOfWeekFor returns the lowercase weekday name used as the day
// dimension value.
func DayOfWeekFor(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}
