package bandit

import (
	"strings"
	"testing"
	"time"
)

func TestArmKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  ArmKey
	}{
		{
			"fully specified",
			ArmKey{
				Platform: "x", Format: "listicle", HookType: "curiosity", Topic: "kei_trucks",
				LengthBucket: "short", TimeBucket: "morning", DayOfWeek: "monday", EmojiDensity: "low",
			},
		},
		{
			"selection-shaped key",
			ArmKey{Platform: "threads", Format: "question", HookType: "contrarian", Topic: "van_life",
				TimeBucket: "evening", DayOfWeek: "friday"},
		},
		{
			"partial prior-injection key",
			ArmKey{Platform: "x", Format: "hot_take"},
		},
		{
			"all wildcards",
			ArmKey{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.key.Encode()
			if got := len(strings.Split(encoded, ":")); got != 8 {
				t.Fatalf("Encode() = %q, want 8 colon-separated segments, got %d", encoded, got)
			}
			decoded, err := DecodeArmKey(encoded)
			if err != nil {
				t.Fatalf("DecodeArmKey(%q) error: %v", encoded, err)
			}
			if decoded != tt.key {
				t.Errorf("round trip = %+v, want %+v", decoded, tt.key)
			}
		})
	}
}

func TestDecodeArmKeyMalformed(t *testing.T) {
	tests := []struct {
		name  string
		armID string
	}{
		{"too few segments", "x:listicle:curiosity"},
		{"too many segments", "x:a:b:c:d:e:f:g:h"},
		{"empty segment", "x::curiosity:kei_trucks:any:morning:monday:any"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeArmKey(tt.armID); err == nil {
				t.Errorf("DecodeArmKey(%q) should fail", tt.armID)
			}
		})
	}
}

func TestNewArmDefaults(t *testing.T) {
	now := time.Now()
	key := ArmKey{Platform: "x", Format: "story"}
	arm := key.NewArm(now)

	if arm.Alpha != 1 || arm.Beta != 1 {
		t.Errorf("defaults alpha=%v beta=%v, want uniform prior 1/1", arm.Alpha, arm.Beta)
	}
	if arm.PullCount != 0 || arm.TotalReward != 0 {
		t.Errorf("new arm must start with no pulls")
	}
	if arm.ArmID != key.Encode() {
		t.Errorf("ArmID = %q, want %q", arm.ArmID, key.Encode())
	}
}

func TestTimeBucketFor(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "late_night"}, {4, "late_night"},
		{5, "early_morning"}, {7, "early_morning"},
		{8, "morning"}, {10, "morning"},
		{11, "midday"}, {13, "midday"},
		{14, "afternoon"}, {16, "afternoon"},
		{17, "evening"}, {19, "evening"},
		{20, "night"}, {23, "night"},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		if got := TimeBucketFor(tt.hour); got != tt.want {
			t.Errorf("TimeBucketFor(%d) = %q, want %q", tt.hour, got, tt.want)
		}
		seen[tt.want] = true
	}
	if len(seen) != 7 {
		t.Errorf("expected 7 distinct buckets, table covers %d", len(seen))
	}
}
