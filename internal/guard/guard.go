// Package guard enforces publish-side safety rails: a global kill
// switch, per-platform hourly rate limits, and duplicate-content
// fingerprints. All state lives in Redis so every worker instance sees
// the same limits.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

const (
	killSwitchKey = "guard:killswitch"

	// fingerprintTTL is how long a published post's content hash blocks
	// near-identical reposts.
	fingerprintTTL = 7 * 24 * time.Hour
)

// Guard wraps the Redis-backed publish checks.
type Guard struct {
	client       *redis.Client
	hourlyLimits map[domain.Platform]int
	now          func() time.Time
}

// New creates a Guard. Platforms absent from hourlyLimits get no rate
// limit (only the kill switch and fingerprints apply).
func New(client *redis.Client, hourlyLimits map[domain.Platform]int) *Guard {
	return &Guard{client: client, hourlyLimits: hourlyLimits, now: time.Now}
}

// EngageKillSwitch stops all publishing until disengaged. The reason is
// stored for operators; the key carries no TTL on purpose — a human
// turned it on, a human turns it off.
func (g *Guard) EngageKillSwitch(ctx context.Context, reason string) error {
	if err := g.client.Set(ctx, killSwitchKey, reason, 0).Err(); err != nil {
		return fmt.Errorf("engage kill switch: %w", err)
	}
	return nil
}

// DisengageKillSwitch resumes publishing.
func (g *Guard) DisengageKillSwitch(ctx context.Context) error {
	if err := g.client.Del(ctx, killSwitchKey).Err(); err != nil {
		return fmt.Errorf("disengage kill switch: %w", err)
	}
	return nil
}

// KillSwitchEngaged reports whether publishing is halted, and why.
func (g *Guard) KillSwitchEngaged(ctx context.Context) (bool, string, error) {
	reason, err := g.client.Get(ctx, killSwitchKey).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("check kill switch: %w", err)
	}
	return true, reason, nil
}

// Verdict is the outcome of a pre-publish check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CheckPublish runs the kill switch and rate limit. It counts the
// attempt against the hourly window only when allowed, so denied calls
// don't consume quota.
func (g *Guard) CheckPublish(ctx context.Context, platform domain.Platform) (*Verdict, error) {
	engaged, reason, err := g.KillSwitchEngaged(ctx)
	if err != nil {
		return nil, err
	}
	if engaged {
		return &Verdict{Allowed: false, Reason: "kill switch engaged: " + reason}, nil
	}

	limit, ok := g.hourlyLimits[platform]
	if !ok || limit <= 0 {
		return &Verdict{Allowed: true}, nil
	}

	key := fmt.Sprintf("guard:rate:%s:%s", platform, g.now().UTC().Format("2006010215"))
	count, err := g.client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("rate check: %w", err)
	}
	if count >= limit {
		return &Verdict{Allowed: false, Reason: fmt.Sprintf("hourly limit %d reached for %s", limit, platform)}, nil
	}

	pipe := g.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate increment: %w", err)
	}
	return &Verdict{Allowed: true}, nil
}

// SeenContent reports whether near-identical content was published on
// the platform within the fingerprint window, and records the
// fingerprint either way.
func (g *Guard) SeenContent(ctx context.Context, platform domain.Platform, content string) (bool, error) {
	key := fmt.Sprintf("guard:fp:%s:%s", platform, Fingerprint(content))
	set, err := g.client.SetNX(ctx, key, "1", fingerprintTTL).Result()
	if err != nil {
		return false, fmt.Errorf("content fingerprint: %w", err)
	}
	return !set, nil
}

// Fingerprint hashes normalized content: lowercased, whitespace
// collapsed, so trivial reformatting doesn't dodge the duplicate check.
func Fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}
