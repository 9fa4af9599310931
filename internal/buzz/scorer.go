// Package buzz computes the virality score of a harvested post.
package buzz

import (
	"math"
	"time"
)

// Engagement weights. Reposts and quotes count more because they push
// the post into new timelines; replies sit between likes and reposts.
const (
	likeWeight   = 1.0
	repostWeight = 2.0
	replyWeight  = 1.5
	quoteWeight  = 2.5
)

// minAgeHours floors the post age so just-collected posts don't divide
// by a near-zero interval.
const minAgeHours = 0.5

// Score is the result of scoring one post.
type Score struct {
	BuzzScore float64 `json:"buzz_score"`
	Velocity  float64 `json:"velocity"`
}

// Compute scores a post from its raw engagement counts, age, and the
// author's audience size. Negative counts are clamped to zero. The buzz
// score log-dampens follower count so the signal tracks content
// virality rather than account size.
func Compute(likes, reposts, replies, quotes int64, postedAt, now time.Time, followerCount int64) Score {
	raw := float64(clamp(likes))*likeWeight +
		float64(clamp(reposts))*repostWeight +
		float64(clamp(replies))*replyWeight +
		float64(clamp(quotes))*quoteWeight

	ageHours := now.Sub(postedAt).Hours()
	if ageHours < minAgeHours {
		ageHours = minAgeHours
	}

	velocity := raw / ageHours

	// The +10 keeps the denominator sane for zero-follower accounts.
	buzzScore := velocity / math.Log(10+float64(clamp(followerCount)))

	return Score{BuzzScore: buzzScore, Velocity: velocity}
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
