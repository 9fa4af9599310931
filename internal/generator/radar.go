package generator

import (
	"context"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

// Angle is one fresh item from the topic's feeds, offered to the LLM
// as an optional news hook.
type Angle struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
}

// TopicRadar watches RSS/Atom feeds per topic so generated posts can
// reference something current instead of evergreen filler.
type TopicRadar struct {
	parser *gofeed.Parser
	feeds  map[string][]string
	maxAge time.Duration
	now    func() time.Time
}

// NewTopicRadar creates a radar over the configured topic feeds. Items
// older than three days are ignored.
func NewTopicRadar(feeds map[string][]string) *TopicRadar {
	return &TopicRadar{
		parser: gofeed.NewParser(),
		feeds:  feeds,
		maxAge: 72 * time.Hour,
		now:    time.Now,
	}
}

// FreshAngles returns the newest items for a topic, newest first. Feed
// failures are logged and skipped; a topic with no feeds or no fresh
// items returns an empty slice, never an error.
func (r *TopicRadar) FreshAngles(ctx context.Context, topic string, limit int) []Angle {
	if limit <= 0 {
		limit = 3
	}
	cutoff := r.now().Add(-r.maxAge)

	var angles []Angle
	for _, feedURL := range r.feeds[topic] {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			logger.Warn("topic radar feed failed", "topic", topic, "feed", feedURL, "error", err.Error())
			continue
		}
		for _, item := range feed.Items {
			published := itemTime(item)
			if published.Before(cutoff) {
				continue
			}
			angles = append(angles, Angle{
				Title:       item.Title,
				Link:        item.Link,
				PublishedAt: published,
			})
		}
	}

	sort.Slice(angles, func(i, j int) bool { return angles[i].PublishedAt.After(angles[j].PublishedAt) })
	if len(angles) > limit {
		angles = angles[:limit]
	}
	return angles
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
