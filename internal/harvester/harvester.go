// Package harvester pulls trending posts from each platform's search
// API into the harvested-post store, where the miner picks them up.
package harvester

import (
	"context"
	"fmt"
	"strings"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/platform"
)

// PostSink stores harvested posts.
type PostSink interface {
	UpsertHarvested(ctx context.Context, p *domain.HarvestedPost) error
}

// Config carries the search queries and per-query fetch size.
type Config struct {
	Queries  []string
	PerQuery int
}

// Result summarizes one harvest run.
type Result struct {
	Fetched     int      `json:"fetched"`
	Stored      int      `json:"stored"`
	SpamFlagged int      `json:"spam_flagged"`
	Errors      []string `json:"errors,omitempty"`
}

// Harvester runs the searches and persists what comes back.
type Harvester struct {
	clients []platform.Client
	sink    PostSink
	cfg     Config
}

// New creates a Harvester. PerQuery defaults to 50.
func New(clients []platform.Client, sink PostSink, cfg Config) *Harvester {
	if cfg.PerQuery <= 0 {
		cfg.PerQuery = 50
	}
	return &Harvester{clients: clients, sink: sink, cfg: cfg}
}

// Harvest runs every configured query against every platform. A failed
// search skips that (platform, query) pair; storage errors skip the
// post. Engagement counts are clamped at ingest so a platform glitch
// never produces negative buzz inputs.
func (h *Harvester) Harvest(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, client := range h.clients {
		for _, query := range h.cfg.Queries {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			posts, err := client.Search(ctx, query, h.cfg.PerQuery)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s %q: %v", client.Platform(), query, err))
				continue
			}
			res.Fetched += len(posts)

			for i := range posts {
				p := &posts[i]
				clampCounts(p)
				if IsLikelySpam(p.Content) {
					p.SpamFlagged = true
					res.SpamFlagged++
				}
				if err := h.sink.UpsertHarvested(ctx, p); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("store %s/%s: %v", p.Platform, p.ExternalID, err))
					continue
				}
				res.Stored++
			}
		}
	}

	logger.Info("harvest complete",
		"fetched", res.Fetched,
		"stored", res.Stored,
		"spam_flagged", res.SpamFlagged,
		"errors", len(res.Errors))
	return res, nil
}

func clampCounts(p *domain.HarvestedPost) {
	if p.Likes < 0 {
		p.Likes = 0
	}
	if p.Reposts < 0 {
		p.Reposts = 0
	}
	if p.Replies < 0 {
		p.Replies = 0
	}
	if p.Quotes < 0 {
		p.Quotes = 0
	}
	if p.FollowerCount < 0 {
		p.FollowerCount = 0
	}
}

var spamMarkers = []string{
	"follow me", "dm me", "giveaway", "free crypto", "airdrop",
	"click the link in bio", "onlyfans",
}

// IsLikelySpam applies cheap lexical heuristics. Flagged posts stay in
// the store for audit but never enter mining.
func IsLikelySpam(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range spamMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Count(lower, "#") >= 5 {
		return true
	}
	if strings.Count(lower, "http://")+strings.Count(lower, "https://") >= 3 {
		return true
	}
	return false
}
