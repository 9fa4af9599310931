// Package platform holds the publishing-target adapters. Each client
// covers the three calls the pipeline needs: keyword search for
// harvesting, publish, and impression lookup for metric snapshots.
package platform

import (
	"context"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// Client is one publishing target.
type Client interface {
	// Platform identifies the target this client talks to.
	Platform() domain.Platform

	// Search returns recent public posts matching the query, with
	// engagement counts and author follower counts filled in.
	Search(ctx context.Context, query string, limit int) ([]domain.HarvestedPost, error)

	// Publish posts content and returns the platform's post ID.
	Publish(ctx context.Context, content string) (string, error)

	// Impressions returns the current impression count for a post this
	// account published.
	Impressions(ctx context.Context, externalID string) (int64, error)
}
