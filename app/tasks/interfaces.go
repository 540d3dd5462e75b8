package tasks

import (
	"context"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
)

// FeedFetcher fetches and normalizes a feed URL.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) (*feed.ParsedFeed, error)
}

type FeedResolver interface {
	Resolve(ctx context.Context, url string) (*feed.Resolution, error)
}

type ContentDeriver interface {
	Derive(ctx context.Context, item feed.ParsedFeedItem) feed.DerivedContent
}

// FeedIngester runs one poll of one feed. It never fails; problems are
// reported in the result.
type FeedIngester interface {
	PollFeed(ctx context.Context, f *database.Feed) PollResult
}

// PollerInterface is the caller-facing poll surface.
// Example usage:
//
//	poller := NewPoller(ingester, feedRepo, 5, 5*time.Minute)
//	results, err := poller.PollAll(ctx)
type PollerInterface interface {
	PollOne(ctx context.Context, feedID string) (PollResult, error)
	PollAll(ctx context.Context) ([]PollResult, error)
}

var (
	_ FeedFetcher     = (*feed.Fetcher)(nil)
	_ FeedResolver    = (*feed.Resolver)(nil)
	_ ContentDeriver  = (*feed.ContentDeriver)(nil)
	_ FeedIngester    = (*Ingester)(nil)
	_ PollerInterface = (*Poller)(nil)
)
