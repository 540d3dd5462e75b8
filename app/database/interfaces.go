package database

import (
	"context"
	"time"
)

// Getters return nil, nil when the row does not exist.

type FeedRepository interface {
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	GetActiveFeeds(ctx context.Context) ([]Feed, error)
	GetAllFeeds(ctx context.Context) ([]Feed, error)
	ListFeeds(ctx context.Context, folder string) ([]FeedWithCount, error)
	ListFolders(ctx context.Context) ([]string, error)
	GetFeedCount(ctx context.Context) (int, error)

	InsertFeed(ctx context.Context, feed *Feed) error
	UpdateFeed(ctx context.Context, id string, update FeedUpdate) (*Feed, error)
	DeleteFeed(ctx context.Context, id string) (bool, error)

	MarkFetchSucceeded(ctx context.Context, id string, at time.Time) error
	MarkFetchFailed(ctx context.Context, id string, message string, at time.Time) error
	MarkFeedItemsRead(ctx context.Context, id string, at time.Time) (int64, error)
}

type DocumentRepository interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	FindByURLAndFeed(ctx context.Context, feedID, url string) (*Document, error)
	CountByFeed(ctx context.Context, feedID string) (int, error)

	// InsertDocument reports false when a document with the same
	// (feed_id, url) already exists.
	InsertDocument(ctx context.Context, doc *Document) (bool, error)
}

var (
	_ FeedRepository     = (*FeedRepo)(nil)
	_ DocumentRepository = (*DocumentRepo)(nil)
)
