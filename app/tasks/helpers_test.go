package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
)

func setupRepos(t *testing.T) (*database.FeedRepo, *database.DocumentRepo) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewFeedRepository(db), database.NewDocumentRepository(db)
}

func insertFeed(t *testing.T, repo *database.FeedRepo, id, url string, active bool, created time.Time) *database.Feed {
	t.Helper()

	f := &database.Feed{
		ID:        id,
		Title:     "Feed " + id,
		URL:       url,
		IsActive:  active,
		CreatedAt: created,
	}
	if err := repo.InsertFeed(context.Background(), f); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}
	return f
}

// fakeFetcher serves parsed feeds by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string]*feed.ParsedFeed
	err   error
	calls int
}

func (f *fakeFetcher) FetchFeed(ctx context.Context, url string) (*feed.ParsedFeed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	parsed, ok := f.feeds[url]
	if !ok {
		return nil, &feed.FetchError{URL: url, StatusCode: 404}
	}
	return parsed, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, pageURL string) (*feed.Article, error) {
	return nil, fmt.Errorf("%w: origin unreachable", feed.ErrExtractionFailed)
}

type staticExtractor struct {
	article feed.Article
}

func (e staticExtractor) Extract(ctx context.Context, pageURL string) (*feed.Article, error) {
	article := e.article
	return &article, nil
}

// flakyDocRepo fails inserts for one URL and can hide existing rows from the
// pre-insert lookup.
type flakyDocRepo struct {
	*database.DocumentRepo
	failURL    string
	hideLookup bool
}

func (r *flakyDocRepo) FindByURLAndFeed(ctx context.Context, feedID, url string) (*database.Document, error) {
	if r.hideLookup {
		return nil, nil
	}
	return r.DocumentRepo.FindByURLAndFeed(ctx, feedID, url)
}

func (r *flakyDocRepo) InsertDocument(ctx context.Context, doc *database.Document) (bool, error) {
	if doc.URL == r.failURL {
		return false, errors.New("disk I/O error")
	}
	return r.DocumentRepo.InsertDocument(ctx, doc)
}

type fakeResolver struct {
	resolutions map[string]*feed.Resolution
}

func (r *fakeResolver) Resolve(ctx context.Context, url string) (*feed.Resolution, error) {
	if res, ok := r.resolutions[url]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("%w at %s", feed.ErrNoFeedFound, url)
}

func resolution(feedURL, title string) *feed.Resolution {
	return &feed.Resolution{
		FeedURL: feedURL,
		Feed: &feed.ParsedFeed{
			Title:       title,
			SiteURL:     "https://site.example",
			Description: title + " description",
		},
	}
}

// staleFeedRepo misses the first URL lookup, as if another writer inserted
// the feed right after it.
type staleFeedRepo struct {
	*database.FeedRepo
	missed bool
}

func (r *staleFeedRepo) GetFeedByURL(ctx context.Context, url string) (*database.Feed, error) {
	if !r.missed {
		r.missed = true
		return nil, nil
	}
	return r.FeedRepo.GetFeedByURL(ctx, url)
}
