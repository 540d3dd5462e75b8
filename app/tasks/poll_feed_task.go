package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
	"github.com/canopy-reader/canopy/app/storage"
)

const unknownError = "Unknown error"

// PollResult summarizes one poll of one feed.
type PollResult struct {
	FeedID    string   `json:"feedId"`
	FeedTitle string   `json:"feedTitle"`
	NewItems  int      `json:"newItems"`
	Errors    []string `json:"errors"`
}

func failedResult(f *database.Feed, message string) PollResult {
	return PollResult{
		FeedID:    f.ID,
		FeedTitle: f.Title,
		Errors:    []string{message},
	}
}

// Ingester turns feed items into inbox documents.
type Ingester struct {
	fetcher  FeedFetcher
	deriver  ContentDeriver
	store    storage.ObjectStore
	feedRepo database.FeedRepository
	docRepo  database.DocumentRepository
	now      func() time.Time
}

func NewIngester(fetcher FeedFetcher, deriver ContentDeriver, store storage.ObjectStore,
	feedRepo database.FeedRepository, docRepo database.DocumentRepository) *Ingester {
	return &Ingester{
		fetcher:  fetcher,
		deriver:  deriver,
		store:    store,
		feedRepo: feedRepo,
		docRepo:  docRepo,
		now:      time.Now,
	}
}

func (in *Ingester) PollFeed(ctx context.Context, f *database.Feed) PollResult {
	task := NewPollFeedTask(f, in)
	_ = Run(ctx, task)
	return task.Result
}

type PollFeedTask struct {
	Task
	Feed   *database.Feed
	Result PollResult
	*Ingester
}

func NewPollFeedTask(f *database.Feed, ingester *Ingester) *PollFeedTask {
	return &PollFeedTask{
		Task:     NewTask(TaskTypePollFeed, f.ID),
		Feed:     f,
		Ingester: ingester,
	}
}

// Execute returns an error only when the feed itself could not be fetched.
// Item failures are collected in Result.
func (t *PollFeedTask) Execute(ctx context.Context) error {
	t.Result = PollResult{
		FeedID:    t.Feed.ID,
		FeedTitle: t.Feed.Title,
		Errors:    []string{},
	}

	// Status bookkeeping must land even when the poll deadline has passed.
	statusCtx := context.WithoutCancel(ctx)

	parsed, err := t.fetcher.FetchFeed(ctx, t.Feed.URL)
	if err != nil {
		message := cmp.Or(err.Error(), unknownError)
		t.Result.Errors = append(t.Result.Errors, message)

		if markErr := t.feedRepo.MarkFetchFailed(statusCtx, t.Feed.ID, message, t.now().UTC()); markErr != nil {
			t.Result.Errors = append(t.Result.Errors, markErr.Error())
		}

		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	if err := t.feedRepo.MarkFetchSucceeded(statusCtx, t.Feed.ID, t.now().UTC()); err != nil {
		t.Result.Errors = append(t.Result.Errors, err.Error())
	}

	skipped := 0
	duplicates := 0

	for _, item := range parsed.Items {
		if item.URL == "" {
			skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			t.Result.Errors = append(t.Result.Errors, fmt.Sprintf("poll interrupted: %v", err))
			break
		}

		created, err := t.ingestItem(ctx, parsed, item)
		if err != nil {
			t.Result.Errors = append(t.Result.Errors, fmt.Sprintf("%s: %v", item.URL, err))
			continue
		}

		if created {
			t.Result.NewItems++
		} else {
			duplicates++
		}
	}

	slog.Info("Task completed",
		"type", "PollFeed",
		"feed", t.Feed.ID,
		"duration", t.GetDuration(),
		"total", len(parsed.Items),
		"skipped", skipped,
		"duplicates", duplicates,
		"new", t.Result.NewItems,
		"errors", len(t.Result.Errors))

	return nil
}

// ingestItem reports false when the item is already in the library.
func (t *PollFeedTask) ingestItem(ctx context.Context, parsed *feed.ParsedFeed, item feed.ParsedFeedItem) (bool, error) {
	existing, err := t.docRepo.FindByURLAndFeed(ctx, t.Feed.ID, item.URL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	content := t.deriver.Derive(ctx, item)

	id := uuid.NewString()
	key := storage.ContentKey(id)

	if err := t.store.Put(ctx, key, content.Body); err != nil {
		return false, fmt.Errorf("failed to store content: %w", err)
	}

	now := t.now().UTC()
	doc := &database.Document{
		ID:                 id,
		Type:               database.DocumentTypeFeedItem,
		Status:             database.StatusInbox,
		Title:              item.Title,
		Author:             content.Author,
		Description:        cmp.Or(content.Excerpt, item.Description),
		URL:                item.URL,
		Domain:             hostname(item.URL),
		ImageURL:           content.ImageURL,
		Language:           cmp.Or(content.Language, parsed.Language),
		WordCount:          content.WordCount,
		ReadingTimeMinutes: content.ReadingTimeMinutes,
		PublishedAt:        parsePublished(item.Published),
		ContentKey:         key,
		FeedID:             t.Feed.ID,
		Source:             database.DocumentSourceFeed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	inserted, err := t.docRepo.InsertDocument(ctx, doc)
	if err != nil || !inserted {
		t.discardContent(key)
	}
	if err != nil {
		return false, err
	}

	return inserted, nil
}

func (t *PollFeedTask) discardContent(key string) {
	if err := t.store.Delete(context.Background(), key); err != nil {
		slog.Warn("Failed to remove orphaned content", "feed", t.Feed.ID, "key", key, "error", err)
	}
}

// parsePublished returns nil for missing or unparseable dates.
func parsePublished(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	parsed, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		slog.Debug("Unparseable published date", "value", value, "error", err)
		return nil
	}

	parsed = parsed.UTC()
	return &parsed
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
