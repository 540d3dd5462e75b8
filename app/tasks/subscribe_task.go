package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/canopy-reader/canopy/app/database"
)

var ErrAlreadySubscribed = errors.New("already subscribed to this feed")

// SubscribeTask resolves a URL to a feed endpoint and stores it as an active feed.
type SubscribeTask struct {
	Task
	URL      string
	Folder   string
	Feed     *database.Feed
	resolver FeedResolver
	feedRepo database.FeedRepository
}

func NewSubscribeTask(url, folder string, resolver FeedResolver, feedRepo database.FeedRepository) *SubscribeTask {
	return &SubscribeTask{
		Task:     NewTask(TaskTypeSubscribe, url),
		URL:      strings.TrimSpace(url),
		Folder:   strings.TrimSpace(folder),
		resolver: resolver,
		feedRepo: feedRepo,
	}
}

func (t *SubscribeTask) Execute(ctx context.Context) error {
	resolution, err := t.resolver.Resolve(ctx, t.URL)
	if err != nil {
		return err
	}

	existing, err := t.feedRepo.GetFeedByURL(ctx, resolution.FeedURL)
	if err != nil {
		return fmt.Errorf("failed to check existing feed: %w", err)
	}
	if existing != nil {
		t.Feed = existing
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, resolution.FeedURL)
	}

	parsed := resolution.Feed
	f := &database.Feed{
		ID:          uuid.NewString(),
		Title:       parsed.Title,
		URL:         resolution.FeedURL,
		SiteURL:     parsed.SiteURL,
		Description: parsed.Description,
		IconURL:     parsed.IconURL,
		Folder:      t.Folder,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	if err := t.feedRepo.InsertFeed(ctx, f); err != nil {
		if !errors.Is(err, database.ErrDuplicateFeed) {
			return err
		}
		// a concurrent subscribe stored the same feed after our check
		existing, lookupErr := t.feedRepo.GetFeedByURL(ctx, f.URL)
		if lookupErr != nil {
			return fmt.Errorf("failed to load existing feed: %w", lookupErr)
		}
		t.Feed = existing
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, f.URL)
	}
	t.Feed = f

	slog.Info("Task completed",
		"type", "Subscribe",
		"feed", f.ID,
		"url", f.URL,
		"items", len(parsed.Items),
		"duration", t.GetDuration())

	return nil
}

// Subscribe runs a SubscribeTask and returns the new feed. With
// ErrAlreadySubscribed it returns the feed that is already stored.
func Subscribe(ctx context.Context, resolver FeedResolver, feedRepo database.FeedRepository, url, folder string) (*database.Feed, error) {
	task := NewSubscribeTask(url, folder, resolver, feedRepo)
	err := Run(ctx, task)
	return task.Feed, err
}
