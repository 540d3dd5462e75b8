package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
)

type SyncResult struct {
	Subscribed int `json:"subscribed"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Failed     int `json:"failed"`
}

// SyncSubscriptionsTask brings the feeds table in line with the seed files.
// Missing feeds are subscribed; existing ones get folder and active state
// from their file. Feeds without a file are left alone.
type SyncSubscriptionsTask struct {
	Task
	Result   SyncResult
	loader   *feed.SubscriptionLoader
	resolver FeedResolver
	feedRepo database.FeedRepository
}

func NewSyncSubscriptionsTask(feedsDir string, resolver FeedResolver, feedRepo database.FeedRepository) *SyncSubscriptionsTask {
	return &SyncSubscriptionsTask{
		Task:     NewTask(TaskTypeSyncSubscriptions, feedsDir),
		loader:   feed.NewSubscriptionLoader(feedsDir),
		resolver: resolver,
		feedRepo: feedRepo,
	}
}

func (t *SyncSubscriptionsTask) Execute(ctx context.Context) error {
	if err := t.loader.Run(); err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	t.Result.Failed += len(t.loader.Failures())

	for _, sub := range t.loader.Subscriptions() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.syncOne(ctx, sub); err != nil {
			t.Result.Failed++
			slog.Warn("Subscription sync failed", "name", sub.Name, "url", sub.URL, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", "SyncSubscriptions",
		"dir", t.Target,
		"duration", t.GetDuration(),
		"total", t.loader.Count(),
		"subscribed", t.Result.Subscribed,
		"updated", t.Result.Updated,
		"failed", t.Result.Failed)

	return nil
}

func (t *SyncSubscriptionsTask) syncOne(ctx context.Context, sub *feed.Subscription) error {
	existing, err := t.feedRepo.GetFeedByURL(ctx, sub.URL)
	if err != nil {
		return err
	}

	if existing == nil {
		created, err := Subscribe(ctx, t.resolver, t.feedRepo, sub.URL, sub.Folder)
		if errors.Is(err, ErrAlreadySubscribed) && created != nil {
			// The seed URL resolved to a feed stored under its canonical URL.
			return t.reconcile(ctx, created, sub)
		}
		if err != nil {
			return err
		}

		if !sub.IsEnabled() {
			active := false
			if _, err := t.feedRepo.UpdateFeed(ctx, created.ID, database.FeedUpdate{IsActive: &active}); err != nil {
				return err
			}
		}

		t.Result.Subscribed++
		return nil
	}

	return t.reconcile(ctx, existing, sub)
}

// reconcile applies the file's folder and enabled state to a stored feed.
func (t *SyncSubscriptionsTask) reconcile(ctx context.Context, existing *database.Feed, sub *feed.Subscription) error {
	var update database.FeedUpdate
	if existing.Folder != sub.Folder {
		update.Folder = &sub.Folder
	}
	if enabled := sub.IsEnabled(); existing.IsActive != enabled {
		update.IsActive = &enabled
	}

	if update.Folder == nil && update.IsActive == nil {
		t.Result.Unchanged++
		return nil
	}

	if _, err := t.feedRepo.UpdateFeed(ctx, existing.ID, update); err != nil {
		return err
	}

	t.Result.Updated++
	return nil
}
