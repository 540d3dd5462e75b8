package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
)

type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Feeds   []string `json:"feeds"`
}

// ImportOPMLTask stores every feed outline of an OPML document whose URL is
// not already subscribed. Feeds are stored as given, without resolution.
type ImportOPMLTask struct {
	Task
	Data     []byte
	Result   ImportResult
	feedRepo database.FeedRepository
}

func NewImportOPMLTask(source string, data []byte, feedRepo database.FeedRepository) *ImportOPMLTask {
	return &ImportOPMLTask{
		Task:     NewTask(TaskTypeImportOPML, source),
		Data:     data,
		feedRepo: feedRepo,
	}
}

func (t *ImportOPMLTask) Execute(ctx context.Context) error {
	entries, err := feed.ParseOPML(t.Data)
	if err != nil {
		return err
	}

	t.Result = ImportResult{Feeds: []string{}}

	for _, entry := range entries {
		existing, err := t.feedRepo.GetFeedByURL(ctx, entry.URL)
		if err != nil {
			return fmt.Errorf("failed to check existing feed: %w", err)
		}
		if existing != nil {
			t.Result.Skipped++
			continue
		}

		f := &database.Feed{
			ID:        uuid.NewString(),
			Title:     entry.Title,
			URL:       entry.URL,
			SiteURL:   entry.SiteURL,
			Folder:    entry.Folder,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}

		if err := t.feedRepo.InsertFeed(ctx, f); err != nil {
			return err
		}

		t.Result.Created++
		t.Result.Feeds = append(t.Result.Feeds, f.Title)
	}

	slog.Info("Task completed",
		"type", "ImportOPML",
		"source", t.Target,
		"duration", t.GetDuration(),
		"created", t.Result.Created,
		"skipped", t.Result.Skipped)

	return nil
}
