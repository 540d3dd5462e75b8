package api

import (
	"time"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
	"github.com/canopy-reader/canopy/app/storage"
	"github.com/canopy-reader/canopy/app/tasks"
)

type GeneratorInterface interface {
	Run(feeds []database.Feed, now time.Time) (string, error)
}

var _ GeneratorInterface = (*feed.OPMLGenerator)(nil)

type Handler struct {
	feedRepo  database.FeedRepository
	docRepo   database.DocumentRepository
	store     storage.ObjectStore
	resolver  tasks.FeedResolver
	poller    tasks.PollerInterface
	generator GeneratorInterface
	version   string
}

type createFeedRequest struct {
	URL    string `json:"url"`
	Folder string `json:"folder"`
}

type updateFeedRequest struct {
	Title    *string `json:"title"`
	Folder   *string `json:"folder"`
	IsActive *bool   `json:"is_active"`
}

type pollRequest struct {
	FeedID string `json:"feedId"`
}
