package database

import (
	"time"
)

const (
	DocumentTypeFeedItem = "rss_item"
	DocumentSourceFeed   = "feed"

	StatusInbox   = "inbox"
	StatusArchive = "archive"
)

type Feed struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	URL                   string     `json:"url"` // canonical feed URL, unique
	SiteURL               string     `json:"site_url,omitempty"`
	Description           string     `json:"description,omitempty"`
	IconURL               string     `json:"icon_url,omitempty"`
	Folder                string     `json:"folder,omitempty"`
	LastFetchedAt         *time.Time `json:"last_fetched_at"`          // every attempt
	LastSuccessfulFetchAt *time.Time `json:"last_successful_fetch_at"` // successful parses only
	FetchError            string     `json:"fetch_error,omitempty"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
}

type FeedWithCount struct {
	Feed
	ItemCount int `json:"item_count"`
}

// FeedUpdate is a partial update; nil fields are left untouched.
type FeedUpdate struct {
	Title    *string
	Folder   *string // "" clears the folder
	IsActive *bool
}

type Document struct {
	ID                 string     `json:"id"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	IsFavorite         bool       `json:"is_favorite"`
	IsTrashed          bool       `json:"is_trashed"`
	Title              string     `json:"title"`
	Author             string     `json:"author,omitempty"`
	Description        string     `json:"description,omitempty"`
	URL                string     `json:"url"`
	Domain             string     `json:"domain,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	Language           string     `json:"language,omitempty"`
	WordCount          int        `json:"word_count"`
	ReadingTimeMinutes int        `json:"reading_time_minutes"`
	PublishedAt        *time.Time `json:"published_at"`
	ReadingProgress    float64    `json:"reading_progress"`
	ContentKey         string     `json:"content_key,omitempty"`
	FeedID             string     `json:"feed_id,omitempty"` // empty once the feed is deleted
	Source             string     `json:"source"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
