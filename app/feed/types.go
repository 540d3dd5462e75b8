package feed

// Canonical feed shape produced by the normalizer

const (
	UntitledItem = "Untitled"
	UntitledFeed = "Untitled Feed"
)

type ParsedFeed struct {
	Title       string
	SiteURL     string
	Description string
	Language    string
	IconURL     string
	Items       []ParsedFeedItem
}

type ParsedFeedItem struct {
	Title       string
	URL         string
	Description string
	Content     string // full body (content:encoded / atom content)
	Author      string
	Published   string // raw source timestamp, parsed at ingestion time
	GUID        string
	ImageURL    string
}

// Article is what the content extractor returns for a single page
type Article struct {
	Title     string
	Author    string
	Content   string
	Excerpt   string
	WordCount int
	ImageURL  string
	Language  string
	Domain    string
}

// Subscription seed file types

type Subscription struct {
	Name    string // Derived from filename (without .yml extension)
	URL     string `yaml:"url"`
	Folder  string `yaml:"folder"`
	Enabled *bool  `yaml:"enabled"`
}

func (s *Subscription) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
