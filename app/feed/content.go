package feed

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"
)

const ReadingWPM = 238

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*Article, error)
}

// DerivedContent is the body and metadata chosen for a new document.
type DerivedContent struct {
	Body               string
	Excerpt            string
	WordCount          int
	ReadingTimeMinutes int
	Author             string
	ImageURL           string
	Language           string
	Extracted          bool
}

type ContentDeriver struct {
	extractor Extractor
}

func NewContentDeriver(extractor Extractor) *ContentDeriver {
	return &ContentDeriver{extractor: extractor}
}

// Derive prefers the extracted article and falls back to the item's own
// content, then its description, then an empty body. It never fails.
func (d *ContentDeriver) Derive(ctx context.Context, item ParsedFeedItem) DerivedContent {
	if d.extractor != nil {
		article, err := d.extractor.Extract(ctx, item.URL)
		if err == nil && article != nil {
			return DerivedContent{
				Body:               article.Content,
				Excerpt:            article.Excerpt,
				WordCount:          article.WordCount,
				ReadingTimeMinutes: ReadingTime(article.WordCount),
				Author:             cmp.Or(article.Author, item.Author),
				ImageURL:           cmp.Or(article.ImageURL, item.ImageURL),
				Language:           article.Language,
				Extracted:          true,
			}
		}
		slog.Debug("Extraction failed, using feed content", "url", item.URL, "error", err)
	}

	body := cmp.Or(item.Content, item.Description)
	words := CountWords(StripTags(body))

	return DerivedContent{
		Body:               body,
		WordCount:          words,
		ReadingTimeMinutes: ReadingTime(words),
		Author:             item.Author,
		ImageURL:           item.ImageURL,
	}
}

// StripTags removes anything between angle brackets. Script and style
// bodies are kept as text, and adjacent block elements are not separated.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

func ReadingTime(words int) int {
	return int(math.Ceil(float64(words) / ReadingWPM))
}
