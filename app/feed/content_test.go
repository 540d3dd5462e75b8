package feed

import (
	"context"
	"errors"
	"testing"
)

type mockExtractor struct {
	article *Article
	err     error
	calls   []string
}

func (m *mockExtractor) Extract(ctx context.Context, pageURL string) (*Article, error) {
	m.calls = append(m.calls, pageURL)
	return m.article, m.err
}

func TestDeriveUsesExtractedArticle(t *testing.T) {
	extractor := &mockExtractor{article: &Article{
		Content:   "<p>extracted</p>",
		Excerpt:   "extracted excerpt",
		WordCount: 500,
		Author:    "Extracted Author",
		Language:  "de",
	}}

	item := ParsedFeedItem{
		URL:      "https://example.com/post",
		Content:  "<p>feed body</p>",
		Author:   "Feed Author",
		ImageURL: "https://example.com/feed.png",
	}

	derived := NewContentDeriver(extractor).Derive(context.Background(), item)

	if !derived.Extracted {
		t.Error("Expected extracted content")
	}
	if derived.Body != "<p>extracted</p>" {
		t.Errorf("Expected extracted body, got '%s'", derived.Body)
	}
	if derived.WordCount != 500 || derived.ReadingTimeMinutes != 3 {
		t.Errorf("Expected 500 words / 3 minutes, got %d / %d", derived.WordCount, derived.ReadingTimeMinutes)
	}
	if derived.Author != "Extracted Author" {
		t.Errorf("Expected extractor author to win, got '%s'", derived.Author)
	}
	if derived.ImageURL != "https://example.com/feed.png" {
		t.Errorf("Expected feed image when extractor has none, got '%s'", derived.ImageURL)
	}
	if len(extractor.calls) != 1 || extractor.calls[0] != item.URL {
		t.Errorf("Expected one extraction of the item URL, got %v", extractor.calls)
	}
}

func TestDeriveFallbackChain(t *testing.T) {
	failing := &mockExtractor{err: errors.New("connection refused")}

	tests := []struct {
		name      string
		item      ParsedFeedItem
		wantBody  string
		wantWords int
	}{
		{
			name:      "feed content",
			item:      ParsedFeedItem{Content: "<p>one two three</p>", Description: "summary only"},
			wantBody:  "<p>one two three</p>",
			wantWords: 3,
		},
		{
			name:      "description",
			item:      ParsedFeedItem{Description: "<b>just</b> a   summary"},
			wantBody:  "<b>just</b> a   summary",
			wantWords: 3,
		},
		{
			name:      "adjacent tags are not separated",
			item:      ParsedFeedItem{Content: "<p>one</p><p>two</p>"},
			wantBody:  "<p>one</p><p>two</p>",
			wantWords: 1,
		},
		{
			name:      "empty",
			item:      ParsedFeedItem{},
			wantBody:  "",
			wantWords: 0,
		},
	}

	deriver := NewContentDeriver(failing)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.item.URL = "https://example.com/post"
			tt.item.Author = "Feed Author"

			derived := deriver.Derive(context.Background(), tt.item)

			if derived.Extracted {
				t.Error("Expected fallback content")
			}
			if derived.Body != tt.wantBody {
				t.Errorf("Expected body '%s', got '%s'", tt.wantBody, derived.Body)
			}
			if derived.WordCount != tt.wantWords {
				t.Errorf("Expected %d words, got %d", tt.wantWords, derived.WordCount)
			}
			if derived.Author != "Feed Author" {
				t.Errorf("Expected feed author, got '%s'", derived.Author)
			}
		})
	}
}

func TestReadingTime(t *testing.T) {
	tests := map[int]int{
		0:   0,
		1:   1,
		238: 1,
		239: 2,
		476: 2,
		477: 3,
	}

	for words, want := range tests {
		if got := ReadingTime(words); got != want {
			t.Errorf("ReadingTime(%d): expected %d, got %d", words, want, got)
		}
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<div class="x">Hello <a href="/">world</a></div>`)
	if got != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", got)
	}
	if CountWords("  \n\t ") != 0 {
		t.Error("Expected whitespace-only text to count zero words")
	}
}
