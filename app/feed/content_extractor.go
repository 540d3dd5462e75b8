package feed

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var ErrExtractionFailed = errors.New("content extraction failed")

type ContentExtractor struct {
	fetcher *Fetcher
}

func NewContentExtractor(fetcher *Fetcher) *ContentExtractor {
	return &ContentExtractor{fetcher: fetcher}
}

// Extract downloads pageURL and returns the readable article found in it.
// Every failure is wrapped in ErrExtractionFailed.
func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) (*Article, error) {
	resp, err := e.fetcher.Get(ctx, pageURL, AcceptHTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	article, err := e.Run(resp.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return article, nil
}

func (e *ContentExtractor) Run(data []byte, pageURL string) (*Article, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	extracted, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	if strings.TrimSpace(extracted.Content) == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	article := &Article{
		Title:     strings.TrimSpace(extracted.Title),
		Author:    strings.TrimSpace(extracted.Byline),
		Content:   extracted.Content,
		Excerpt:   strings.TrimSpace(extracted.Excerpt),
		WordCount: CountWords(extracted.TextContent),
		ImageURL:  strings.TrimSpace(extracted.Image),
		Domain:    parsedURL.Hostname(),
	}

	// readability does not expose og:image precedence or the document language
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data)); err == nil {
		ogImage, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
		article.ImageURL = cmp.Or(resolveAgainst(parsedURL, strings.TrimSpace(ogImage)), article.ImageURL)

		lang, _ := doc.Find("html").First().Attr("lang")
		article.Language = canonicalLanguage(lang)
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content),
		"word_count", article.WordCount)

	return article, nil
}

func resolveAgainst(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
