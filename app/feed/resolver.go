package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoFeedFound = errors.New("no RSS/Atom feed found")

var discoveryTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/xml",
	"text/xml",
}

type Resolution struct {
	FeedURL string
	Feed    *ParsedFeed
}

type Resolver struct {
	fetcher *Fetcher
}

func NewResolver(fetcher *Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve turns an arbitrary URL into a feed endpoint, following at most one
// auto-discovery link.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolution, error) {
	parsed, err := r.fetcher.FetchFeed(ctx, rawURL)
	if err == nil {
		return &Resolution{FeedURL: rawURL, Feed: parsed}, nil
	}
	slog.Debug("Direct feed fetch failed, trying discovery", "url", rawURL, "error", err)

	page, err := r.fetcher.Get(ctx, rawURL, AcceptHTML)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrNoFeedFound, rawURL, err)
	}

	if isFeedContentType(page.ContentType) {
		parsed, err := r.fetcher.normalizer.Run(page.Body)
		if err != nil {
			return nil, fmt.Errorf("%w at %s: %w", ErrNoFeedFound, rawURL, err)
		}
		return &Resolution{FeedURL: rawURL, Feed: parsed}, nil
	}

	discovered, err := discoverFeedURL(page.Body, rawURL)
	if err != nil {
		return nil, err
	}

	parsed, err = r.fetcher.FetchFeed(ctx, discovered)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: discovered feed %s failed: %w", ErrNoFeedFound, rawURL, discovered, err)
	}

	slog.Debug("Feed discovered", "url", rawURL, "feed_url", discovered)

	return &Resolution{FeedURL: discovered, Feed: parsed}, nil
}

func isFeedContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

func discoverFeedURL(page []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	selectors := make([]string, 0, len(discoveryTypes))
	for _, t := range discoveryTypes {
		selectors = append(selectors, fmt.Sprintf(`link[rel="alternate"][type="%s"]`, t))
	}

	href, ok := doc.Find(strings.Join(selectors, ", ")).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", fmt.Errorf("%w at %s: try providing the feed URL directly", ErrNoFeedFound, pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w at %s: invalid discovery link %q", ErrNoFeedFound, pageURL, href)
	}

	return base.ResolveReference(ref).String(), nil
}
