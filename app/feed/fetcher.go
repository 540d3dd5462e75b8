package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	AcceptFeed = "application/rss+xml, application/atom+xml, application/xml, text/xml"
	AcceptHTML = "text/html"

	maxBodySize = 10 << 20
)

// FetchError reports a network failure or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Response struct {
	URL         string
	ContentType string
	Body        []byte
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	normalizer *Normalizer
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		normalizer: NewNormalizer(),
	}
}

// Get performs a single GET bounded by the fetcher timeout.
func (f *Fetcher) Get(ctx context.Context, url string, accept string) (*Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &Response{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// FetchFeed downloads url with feed Accept headers and normalizes the body.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) (*ParsedFeed, error) {
	resp, err := f.Get(ctx, url, AcceptFeed)
	if err != nil {
		return nil, err
	}

	parsed, err := f.normalizer.Run(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}

	return parsed, nil
}
