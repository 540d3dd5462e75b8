package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/canopy-reader/canopy/app/database"
)

const DefaultPollTimeout = 5 * time.Minute

const (
	feedNotFound      = "Feed not found"
	unknownFeedTitle  = "Unknown"
	pollInProgressMsg = "poll already in progress"
)

// Poller runs the ingester over one feed or all active feeds.
type Poller struct {
	ingester    FeedIngester
	feedRepo    database.FeedRepository
	workerCount int
	pollTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewPoller(ingester FeedIngester, feedRepo database.FeedRepository, workerCount int, pollTimeout time.Duration) *Poller {
	if workerCount < 1 {
		workerCount = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	return &Poller{
		ingester:    ingester,
		feedRepo:    feedRepo,
		workerCount: workerCount,
		pollTimeout: pollTimeout,
		inFlight:    make(map[string]struct{}),
	}
}

// PollOne polls a single feed. An unknown id is reported in the result,
// not as an error.
func (p *Poller) PollOne(ctx context.Context, feedID string) (PollResult, error) {
	f, err := p.feedRepo.GetFeed(ctx, feedID)
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to look up feed: %w", err)
	}
	if f == nil {
		return PollResult{
			FeedID:    feedID,
			FeedTitle: unknownFeedTitle,
			Errors:    []string{feedNotFound},
		}, nil
	}

	return p.poll(ctx, f), nil
}

// PollAll polls every active feed on a bounded worker pool and returns one
// result per feed, in the order the feeds were listed.
func (p *Poller) PollAll(ctx context.Context) ([]PollResult, error) {
	feeds, err := p.feedRepo.GetActiveFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active feeds: %w", err)
	}

	results := make([]PollResult, len(feeds))
	if len(feeds) == 0 {
		return results, nil
	}

	start := time.Now()
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < min(p.workerCount, len(feeds)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				slog.Debug("Worker picked up feed", "worker_id", workerID, "feed", feeds[i].ID)
				results[i] = p.poll(ctx, &feeds[i])
			}
		}(w)
	}

	for i := range feeds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	newItems, failed := 0, 0
	for _, r := range results {
		newItems += r.NewItems
		if len(r.Errors) > 0 {
			failed++
		}
	}

	slog.Info("Poll completed",
		"feeds", len(feeds),
		"new", newItems,
		"with_errors", failed,
		"duration", time.Since(start))

	return results, nil
}

func (p *Poller) poll(ctx context.Context, f *database.Feed) PollResult {
	if err := ctx.Err(); err != nil {
		return failedResult(f, fmt.Sprintf("poll cancelled: %v", err))
	}

	if !p.acquire(f.ID) {
		slog.Warn("Feed poll skipped", "feed", f.ID, "reason", pollInProgressMsg)
		return failedResult(f, pollInProgressMsg)
	}
	defer p.release(f.ID)

	pollCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	return p.ingester.PollFeed(pollCtx, f)
}

func (p *Poller) acquire(feedID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inFlight[feedID]; busy {
		return false
	}
	p.inFlight[feedID] = struct{}{}
	return true
}

func (p *Poller) release(feedID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, feedID)
}
