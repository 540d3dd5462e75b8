package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const feedColumns = `f.id, f.title, f.url, COALESCE(f.site_url, ''), COALESCE(f.description, ''),
	COALESCE(f.icon_url, ''), COALESCE(f.folder, ''), f.last_fetched_at, f.last_successful_fetch_at,
	COALESCE(f.fetch_error, ''), f.is_active, f.created_at`

// ErrDuplicateFeed is returned by InsertFeed when a feed with the same URL exists.
var ErrDuplicateFeed = errors.New("feed already exists")

// FeedRepo handles database operations for feeds
type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner, extra ...any) (*Feed, error) {
	var feed Feed
	var lastFetched, lastSuccess sql.NullString
	var isActive int
	var createdAt string

	dest := []any{
		&feed.ID, &feed.Title, &feed.URL, &feed.SiteURL, &feed.Description,
		&feed.IconURL, &feed.Folder, &lastFetched, &lastSuccess,
		&feed.FetchError, &isActive, &createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	feed.LastFetchedAt = parseNullTime(lastFetched)
	feed.LastSuccessfulFetchAt = parseNullTime(lastSuccess)
	feed.IsActive = isActive != 0

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	feed.CreatedAt = created

	return &feed, nil
}

func (r *FeedRepo) getOne(ctx context.Context, where string, arg any) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds f WHERE `+where, arg)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (r *FeedRepo) GetFeed(ctx context.Context, id string) (*Feed, error) {
	feed, err := r.getOne(ctx, "f.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	feed, err := r.getOne(ctx, "f.url = ?", url)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) GetActiveFeeds(ctx context.Context) ([]Feed, error) {
	feeds, err := r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds f WHERE f.is_active = 1 ORDER BY f.created_at, f.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active feeds: %w", err)
	}
	return feeds, nil
}

func (r *FeedRepo) GetAllFeeds(ctx context.Context) ([]Feed, error) {
	feeds, err := r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds f ORDER BY f.title COLLATE NOCASE, f.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	return feeds, nil
}

func (r *FeedRepo) queryFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := []Feed{}
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// ListFeeds returns feeds with their document counts, optionally limited to one folder.
func (r *FeedRepo) ListFeeds(ctx context.Context, folder string) ([]FeedWithCount, error) {
	query := `SELECT ` + feedColumns + `, COUNT(d.id)
		FROM feeds f
		LEFT JOIN documents d ON d.feed_id = f.id`
	var args []any
	if folder != "" {
		query += ` WHERE f.folder = ?`
		args = append(args, folder)
	}
	query += ` GROUP BY f.id ORDER BY f.title COLLATE NOCASE, f.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	feeds := []FeedWithCount{}
	for rows.Next() {
		var count int
		feed, err := scanFeed(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, FeedWithCount{Feed: *feed, ItemCount: count})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepo) ListFolders(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT folder FROM feeds
		WHERE folder IS NOT NULL AND folder != ''
		ORDER BY folder COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := []string{}
	for rows.Next() {
		var folder string
		if err := rows.Scan(&folder); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

func (r *FeedRepo) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepo) InsertFeed(ctx context.Context, feed *Feed) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (
			id, title, url, site_url, description, icon_url, folder,
			last_fetched_at, last_successful_fetch_at, fetch_error, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feed.ID, feed.Title, feed.URL, nullString(feed.SiteURL), nullString(feed.Description),
		nullString(feed.IconURL), nullString(feed.Folder), nullTime(feed.LastFetchedAt),
		nullTime(feed.LastSuccessfulFetchAt), nullString(feed.FetchError),
		boolToInt(feed.IsActive), formatTime(feed.CreatedAt))

	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateFeed, feed.URL)
	}
	if err != nil {
		return fmt.Errorf("failed to insert feed: %w", err)
	}

	return nil
}

// UpdateFeed applies a partial update and returns the updated row, or nil if
// the feed does not exist.
func (r *FeedRepo) UpdateFeed(ctx context.Context, id string, update FeedUpdate) (*Feed, error) {
	var sets []string
	var args []any

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*update.Title))
	}
	if update.Folder != nil {
		sets = append(sets, "folder = ?")
		args = append(args, nullString(strings.TrimSpace(*update.Folder)))
	}
	if update.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*update.IsActive))
	}

	if len(sets) > 0 {
		args = append(args, id)
		_, err := r.db.ExecContext(ctx, `UPDATE feeds SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update feed: %w", err)
		}
	}

	return r.GetFeed(ctx, id)
}

// DeleteFeed detaches the feed's documents and removes the feed. It reports
// false if no such feed exists.
func (r *FeedRepo) DeleteFeed(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE documents SET feed_id = NULL WHERE feed_id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to detach documents: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit feed deletion: %w", err)
	}

	return affected > 0, nil
}

func (r *FeedRepo) MarkFetchSucceeded(ctx context.Context, id string, at time.Time) error {
	ts := formatTime(at)
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_fetched_at = ?, last_successful_fetch_at = ?, fetch_error = NULL
		WHERE id = ?
	`, ts, ts, id)

	if err != nil {
		return fmt.Errorf("failed to record successful fetch: %w", err)
	}

	return nil
}

func (r *FeedRepo) MarkFetchFailed(ctx context.Context, id string, message string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_fetched_at = ?, fetch_error = ?
		WHERE id = ?
	`, formatTime(at), message, id)

	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}

	return nil
}

// MarkFeedItemsRead archives the feed's untrashed inbox documents.
func (r *FeedRepo) MarkFeedItemsRead(ctx context.Context, id string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, updated_at = ?
		WHERE feed_id = ? AND status = ? AND is_trashed = 0
	`, StatusArchive, formatTime(at), id, StatusInbox)
	if err != nil {
		return 0, fmt.Errorf("failed to mark feed items read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}
