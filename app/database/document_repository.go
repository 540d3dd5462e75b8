package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const documentColumns = `id, type, status, is_favorite, is_trashed, title, COALESCE(author, ''),
	COALESCE(description, ''), COALESCE(url, ''), COALESCE(domain, ''), COALESCE(image_url, ''),
	COALESCE(language, ''), word_count, reading_time_minutes, published_at, reading_progress,
	COALESCE(content_key, ''), COALESCE(feed_id, ''), COALESCE(source, ''), created_at, updated_at`

// DocumentRepo handles the feed-facing subset of document storage
type DocumentRepo struct {
	db *DB
}

func NewDocumentRepository(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var isFavorite, isTrashed int
	var publishedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&doc.ID, &doc.Type, &doc.Status, &isFavorite, &isTrashed, &doc.Title, &doc.Author,
		&doc.Description, &doc.URL, &doc.Domain, &doc.ImageURL,
		&doc.Language, &doc.WordCount, &doc.ReadingTimeMinutes, &publishedAt, &doc.ReadingProgress,
		&doc.ContentKey, &doc.FeedID, &doc.Source, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.IsFavorite = isFavorite != 0
	doc.IsTrashed = isTrashed != 0
	doc.PublishedAt = parseNullTime(publishedAt)

	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}

	return &doc, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *DocumentRepo) FindByURLAndFeed(ctx context.Context, feedID, url string) (*Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE feed_id = ? AND url = ?
		LIMIT 1
	`, feedID, url)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document by URL: %w", err)
	}

	return doc, nil
}

func (r *DocumentRepo) CountByFeed(ctx context.Context, feedID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE feed_id = ?`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (r *DocumentRepo) InsertDocument(ctx context.Context, doc *Document) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, type, status, is_favorite, is_trashed, title, author, description,
			url, domain, image_url, language, word_count, reading_time_minutes,
			published_at, reading_progress, content_key, feed_id, source, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, url) DO NOTHING
	`, doc.ID, doc.Type, doc.Status, boolToInt(doc.IsFavorite), boolToInt(doc.IsTrashed),
		doc.Title, nullString(doc.Author), nullString(doc.Description),
		nullString(doc.URL), nullString(doc.Domain), nullString(doc.ImageURL), nullString(doc.Language),
		doc.WordCount, doc.ReadingTimeMinutes, nullTime(doc.PublishedAt), doc.ReadingProgress,
		nullString(doc.ContentKey), nullString(doc.FeedID), nullString(doc.Source),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}
