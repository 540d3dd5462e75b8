package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%t)", version, dirty)
	}

	return db
}

func testFeed(id, title, url, folder string) *Feed {
	return &Feed{
		ID:        id,
		Title:     title,
		URL:       url,
		Folder:    folder,
		IsActive:  true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testDocument(id, feedID, url string) *Document {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	return &Document{
		ID:        id,
		Type:      DocumentTypeFeedItem,
		Status:    StatusInbox,
		Title:     "Doc " + id,
		URL:       url,
		FeedID:    feedID,
		Source:    DocumentSourceFeed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := setupTestDB(t)

	version, _, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second run to be a no-op, got: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestFeedRepositoryInsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(setupTestDB(t))

	feed := testFeed("feed-1", "Go Blog", "https://go.dev/blog/feed.atom", "Tech")
	feed.SiteURL = "https://go.dev/blog"
	if err := repo.InsertFeed(ctx, feed); err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}

	got, err := repo.GetFeed(ctx, "feed-1")
	if err != nil {
		t.Fatalf("Failed to get feed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected feed, got nil")
	}
	if got.Title != "Go Blog" || got.SiteURL != "https://go.dev/blog" || got.Folder != "Tech" {
		t.Errorf("Unexpected feed: %+v", got)
	}
	if !got.IsActive {
		t.Error("Expected feed to be active")
	}
	if got.LastFetchedAt != nil || got.LastSuccessfulFetchAt != nil {
		t.Error("Expected fetch timestamps to be unset")
	}
	if !got.CreatedAt.Equal(feed.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", feed.CreatedAt, got.CreatedAt)
	}

	byURL, err := repo.GetFeedByURL(ctx, "https://go.dev/blog/feed.atom")
	if err != nil || byURL == nil || byURL.ID != "feed-1" {
		t.Errorf("Expected lookup by URL to find feed-1, got %+v (err=%v)", byURL, err)
	}

	missing, err := repo.GetFeed(ctx, "nope")
	if err != nil {
		t.Fatalf("Expected no error for missing feed, got: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing feed, got %+v", missing)
	}

	if err := repo.InsertFeed(ctx, testFeed("feed-2", "Dup", "https://go.dev/blog/feed.atom", "")); !errors.Is(err, ErrDuplicateFeed) {
		t.Errorf("Expected ErrDuplicateFeed for duplicate feed URL, got: %v", err)
	}
}

func TestGetActiveFeedsOrdersByCreationTime(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	// inserted out of order; the whole second must sort before its half
	for _, f := range []*Feed{
		{ID: "c", Title: "C", URL: "https://c.example/rss", IsActive: true, CreatedAt: base.Add(1500 * time.Millisecond)},
		{ID: "b", Title: "B", URL: "https://b.example/rss", IsActive: true, CreatedAt: base.Add(500 * time.Millisecond)},
		{ID: "a", Title: "A", URL: "https://a.example/rss", IsActive: true, CreatedAt: base},
	} {
		if err := repo.InsertFeed(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	feeds, err := repo.GetActiveFeeds(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var ids []string
	for _, f := range feeds {
		ids = append(ids, f.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("Expected order a,b,c, got %v", ids)
	}
	if !feeds[0].CreatedAt.Equal(base) {
		t.Errorf("Expected created_at %v to round-trip, got %v", base, feeds[0].CreatedAt)
	}
}

func TestFeedRepositoryFetchStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(setupTestDB(t))

	if err := repo.InsertFeed(ctx, testFeed("feed-1", "Feed", "https://example.com/rss", "")); err != nil {
		t.Fatal(err)
	}

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.MarkFetchSucceeded(ctx, "feed-1", first); err != nil {
		t.Fatal(err)
	}

	second := first.Add(time.Hour)
	if err := repo.MarkFetchFailed(ctx, "feed-1", "HTTP 500", second); err != nil {
		t.Fatal(err)
	}

	feed, _ := repo.GetFeed(ctx, "feed-1")
	if feed.FetchError != "HTTP 500" {
		t.Errorf("Expected fetch error 'HTTP 500', got '%s'", feed.FetchError)
	}
	if !feed.LastFetchedAt.Equal(second) {
		t.Errorf("Expected last_fetched_at %v, got %v", second, feed.LastFetchedAt)
	}
	if !feed.LastSuccessfulFetchAt.Equal(first) {
		t.Errorf("Expected last_successful_fetch_at to stay %v, got %v", first, feed.LastSuccessfulFetchAt)
	}

	third := second.Add(time.Hour)
	if err := repo.MarkFetchSucceeded(ctx, "feed-1", third); err != nil {
		t.Fatal(err)
	}

	feed, _ = repo.GetFeed(ctx, "feed-1")
	if feed.FetchError != "" {
		t.Errorf("Expected fetch error to be cleared, got '%s'", feed.FetchError)
	}
	if !feed.LastSuccessfulFetchAt.Equal(third) {
		t.Errorf("Expected last_successful_fetch_at %v, got %v", third, feed.LastSuccessfulFetchAt)
	}
}

func TestFeedRepositoryListAndFolders(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	docs := NewDocumentRepository(db)

	for _, f := range []*Feed{
		testFeed("a", "zeta", "https://z.example/rss", "News"),
		testFeed("b", "Alpha", "https://a.example/rss", "Tech"),
		testFeed("c", "beta", "https://b.example/rss", ""),
	} {
		if err := feeds.InsertFeed(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	for _, d := range []*Document{
		testDocument("d1", "b", "https://a.example/1"),
		testDocument("d2", "b", "https://a.example/2"),
		testDocument("d3", "a", "https://z.example/1"),
	} {
		if _, err := docs.InsertDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	list, err := feeds.ListFeeds(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 feeds, got %d", len(list))
	}
	if list[0].Title != "Alpha" || list[1].Title != "beta" || list[2].Title != "zeta" {
		t.Errorf("Expected case-insensitive title order, got %s, %s, %s", list[0].Title, list[1].Title, list[2].Title)
	}
	if list[0].ItemCount != 2 || list[1].ItemCount != 0 || list[2].ItemCount != 1 {
		t.Errorf("Unexpected item counts: %d, %d, %d", list[0].ItemCount, list[1].ItemCount, list[2].ItemCount)
	}

	tech, err := feeds.ListFeeds(ctx, "Tech")
	if err != nil {
		t.Fatal(err)
	}
	if len(tech) != 1 || tech[0].ID != "b" {
		t.Errorf("Expected only feed b in Tech, got %+v", tech)
	}

	folders, err := feeds.ListFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 2 || folders[0] != "News" || folders[1] != "Tech" {
		t.Errorf("Expected [News Tech], got %v", folders)
	}

	active, err := feeds.GetActiveFeeds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Errorf("Expected 3 active feeds, got %d", len(active))
	}
}

func TestFeedRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(setupTestDB(t))

	if err := repo.InsertFeed(ctx, testFeed("feed-1", "Old", "https://example.com/rss", "Tech")); err != nil {
		t.Fatal(err)
	}

	title := "New Title"
	inactive := false
	updated, err := repo.UpdateFeed(ctx, "feed-1", FeedUpdate{Title: &title, IsActive: &inactive})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "New Title" || updated.IsActive || updated.Folder != "Tech" {
		t.Errorf("Unexpected updated feed: %+v", updated)
	}

	noFolder := ""
	updated, err = repo.UpdateFeed(ctx, "feed-1", FeedUpdate{Folder: &noFolder})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Folder != "" {
		t.Errorf("Expected folder to be cleared, got '%s'", updated.Folder)
	}

	active, err := repo.GetActiveFeeds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("Expected paused feed to be excluded, got %d active", len(active))
	}

	missing, err := repo.UpdateFeed(ctx, "nope", FeedUpdate{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing feed, got %+v", missing)
	}
}

func TestFeedRepositoryDeleteDetachesDocuments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	docs := NewDocumentRepository(db)

	if err := feeds.InsertFeed(ctx, testFeed("feed-1", "Feed", "https://example.com/rss", "")); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.InsertDocument(ctx, testDocument("doc-1", "feed-1", "https://example.com/1")); err != nil {
		t.Fatal(err)
	}

	deleted, err := feeds.DeleteFeed(ctx, "feed-1")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("Expected feed to be deleted")
	}

	doc, err := docs.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("Expected document to survive feed deletion")
	}
	if doc.FeedID != "" {
		t.Errorf("Expected document to be detached, got feed_id '%s'", doc.FeedID)
	}

	deleted, err = feeds.DeleteFeed(ctx, "feed-1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("Expected second delete to report missing feed")
	}
}

func TestFeedRepositoryMarkItemsRead(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	docs := NewDocumentRepository(db)

	if err := feeds.InsertFeed(ctx, testFeed("feed-1", "Feed", "https://example.com/rss", "")); err != nil {
		t.Fatal(err)
	}

	trashed := testDocument("doc-3", "feed-1", "https://example.com/3")
	trashed.IsTrashed = true
	for _, d := range []*Document{
		testDocument("doc-1", "feed-1", "https://example.com/1"),
		testDocument("doc-2", "feed-1", "https://example.com/2"),
		trashed,
	} {
		if _, err := docs.InsertDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	updated, err := feeds.MarkFeedItemsRead(ctx, "feed-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 {
		t.Errorf("Expected 2 documents archived, got %d", updated)
	}

	doc, _ := docs.GetDocument(ctx, "doc-1")
	if doc.Status != StatusArchive {
		t.Errorf("Expected status archive, got %s", doc.Status)
	}
	doc, _ = docs.GetDocument(ctx, "doc-3")
	if doc.Status != StatusInbox {
		t.Errorf("Expected trashed document to stay in inbox, got %s", doc.Status)
	}
}

func TestDocumentRepositoryInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	docs := NewDocumentRepository(db)

	if err := feeds.InsertFeed(ctx, testFeed("feed-1", "Feed", "https://example.com/rss", "")); err != nil {
		t.Fatal(err)
	}

	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	first := testDocument("doc-1", "feed-1", "https://example.com/post")
	first.PublishedAt = &published
	first.WordCount = 42
	first.ContentKey = "articles/doc-1/content.html"

	inserted, err := docs.InsertDocument(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("Expected first insert to succeed")
	}

	inserted, err = docs.InsertDocument(ctx, testDocument("doc-2", "feed-1", "https://example.com/post"))
	if err != nil {
		t.Fatalf("Expected conflict to be reported without error, got: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate (feed_id, url) to be skipped")
	}

	count, err := docs.CountByFeed(ctx, "feed-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 document, got %d", count)
	}

	found, err := docs.FindByURLAndFeed(ctx, "feed-1", "https://example.com/post")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != "doc-1" {
		t.Fatalf("Expected doc-1, got %+v", found)
	}
	if found.PublishedAt == nil || !found.PublishedAt.Equal(published) {
		t.Errorf("Expected published_at %v, got %v", published, found.PublishedAt)
	}
	if found.WordCount != 42 || found.ContentKey != "articles/doc-1/content.html" {
		t.Errorf("Unexpected document fields: %+v", found)
	}

	absent, err := docs.FindByURLAndFeed(ctx, "feed-1", "https://example.com/other")
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Errorf("Expected nil for unknown URL, got %+v", absent)
	}
}
