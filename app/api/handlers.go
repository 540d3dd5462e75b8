package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
	"github.com/canopy-reader/canopy/app/storage"
	"github.com/canopy-reader/canopy/app/tasks"
)

const maxImportSize = 10 << 20

func NewHandler(feedRepo database.FeedRepository, docRepo database.DocumentRepository,
	store storage.ObjectStore, resolver tasks.FeedResolver, poller tasks.PollerInterface,
	version string) *Handler {
	return &Handler{
		feedRepo:  feedRepo,
		docRepo:   docRepo,
		store:     store,
		resolver:  resolver,
		poller:    poller,
		generator: feed.NewOPMLGenerator(),
		version:   version,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds(c.Request.Context(), c.Query("folder"))
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feeds": feeds})
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	ctx := c.Request.Context()
	f, err := tasks.Subscribe(ctx, h.resolver, h.feedRepo, req.URL, req.Folder)
	if err != nil {
		status := subscribeErrorStatus(err)
		resp := gin.H{"error": err.Error()}

		if status == http.StatusConflict {
			resp["error"] = "Already subscribed to this feed"
			if f != nil {
				resp["feed"] = f
			}
		} else if status == http.StatusInternalServerError {
			slog.Error("Subscribe failed", "url", req.URL, "error", err)
		}

		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"feed": f})
}

func subscribeErrorStatus(err error) int {
	var fetchErr *feed.FetchError

	switch {
	case errors.Is(err, tasks.ErrAlreadySubscribed):
		return http.StatusConflict
	case errors.Is(err, feed.ErrNoFeedFound),
		errors.Is(err, feed.ErrUnrecognizedFormat),
		errors.As(err, &fetchErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.feedRepo.ListFolders(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_folders", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h *Handler) ImportOPML(c *gin.Context) {
	var data []byte
	var err error

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, fileErr := c.FormFile("file")
		if fileErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}

		f, openErr := file.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": openErr.Error()})
			return
		}
		defer f.Close()

		data, err = io.ReadAll(io.LimitReader(f, maxImportSize))
	} else {
		data, err = io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := tasks.NewImportOPMLTask("api", data, h.feedRepo)
	if err := tasks.Run(c.Request.Context(), task); err != nil {
		if errors.Is(err, feed.ErrInvalidOPML) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("OPML import failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, task.Result)
}

func (h *Handler) ExportOPML(c *gin.Context) {
	feeds, err := h.feedRepo.GetAllFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_all_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	opml, err := h.generator.Run(feeds, time.Now())
	if err != nil {
		slog.Error("OPML generation error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="canopy-feeds.opml"`)
	c.Data(http.StatusOK, "text/x-opml; charset=utf-8", []byte(opml))
}

func (h *Handler) PollFeeds(c *gin.Context) {
	var req pollRequest
	// An empty body polls every active feed.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	ctx := c.Request.Context()

	if req.FeedID != "" {
		result, err := h.poller.PollOne(ctx, req.FeedID)
		if err != nil {
			slog.Error("Poll failed", "feed", req.FeedID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []tasks.PollResult{result}})
		return
	}

	results, err := h.poller.PollAll(ctx)
	if err != nil {
		slog.Error("Poll failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// loadFeed writes a 404 or 500 response and returns nil when the feed is unavailable.
func (h *Handler) loadFeed(c *gin.Context) *database.Feed {
	id := c.Param("id")

	f, err := h.feedRepo.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return nil
	}

	return f
}

func (h *Handler) GetFeed(c *gin.Context) {
	f := h.loadFeed(c)
	if f == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"feed": f})
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	if h.loadFeed(c) == nil {
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
		return
	}

	id := c.Param("id")
	updated, err := h.feedRepo.UpdateFeed(c.Request.Context(), id, database.FeedUpdate{
		Title:    req.Title,
		Folder:   req.Folder,
		IsActive: req.IsActive,
	})
	if err != nil {
		slog.Error("Database error", "operation", "update_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feed": updated})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.feedRepo.DeleteFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) MarkFeedRead(c *gin.Context) {
	f := h.loadFeed(c)
	if f == nil {
		return
	}

	updated, err := h.feedRepo.MarkFeedItemsRead(c.Request.Context(), f.ID, time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "mark_feed_read", "feed", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (h *Handler) loadDocument(c *gin.Context) *database.Document {
	id := c.Param("id")

	doc, err := h.docRepo.GetDocument(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_document", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return nil
	}

	return doc
}

func (h *Handler) GetDocument(c *gin.Context) {
	doc := h.loadDocument(c)
	if doc == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (h *Handler) GetDocumentContent(c *gin.Context) {
	doc := h.loadDocument(c)
	if doc == nil {
		return
	}

	if doc.ContentKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No content available"})
		return
	}

	content, ok, err := h.store.Get(c.Request.Context(), doc.ContentKey)
	if err != nil {
		slog.Error("Object store error", "document", doc.ID, "key", doc.ContentKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Content not found in storage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": content})
}
