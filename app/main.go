package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/canopy-reader/canopy/app/cfg"
	"github.com/canopy-reader/canopy/app/database"
	"github.com/canopy-reader/canopy/app/feed"
	"github.com/canopy-reader/canopy/app/storage"
	"github.com/canopy-reader/canopy/app/tasks"
)

var opts cfg.Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Canopy feed ingestion service"

	parser.AddCommand("serve", "Run the HTTP API", "Serve the feed management and poll API until interrupted.", &ServeCommand{})
	parser.AddCommand("poll", "Poll feeds once", "Poll one feed or every active feed and print the results as JSON.", &PollCommand{})
	parser.AddCommand("subscribe", "Subscribe to a feed", "Resolve a page or feed URL and store the feed.", &SubscribeCommand{})
	parser.AddCommand("import", "Import an OPML file", "Store every feed of an OPML file that is not yet subscribed.", &ImportCommand{})
	parser.AddCommand("sync", "Sync subscription files", "Subscribe to and reconcile the feeds declared in --feeds-dir.", &SyncCommand{})

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		c, err := opts.Build()
		if err != nil {
			return err
		}
		setupLogger(c)

		if command == nil {
			return nil
		}
		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func setupLogger(c *cfg.Cfg) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.LogFormat == cfg.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
}

// application holds the components shared by every command.
type application struct {
	cfg        *cfg.Cfg
	db         *database.DB
	store      storage.ObjectStore
	closeStore func() error
	feedRepo   *database.FeedRepo
	docRepo    *database.DocumentRepo
	resolver   *feed.Resolver
	poller     *tasks.Poller
}

func newApplication(ctx context.Context, c *cfg.Cfg) (*application, error) {
	db, err := database.Open(c.DBPath)
	if err != nil {
		return nil, err
	}

	version, _, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Database ready", "path", c.DBPath, "schema_version", version)

	app := &application{
		cfg:        c,
		db:         db,
		closeStore: func() error { return nil },
		feedRepo:   database.NewFeedRepository(db),
		docRepo:    database.NewDocumentRepository(db),
	}

	switch c.StorageBackend {
	case cfg.StorageRedis:
		rs, err := storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		app.store = rs
		app.closeStore = rs.Close
	default:
		fs, err := storage.NewFSStore(c.StorageDir)
		if err != nil {
			db.Close()
			return nil, err
		}
		app.store = fs
	}

	// Deadlines come from the per-request context, not the client.
	fetcher := feed.NewFetcher(&http.Client{}, c.UserAgent, c.FetchTimeout)
	deriver := feed.NewContentDeriver(feed.NewContentExtractor(fetcher))
	ingester := tasks.NewIngester(fetcher, deriver, app.store, app.feedRepo, app.docRepo)

	app.resolver = feed.NewResolver(fetcher)
	app.poller = tasks.NewPoller(ingester, app.feedRepo, c.WorkerCount, c.PollTimeout)

	return app, nil
}

func (a *application) Close() {
	if err := a.closeStore(); err != nil {
		slog.Warn("Failed to close object store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// withApplication builds the application for the duration of one command.
func withApplication(ctx context.Context, fn func(app *application) error) error {
	app, err := newApplication(ctx, cfg.Get())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	return fn(app)
}
