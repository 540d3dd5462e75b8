package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopy-reader/canopy/app/api"
	"github.com/canopy-reader/canopy/app/cfg"
	"github.com/canopy-reader/canopy/app/tasks"
)

type ServeCommand struct{}

func (c *ServeCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApplication(ctx, func(app *application) error {
		syncSubscriptions(ctx, app)

		handler := api.NewHandler(app.feedRepo, app.docRepo, app.store, app.resolver, app.poller, app.cfg.Version)
		httpServer := &http.Server{
			Addr:         ":" + app.cfg.Port,
			Handler:      api.NewServer(handler, app.cfg.APIAccessKey),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: app.cfg.PollTimeout + 30*time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			slog.Info("Starting HTTP server", "port", app.cfg.Port, "version", app.cfg.Version)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
		case err := <-serverErr:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}

		slog.Info("Server stopped")
		return nil
	})
}

func syncSubscriptions(ctx context.Context, app *application) {
	if _, err := os.Stat(app.cfg.FeedsDir); err != nil {
		slog.Debug("No subscription directory, skipping sync", "dir", app.cfg.FeedsDir)
		return
	}

	task := tasks.NewSyncSubscriptionsTask(app.cfg.FeedsDir, app.resolver, app.feedRepo)
	_ = tasks.Run(ctx, task)
}

type PollCommand struct {
	Feed string `long:"feed" description:"Poll only the feed with this id"`
}

func (c *PollCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApplication(ctx, func(app *application) error {
		var results []tasks.PollResult

		if c.Feed != "" {
			result, err := app.poller.PollOne(ctx, c.Feed)
			if err != nil {
				return err
			}
			results = []tasks.PollResult{result}
		} else {
			all, err := app.poller.PollAll(ctx)
			if err != nil {
				return err
			}
			results = all
		}

		return printJSON(map[string]any{"results": results})
	})
}

type SubscribeCommand struct {
	Folder string `long:"folder" description:"Folder to file the feed under"`
	Args   struct {
		URL string `positional-arg-name:"URL" description:"Feed or page URL"`
	} `positional-args:"yes" required:"yes"`
}

func (c *SubscribeCommand) Execute(args []string) error {
	ctx := context.Background()

	return withApplication(ctx, func(app *application) error {
		f, err := tasks.Subscribe(ctx, app.resolver, app.feedRepo, c.Args.URL, c.Folder)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"feed": f})
	})
}

type ImportCommand struct {
	Args struct {
		File string `positional-arg-name:"FILE" description:"OPML file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ImportCommand) Execute(args []string) error {
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return fmt.Errorf("failed to read OPML file: %w", err)
	}

	ctx := context.Background()

	return withApplication(ctx, func(app *application) error {
		task := tasks.NewImportOPMLTask(c.Args.File, data, app.feedRepo)
		if err := tasks.Run(ctx, task); err != nil {
			return err
		}
		return printJSON(task.Result)
	})
}

type SyncCommand struct{}

func (c *SyncCommand) Execute(args []string) error {
	ctx := context.Background()

	return withApplication(ctx, func(app *application) error {
		task := tasks.NewSyncSubscriptionsTask(cfg.Get().FeedsDir, app.resolver, app.feedRepo)
		if err := tasks.Run(ctx, task); err != nil {
			return err
		}
		return printJSON(task.Result)
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
