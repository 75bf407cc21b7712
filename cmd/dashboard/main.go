package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/filecache"
	httpadapter "github.com/couchcryptid/covid-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/covid-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/ws"
	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
	"github.com/couchcryptid/covid-dashboard/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	loader := csvsource.NewLoader(csvsource.OptionsFromConfig(cfg), logger, metrics)
	cache := filecache.New(loader, logger, metrics)
	p := pipeline.New(cache, logger, metrics, cfg.HeatmapTopN, cfg.MostAffectedN)

	hub := ws.New(cache.Version, logger, metrics)
	cache.Subscribe(hub.Notify)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go hub.Run(ctx)

	// Warm the cache so the first page load does not pay for parsing.
	if _, err := cache.Snapshot(ctx); err != nil {
		logger.Error("initial snapshot load failed", "error", err)
	}

	if cfg.WatchEnabled {
		go func() {
			if err := cache.Watch(ctx, loader.Paths()); err != nil {
				logger.Error("file watcher error", "error", err)
			}
		}()
	} else {
		logger.Info("file watching disabled")
	}

	// Start scraper (feature-flagged via SCRAPE_ENABLED).
	var notifier *kafkaadapter.Notifier
	if cfg.ScrapeEnabled {
		var n scraper.Notifier
		if cfg.NotifierEnabled() {
			notifier = kafkaadapter.NewNotifier(cfg, logger, metrics)
			n = notifier
			logger.Info("kafka refresh notifications enabled", "topic", cfg.KafkaTopic)
		}
		s := scraper.New(scraper.OptionsFromConfig(cfg), n, logger, metrics)
		go func() {
			if err := s.Run(ctx); err != nil {
				logger.Error("scraper error", "error", err)
			}
		}()
	} else {
		logger.Info("scraper disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
