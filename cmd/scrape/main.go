// Command scrape checks the upstream repository once and downloads the data
// files if a newer commit is available. It exits 0 whether or not anything
// changed, and 1 if the download failed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/covid-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/scraper"
)

func main() {
	force := flag.Bool("force", false, "download even if the recorded commit is current")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if code := run(cfg, *force); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, force bool) int {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var n scraper.Notifier
	if cfg.NotifierEnabled() {
		notifier := kafkaadapter.NewNotifier(cfg, logger, metrics)
		defer notifier.Close()
		n = notifier
	}
	s := scraper.New(scraper.OptionsFromConfig(cfg), n, logger, metrics)

	if force {
		if err := s.ForceRefresh(ctx); err != nil {
			logger.Error("forced refresh failed", "error", err)
			return 1
		}
		return 0
	}

	updated, err := s.Refresh(ctx)
	if err != nil {
		logger.Error("refresh failed", "error", err)
		return 1
	}
	if !updated {
		logger.Info("data is up to date")
	}
	return 0
}
