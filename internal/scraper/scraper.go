// Package scraper keeps the local CSV files in step with the upstream
// repository. It compares the head commit of the data branch with the commit
// recorded on disk and downloads the files when they differ.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// CommitFile records the commit of the files currently on disk.
const CommitFile = "last_commit.txt"

const shortSHALen = 7

// Notifier is told about every successful download.
type Notifier interface {
	NotifyRefresh(ctx context.Context, event domain.RefreshEvent) error
}

// NopNotifier discards refresh events.
type NopNotifier struct{}

func (NopNotifier) NotifyRefresh(context.Context, domain.RefreshEvent) error { return nil }

// Options configures a Scraper. Zero Clock and Client use the real clock and
// a client with Timeout.
type Options struct {
	RefURL   string
	BaseURL  string
	Files    []string
	DataDir  string
	Interval time.Duration
	Timeout  time.Duration
	Rate     float64

	Clock  clockwork.Clock
	Client *http.Client
}

// OptionsFromConfig maps the SCRAPE_* settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RefURL:   cfg.ScrapeRefURL,
		BaseURL:  cfg.ScrapeBaseURL,
		Files:    cfg.ScrapeFiles,
		DataDir:  cfg.DataDir,
		Interval: cfg.ScrapeInterval,
		Timeout:  cfg.ScrapeTimeout,
		Rate:     cfg.ScrapeRate,
	}
}

// Scraper checks for and downloads new data files.
type Scraper struct {
	opts     Options
	client   *http.Client
	clock    clockwork.Clock
	limiter  *rate.Limiter
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Scraper. A nil notifier disables notifications.
func New(opts Options, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics) *Scraper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Scraper{
		opts:     opts,
		client:   client,
		clock:    clk,
		limiter:  rate.NewLimiter(limit, 1),
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run refreshes immediately and then once per interval until ctx is
// cancelled. A failed refresh is retried with backoff a few times before
// waiting for the next tick.
func (s *Scraper) Run(ctx context.Context) error {
	s.logger.Info("scraper started", "interval", s.opts.Interval, "files", s.opts.Files)
	ticker := s.clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		s.refreshWithRetry(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scraper stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (s *Scraper) refreshWithRetry(ctx context.Context) {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		_, err := s.Refresh(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		if attempt == maxAttempts {
			s.logger.Error("refresh failed, waiting for next interval", "attempts", attempt, "error", err)
			return
		}
		s.logger.Warn("refresh failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, s.clock, backoff) {
			return
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// Refresh runs one check-and-download cycle. It reports whether new files
// were written.
func (s *Scraper) Refresh(ctx context.Context) (bool, error) {
	commit, changed := s.CheckForUpdates(ctx)
	if !changed {
		return false, nil
	}
	if err := s.downloadAndNotify(ctx, commit); err != nil {
		return false, err
	}
	return true, nil
}

// ForceRefresh downloads the files at the upstream head commit even when it
// matches the recorded one, then notifies like Refresh.
func (s *Scraper) ForceRefresh(ctx context.Context) error {
	commit, err := s.latestCommit(ctx)
	if err != nil {
		s.metrics.ScrapeChecks.WithLabelValues("error").Inc()
		return fmt.Errorf("get most recent commit: %w", err)
	}
	s.metrics.ScrapeChecks.WithLabelValues("forced").Inc()
	return s.downloadAndNotify(ctx, commit)
}

func (s *Scraper) downloadAndNotify(ctx context.Context, commit string) error {
	if err := s.Download(ctx, commit); err != nil {
		return err
	}
	event := domain.NewRefreshEvent(commit, s.opts.Files)
	if err := s.notifier.NotifyRefresh(ctx, event); err != nil {
		// Files are already on disk; a missed notification is not a failed refresh.
		s.logger.Warn("refresh notification failed", "commit", commit, "error", err)
	}
	return nil
}

// CheckForUpdates fetches the upstream head commit and compares its short SHA
// with the recorded one. A failed lookup is logged and reported as no update.
func (s *Scraper) CheckForUpdates(ctx context.Context) (string, bool) {
	latest, err := s.latestCommit(ctx)
	if err != nil {
		s.metrics.ScrapeChecks.WithLabelValues("error").Inc()
		s.logger.Warn("failed to get most recent commit hash", "url", s.opts.RefURL, "error", err)
		return "", false
	}

	current, err := s.LastCommit()
	if err != nil {
		s.logger.Warn("failed to read recorded commit", "error", err)
	}
	if current == latest {
		s.metrics.ScrapeChecks.WithLabelValues("current").Inc()
		s.logger.Debug("data already downloaded", "commit", latest)
		return latest, false
	}

	s.metrics.ScrapeChecks.WithLabelValues("updated").Inc()
	s.logger.Info("new data available", "commit", latest, "previous", current)
	return latest, true
}

// Download fetches every configured file into the data directory, replacing
// each atomically, then records commit. A failure leaves the recorded commit
// unchanged so the next check retries.
func (s *Scraper) Download(ctx context.Context, commit string) error {
	if err := os.MkdirAll(s.opts.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	for _, name := range s.opts.Files {
		if err := s.downloadFile(ctx, name); err != nil {
			s.metrics.ScrapeDownloads.WithLabelValues(name, "error").Inc()
			return err
		}
		s.metrics.ScrapeDownloads.WithLabelValues(name, "success").Inc()
	}
	if err := writeAtomic(filepath.Join(s.opts.DataDir, CommitFile), strings.NewReader(commit)); err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	s.logger.Info("downloads complete", "commit", commit, "files", len(s.opts.Files))
	return nil
}

// LastCommit returns the recorded commit, or "" when none is recorded.
func (s *Scraper) LastCommit() (string, error) {
	b, err := os.ReadFile(filepath.Join(s.opts.DataDir, CommitFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", CommitFile, err)
	}
	return strings.TrimSpace(string(b)), nil
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

func (s *Scraper) latestCommit(ctx context.Context) (string, error) {
	resp, err := s.get(ctx, s.opts.RefURL, "application/vnd.github+json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ref refResponse
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return "", fmt.Errorf("decode ref: %w", err)
	}
	if len(ref.Object.SHA) < shortSHALen {
		return "", fmt.Errorf("ref has no commit sha: %q", ref.Object.SHA)
	}
	return ref.Object.SHA[:shortSHALen], nil
}

func (s *Scraper) downloadFile(ctx context.Context, name string) error {
	url := strings.TrimSuffix(s.opts.BaseURL, "/") + "/" + name
	s.logger.Info("downloading", "file", name, "url", url)

	resp, err := s.get(ctx, url, "text/csv")
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := writeAtomic(filepath.Join(s.opts.DataDir, name), resp.Body); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// get issues a rate-limited GET and fails on non-2xx responses.
func (s *Scraper) get(ctx context.Context, url, accept string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "covid-dashboard")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// writeAtomic writes r to a temp file beside path and renames it into place,
// so readers never observe a partial file.
func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
