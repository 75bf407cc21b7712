package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

// Views computes the dashboard's tables from the current snapshot.
type Views interface {
	Info(ctx context.Context) (pipeline.SnapshotInfo, error)
	WorldSummary(ctx context.Context) (domain.WorldSummary, error)
	WorldTimeline(ctx context.Context) ([]domain.WorldPoint, error)
	MostAffected(ctx context.Context, n int) ([]domain.CountryTotal, error)
	Heatmap(ctx context.Context, q pipeline.HeatmapQuery) (domain.Heatmap, error)
	Timelines(ctx context.Context, q pipeline.HeatmapQuery) ([]domain.CountryTimeSeries, error)
	Countries(ctx context.Context) ([]string, error)
	Summaries(ctx context.Context, country string) ([]domain.CountrySummary, error)
	Country(ctx context.Context, name string, start, end time.Time) (pipeline.CountryView, error)
}

// Server exposes the dashboard page, its JSON and chart API, refresh
// notifications, and the health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	views      Views
	logger     *slog.Logger
}

// NewServer wires every route. hub may be nil to disable /ws.
func NewServer(addr string, views Views, ready sharedobs.ReadinessChecker, hub http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withRequestLogging(mux, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		views:  views,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/world/summary", s.handleWorldSummary)
	mux.HandleFunc("GET /api/v1/world/timeline", s.handleWorldTimeline)
	mux.HandleFunc("GET /api/v1/world/most-affected", s.handleMostAffected)
	mux.HandleFunc("GET /api/v1/world/countries", s.handleSummaries)
	mux.HandleFunc("GET /api/v1/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/v1/countries", s.handleCountries)
	mux.HandleFunc("GET /api/v1/countries/{country}", s.handleCountry)
	mux.HandleFunc("GET /api/v1/charts/{name}", s.handleChart)

	if hub != nil {
		mux.Handle("GET /ws", hub)
	}
	mux.Handle("GET /", indexHandler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
