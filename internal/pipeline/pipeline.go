package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

var (
	// ErrCountryNotFound is returned when a requested country is not in the snapshot.
	ErrCountryNotFound = errors.New("country not found")
	// ErrInvalidRange is returned when a query's start date is after its end date.
	ErrInvalidRange = errors.New("start date is after end date")
)

// SnapshotSource provides the current dataset.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*domain.Dataset, error)
}

// HeatmapQuery selects the rows and dates of a heatmap. An empty Countries
// list selects the TopN countries by total; a zero TopN uses the default.
type HeatmapQuery struct {
	Countries []string
	TopN      int
	Start     time.Time
	End       time.Time
}

// CountryView is everything the country page shows.
type CountryView struct {
	Summary domain.CountrySummary `json:"summary"`
	Start   time.Time             `json:"start,omitzero"`
	End     time.Time             `json:"end,omitzero"`
	Records []domain.CaseRecord   `json:"records"`
	Deltas  []domain.DeltaPoint   `json:"deltas"`
}

// SnapshotInfo describes the dataset currently served.
type SnapshotInfo struct {
	Version     uint64    `json:"version"`
	Source      string    `json:"source"`
	ModTime     time.Time `json:"mod_time,omitzero"`
	LoadedAt    time.Time `json:"loaded_at"`
	RowsRead    int       `json:"rows_read"`
	RowsDropped int       `json:"rows_dropped"`
	Countries   int       `json:"countries"`
}

// Pipeline answers view queries by recomputing from the current snapshot.
// It holds no derived state between calls.
type Pipeline struct {
	source        SnapshotSource
	logger        *slog.Logger
	metrics       *observability.Metrics
	heatmapTopN   int
	mostAffectedN int
	ready         atomic.Bool
}

// New creates a Pipeline. heatmapTopN and mostAffectedN are the defaults used
// when a query leaves them unset.
func New(source SnapshotSource, logger *slog.Logger, metrics *observability.Metrics, heatmapTopN, mostAffectedN int) *Pipeline {
	return &Pipeline{
		source:        source,
		logger:        logger,
		metrics:       metrics,
		heatmapTopN:   heatmapTopN,
		mostAffectedN: mostAffectedN,
	}
}

// CheckReadiness returns nil once a snapshot has been served.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	if _, err := p.snapshot(ctx); err != nil {
		return fmt.Errorf("no snapshot loaded yet: %w", err)
	}
	return nil
}

// Info reports metadata about the current snapshot.
func (p *Pipeline) Info(ctx context.Context) (SnapshotInfo, error) {
	ds, err := p.snapshot(ctx)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return SnapshotInfo{
		Version:     ds.Version,
		Source:      ds.Source,
		ModTime:     ds.ModTime,
		LoadedAt:    ds.LoadedAt,
		RowsRead:    ds.RowsRead,
		RowsDropped: ds.RowsDropped,
		Countries:   len(ds.Series),
	}, nil
}

// WorldSummary returns world totals at the latest date.
func (p *Pipeline) WorldSummary(ctx context.Context) (domain.WorldSummary, error) {
	defer p.observe("world_summary", time.Now())
	ds, err := p.snapshot(ctx)
	if err != nil {
		return domain.WorldSummary{}, err
	}
	return domain.WorldSummarize(ds.Series), nil
}

// WorldTimeline returns world totals per date.
func (p *Pipeline) WorldTimeline(ctx context.Context) ([]domain.WorldPoint, error) {
	defer p.observe("world_timeline", time.Now())
	ds, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return domain.WorldTimeline(ds.Series), nil
}

// MostAffected returns the n countries with the highest totals. n <= 0 uses
// the default.
func (p *Pipeline) MostAffected(ctx context.Context, n int) ([]domain.CountryTotal, error) {
	defer p.observe("most_affected", time.Now())
	ds, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = p.mostAffectedN
	}
	return domain.MostAffected(ds.Series, n), nil
}

// Heatmap builds the normalized new-case heatmap for the selected countries.
// Unset bounds default to the earliest first case and the latest date among
// the selected countries, so every row shares one date axis.
func (p *Pipeline) Heatmap(ctx context.Context, q HeatmapQuery) (domain.Heatmap, error) {
	defer p.observe("heatmap", time.Now())
	if err := checkRange(q.Start, q.End); err != nil {
		return domain.Heatmap{}, err
	}
	ds, err := p.snapshot(ctx)
	if err != nil {
		return domain.Heatmap{}, err
	}

	selected, err := p.selectSeries(ds, q)
	if err != nil {
		return domain.Heatmap{}, err
	}

	start, end := q.Start, q.End
	defStart, defEnd := commonRange(selected)
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}
	return domain.BuildHeatmap(selected, start, end), nil
}

// Timelines returns the cumulative series of the countries selected by q,
// restricted to its date range. Selection and range defaults follow Heatmap.
func (p *Pipeline) Timelines(ctx context.Context, q HeatmapQuery) ([]domain.CountryTimeSeries, error) {
	defer p.observe("timelines", time.Now())
	if err := checkRange(q.Start, q.End); err != nil {
		return nil, err
	}
	ds, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := p.selectSeries(ds, q)
	if err != nil {
		return nil, err
	}

	start, end := q.Start, q.End
	defStart, defEnd := commonRange(selected)
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}
	out := make([]domain.CountryTimeSeries, len(selected))
	for i, s := range selected {
		out[i] = domain.FilterDateRange(s, start, end)
	}
	return out, nil
}

// Countries lists every country in the snapshot, sorted by name.
func (p *Pipeline) Countries(ctx context.Context) ([]string, error) {
	ds, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	countries := ds.Countries()
	if countries == nil {
		countries = []string{}
	}
	return countries, nil
}

// Summaries returns the latest summary of every country, or only of country
// when it is non-empty. It feeds the choropleth map.
func (p *Pipeline) Summaries(ctx context.Context, country string) ([]domain.CountrySummary, error) {
	defer p.observe("summaries", time.Now())
	ds, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if country == "" {
		return ds.Summaries(), nil
	}
	s, ok := ds.Lookup(country)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, country)
	}
	return []domain.CountrySummary{ds.Summarize(s)}, nil
}

// Country returns one country's summary and its records and deltas within
// [start, end]. Zero bounds default to the first confirmed case and the last
// date.
func (p *Pipeline) Country(ctx context.Context, name string, start, end time.Time) (CountryView, error) {
	defer p.observe("country", time.Now())
	if err := checkRange(start, end); err != nil {
		return CountryView{}, err
	}
	ds, err := p.snapshot(ctx)
	if err != nil {
		return CountryView{}, err
	}
	s, ok := ds.Lookup(name)
	if !ok {
		return CountryView{}, fmt.Errorf("%w: %s", ErrCountryNotFound, name)
	}

	if defStart, defEnd, ok := domain.DefaultRange(s); ok {
		if start.IsZero() {
			start = defStart
		}
		if end.IsZero() {
			end = defEnd
		}
	}

	return CountryView{
		Summary: ds.Summarize(s),
		Start:   start,
		End:     end,
		Records: domain.FilterDateRange(s, start, end).Records,
		Deltas:  domain.FilterDeltas(domain.ComputeDeltas(s), start, end).Points,
	}, nil
}

func (p *Pipeline) snapshot(ctx context.Context) (*domain.Dataset, error) {
	ds, err := p.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	p.ready.Store(true)
	return ds, nil
}

func (p *Pipeline) selectSeries(ds *domain.Dataset, q HeatmapQuery) ([]domain.CountryTimeSeries, error) {
	if len(q.Countries) == 0 {
		n := q.TopN
		if n <= 0 {
			n = p.heatmapTopN
		}
		return domain.TopNByTotal(ds.Series, n), nil
	}

	seen := make(map[string]struct{}, len(q.Countries))
	out := make([]domain.CountryTimeSeries, 0, len(q.Countries))
	for _, name := range q.Countries {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		s, ok := ds.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, name)
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Pipeline) observe(view string, start time.Time) {
	p.metrics.ViewDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

func commonRange(series []domain.CountryTimeSeries) (start, end time.Time) {
	for _, s := range series {
		first, last, ok := domain.DefaultRange(s)
		if !ok {
			continue
		}
		if start.IsZero() || first.Before(start) {
			start = first
		}
		if last.After(end) {
			end = last
		}
	}
	return start, end
}

func checkRange(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return nil
}
