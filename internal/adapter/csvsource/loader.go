package csvsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 4096

// Options names the files a Loader reads. Only Path is required.
type Options struct {
	Path           string
	ISOCodesPath   string
	PopulationPath string
	AliasesPath    string
}

// OptionsFromConfig resolves the configured data files.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Path:           cfg.TimeSeriesPath(),
		ISOCodesPath:   cfg.Resolve(cfg.ISOCodesFile),
		PopulationPath: cfg.Resolve(cfg.PopulationFile),
		AliasesPath:    cfg.Resolve(cfg.CountryAliasesFile),
	}
}

// Loader reads the case time series CSV into a domain.Dataset.
// It implements filecache.Source.
type Loader struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader for the given files.
func NewLoader(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{opts: opts, logger: logger, metrics: metrics}
}

// Paths returns every file the loader reads, for change watching.
func (l *Loader) Paths() []string {
	var out []string
	for _, p := range []string{l.opts.Path, l.opts.ISOCodesPath, l.opts.PopulationPath, l.opts.AliasesPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads and validates the source file. Invalid rows are dropped and
// counted. A missing source file yields an empty dataset rather than an error.
func (l *Loader) Load(ctx context.Context) (*domain.Dataset, error) {
	aliases, err := LoadAliases(l.opts.AliasesPath)
	if err != nil {
		l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, err
	}

	var iso isoTable
	if l.opts.ISOCodesPath != "" {
		if iso, err = loadISOCodes(l.opts.ISOCodesPath); err != nil {
			l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	var population map[string]int64
	if l.opts.PopulationPath != "" {
		if population, err = loadPopulation(l.opts.PopulationPath, aliases); err != nil {
			l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	f, err := os.Open(l.opts.Path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("source file missing, serving empty dataset", "path", l.opts.Path)
		l.metrics.SnapshotLoads.WithLabelValues("missing").Inc()
		l.metrics.DatasetCountries.Set(0)
		ds := domain.NewDataset(nil, population)
		ds.Source = l.opts.Path
		ds.NumericIDs = iso.numeric
		return ds, nil
	}
	if err != nil {
		l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("stat source: %w", err)
	}

	records, st, err := l.readRecords(ctx, f, aliases, iso.codes)
	if err != nil {
		l.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, err
	}

	ds := domain.NewDataset(records, population)
	ds.Source = l.opts.Path
	ds.ModTime = info.ModTime()
	ds.RowsRead = st.read
	ds.RowsDropped = st.dropped
	ds.DropReasons = st.reasons
	ds.NumericIDs = iso.numeric

	l.metrics.SnapshotLoads.WithLabelValues("success").Inc()
	l.metrics.RowsLoaded.Add(float64(len(records)))
	l.metrics.DatasetCountries.Set(float64(len(ds.Series)))
	l.logger.Info("source loaded",
		"path", l.opts.Path,
		"rows", st.read,
		"dropped", st.dropped,
		"countries", len(ds.Series),
	)
	return ds, nil
}

// loadStats counts rows read and dropped, by drop reason.
type loadStats struct {
	read    int
	dropped int
	reasons map[string]int
}

func (st *loadStats) drop(reason string) {
	st.dropped++
	st.reasons[reason]++
}

func (l *Loader) readRecords(ctx context.Context, src io.Reader, aliases Aliases, isoCodes map[string]struct{}) ([]domain.CaseRecord, loadStats, error) {
	st := loadStats{reasons: make(map[string]int)}
	r := newReader(src)
	h, err := readHeader(r)
	if err != nil {
		return nil, st, err
	}
	if h == nil {
		// Zero-byte file: nothing published yet.
		return nil, st, nil
	}
	if err := h.require("country", "iso3", "date", "confirmed"); err != nil {
		return nil, st, fmt.Errorf("source %s: %w", l.opts.Path, err)
	}

	var records []domain.CaseRecord
	for {
		if st.read%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, st, ctx.Err()
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		st.read++
		if err != nil {
			// Malformed quoting on one line is a dropped row, not a failed load.
			l.drop(&st, "malformed", err)
			continue
		}

		row := domain.RawRow{
			Country:   aliases.Resolve(h.field(rec, "country")),
			ISO3:      h.field(rec, "iso3"),
			Date:      h.field(rec, "date"),
			Confirmed: h.field(rec, "confirmed"),
			Deaths:    h.field(rec, "deaths"),
		}
		cr, err := domain.ParseRecord(row)
		if err != nil {
			l.drop(&st, dropReason(err), err)
			continue
		}
		if isoCodes != nil {
			if _, ok := isoCodes[cr.ISO3]; !ok {
				l.drop(&st, "unknown_iso3", fmt.Errorf("%w: %q not in reference", domain.ErrInvalidISO3, cr.ISO3))
				continue
			}
		}
		records = append(records, cr)
	}
	return records, st, nil
}

func (l *Loader) drop(st *loadStats, reason string, err error) {
	st.drop(reason)
	l.metrics.RowsDropped.WithLabelValues(reason).Inc()
	l.logger.Debug("row dropped", "row", st.read, "reason", reason, "error", err)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCountry):
		return "missing_country"
	case errors.Is(err, domain.ErrInvalidISO3):
		return "invalid_iso3"
	case errors.Is(err, domain.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, domain.ErrInvalidCount):
		return "invalid_count"
	default:
		return "malformed"
	}
}
