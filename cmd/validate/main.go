// Command validate loads a case time series through the real loader and
// transformation pipeline and checks the results for integrity: dropped rows,
// non-monotone cumulative series, delta telescoping, normalization bounds,
// top-N ordering, and date filtering.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/cases_time.csv \
//	  -iso data/iso_codes.csv \
//	  -top 20 -strict
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// maxErrorsShown caps the detail printed per phase.
const maxErrorsShown = 20

// phase tracks pass/fail for a validation phase. Warnings are reported but
// only fail the run in strict mode.
type phase struct {
	name     string
	errors   []string
	warnOnly bool
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("csv", "data/cases_time.csv", "case time series CSV")
	iso := flag.String("iso", "", "optional ISO code reference CSV")
	aliases := flag.String("aliases", "", "optional country alias YAML")
	top := flag.Int("top", 20, "n for the top-N ordering check")
	strict := flag.Bool("strict", false, "fail on non-monotone series")
	flag.Parse()

	opts := csvsource.Options{Path: *path, ISOCodesPath: *iso, AliasesPath: *aliases}
	if code := run(opts, *top, *strict); code != 0 {
		os.Exit(code)
	}
}

func run(opts csvsource.Options, top int, strict bool) int {
	fmt.Println("=== Case Data Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := csvsource.NewLoader(opts, logger, observability.NewMetricsForTesting())
	ds, err := loader.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", opts.Path, err)
		return 1
	}

	monotone := validateMonotone(ds.Series)
	monotone.warnOnly = !strict
	phases := []*phase{
		validateLoad(ds),
		monotone,
		validateTelescoping(ds.Series),
		validateNormalization(ds.Series),
		validateTopN(ds.Series, top),
		validateDateFilter(ds.Series),
	}

	// ── Report results ──
	failed := false
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.passed():
		case p.warnOnly:
			status = fmt.Sprintf("\033[33mWARN (%d)\033[0m", len(p.errors))
		default:
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			failed = true
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d read, %d accepted, %d dropped; %d countries\n",
		ds.RowsRead, ds.RowsRead-ds.RowsDropped, ds.RowsDropped, len(ds.Series))
	printDropReasons(ds.DropReasons)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsShown {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxErrorsShown)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if failed {
		fmt.Println("\nValidation FAILED.")
		return 1
	}
	fmt.Println("\nAll validations passed.")
	return 0
}

func printDropReasons(reasons map[string]int) {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  dropped %-16s %d\n", k+":", reasons[k])
	}
}

// ── Phases ──

func validateLoad(ds *domain.Dataset) *phase {
	p := &phase{name: "Source loading"}
	if ds.Empty() {
		p.errorf("no valid rows in %s", ds.Source)
	}
	if ds.RowsRead > 0 && ds.RowsDropped*2 > ds.RowsRead {
		p.errorf("%d of %d rows dropped", ds.RowsDropped, ds.RowsRead)
	}
	return p
}

func validateMonotone(series []domain.CountryTimeSeries) *phase {
	p := &phase{name: "Cumulative counts never decrease"}
	for _, s := range series {
		for i, pt := range domain.ComputeDeltas(s).Points {
			if i == 0 {
				continue
			}
			if pt.Delta < 0 {
				p.errorf("%s %s: confirmed fell by %d", s.Country, pt.Date.Format(time.DateOnly), -pt.Delta)
			}
			if pt.DeltaDeaths < 0 {
				p.errorf("%s %s: deaths fell by %d", s.Country, pt.Date.Format(time.DateOnly), -pt.DeltaDeaths)
			}
		}
	}
	return p
}

func validateTelescoping(series []domain.CountryTimeSeries) *phase {
	p := &phase{name: "Deltas sum to final cumulative"}
	for _, s := range series {
		var sum int64
		for _, pt := range domain.ComputeDeltas(s).Points {
			sum += pt.Delta
		}
		if sum != s.Final() {
			p.errorf("%s: deltas sum to %d, final cumulative is %d", s.Country, sum, s.Final())
		}
	}
	return p
}

func validateNormalization(series []domain.CountryTimeSeries) *phase {
	p := &phase{name: "Normalized values within [0, 1]"}
	h := domain.BuildHeatmap(series, time.Time{}, time.Time{})
	for _, row := range h.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		lo, hi := row.Cells[0].Value, row.Cells[0].Value
		for _, c := range row.Cells {
			if c.Value < 0 || c.Value > 1 {
				p.errorf("%s %s: value %.4f out of range", row.Country, c.Date.Format(time.DateOnly), c.Value)
			}
			lo, hi = min(lo, c.Value), max(hi, c.Value)
		}
		switch {
		case row.Flat && hi != 0:
			p.errorf("%s: flat row has non-zero values", row.Country)
		case !row.Flat && (lo != 0 || hi != 1):
			p.errorf("%s: range is [%.4f, %.4f], want [0, 1]", row.Country, lo, hi)
		}
	}
	return p
}

func validateTopN(series []domain.CountryTimeSeries, n int) *phase {
	p := &phase{name: fmt.Sprintf("Top %d ordering", n)}
	got := domain.TopNByTotal(series, n)
	if want := min(n, len(series)); len(got) != want {
		p.errorf("got %d countries, want %d", len(got), want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Final() > got[i-1].Final() {
			p.errorf("%s (%d) ranked below %s (%d)", got[i-1].Country, got[i-1].Final(), got[i].Country, got[i].Final())
		}
	}
	return p
}

func validateDateFilter(series []domain.CountryTimeSeries) *phase {
	p := &phase{name: "Date filtering is idempotent"}
	for _, s := range series {
		once := domain.FilterDateRange(s, time.Time{}, time.Time{})
		start, end, ok := domain.DefaultRange(s)
		if !ok {
			continue
		}
		twice := domain.FilterDateRange(once, start, end)
		if diff := cmp.Diff(once, twice); diff != "" {
			p.errorf("%s: refiltering changed the series (-once +twice):\n%s", s.Country, diff)
		}
		if len(once.Records) > 0 && once.Records[0].Date.Before(start) {
			p.errorf("%s: filtered series starts before the first confirmed case", s.Country)
		}
	}
	return p
}
