package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// ErrMissingColumn is returned when a CSV lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// columnAliases lists the accepted cleaned header names per logical column,
// most preferred first.
var columnAliases = map[string][]string{
	"country":    {"country_region", "country"},
	"iso3":       {"iso3", "iso3_code", "iso", "alpha_3", "alpha_3_code"},
	"date":       {"date", "last_update", "report_date_string"},
	"confirmed":  {"confirmed", "cumulative_cases"},
	"deaths":     {"deaths"},
	"population": {"population", "2018"},
	"numeric":    {"id", "numeric", "numeric_code", "iso_numeric"},
}

// header maps logical column names to field positions.
type header map[string]int

// readHeader resolves the header row. It returns a nil header for an empty
// input.
func readHeader(r *csv.Reader) (header, error) {
	names, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	positions := make(map[string]int, len(names))
	for i, n := range names {
		clean := domain.CleanColumnName(n)
		if _, dup := positions[clean]; !dup {
			positions[clean] = i
		}
	}

	h := make(header)
	for logical, candidates := range columnAliases {
		for _, c := range candidates {
			if i, ok := positions[c]; ok {
				h[logical] = i
				break
			}
		}
	}
	return h, nil
}

func (h header) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

// field returns the value of a logical column, or "" when the column is
// absent or the row is short.
func (h header) field(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}
