package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/chart"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

// maxTopN bounds count parameters; there are fewer countries than this.
const maxTopN = 250

// errBadParam marks a malformed query parameter.
var errBadParam = errors.New("invalid query parameter")

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", errBadParam, name, raw)
	}
	return t, nil
}

// queryMapColumn reads the map column, defaulting to the first of
// chart.MapColumns.
func queryMapColumn(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("column"))
	if raw == "" {
		return chart.MapColumns[0], nil
	}
	if !chart.ValidMapColumn(raw) {
		return "", fmt.Errorf("%w: column must be one of %s, got %q", errBadParam, strings.Join(chart.MapColumns, ", "), raw)
	}
	return raw, nil
}

// queryCount parses an optional count in [1, maxTopN]. Absent means 0.
func queryCount(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTopN {
		return 0, fmt.Errorf("%w: %s must be an integer between 1 and %d, got %q", errBadParam, name, maxTopN, raw)
	}
	return n, nil
}

// queryList reads a comma separated list, also accepting repeated parameters.
// A comma followed by a space belongs to the name, as in "Korea, South".
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		var parts []string
		for _, part := range strings.Split(v, ",") {
			if len(parts) > 0 && strings.HasPrefix(part, " ") {
				parts[len(parts)-1] += "," + part
				continue
			}
			parts = append(parts, part)
		}
		for _, part := range parts {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func queryRange(r *http.Request) (start, end time.Time, err error) {
	if start, err = queryDate(r, "start"); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = queryDate(r, "end"); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// heatmapQuery reads countries, top, start and end.
func heatmapQuery(r *http.Request) (pipeline.HeatmapQuery, error) {
	top, err := queryCount(r, "top")
	if err != nil {
		return pipeline.HeatmapQuery{}, err
	}
	start, end, err := queryRange(r)
	if err != nil {
		return pipeline.HeatmapQuery{}, err
	}
	return pipeline.HeatmapQuery{
		Countries: queryList(r, "countries"),
		TopN:      top,
		Start:     start,
		End:       end,
	}, nil
}
