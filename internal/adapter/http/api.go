package http

import (
	"errors"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/covid-dashboard/internal/chart"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := s.views.Info(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleWorldSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.views.WorldSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWorldTimeline(w http.ResponseWriter, r *http.Request) {
	points, err := s.views.WorldTimeline(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, points)
}

func (s *Server) handleMostAffected(w http.ResponseWriter, r *http.Request) {
	n, err := queryCount(r, "n")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	totals, err := s.views.MostAffected(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, totals)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.views.Summaries(r.Context(), "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	q, err := heatmapQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.views.Heatmap(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.views.Countries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, countries)
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.views.Country(r.Context(), r.PathValue("country"), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, v)
}

// handleChart returns a Vega-Lite spec for one of the dashboard charts. It
// accepts the same query parameters as the matching data route; the country
// chart takes the country name from ?country=.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		spec chart.Spec
		err  error
	)

	switch r.PathValue("name") {
	case chart.NameMap:
		column, e := queryMapColumn(r)
		if e != nil {
			err = e
			break
		}
		country := strings.TrimSpace(r.URL.Query().Get("country"))
		summaries, e := s.views.Summaries(ctx, country)
		spec, err = chart.Map(summaries, column, country), e

	case chart.NameWorldSummary:
		summary, e := s.views.WorldSummary(ctx)
		spec, err = chart.WorldSummary(summary), e

	case chart.NameMostAffected:
		n, e := queryCount(r, "n")
		if e != nil {
			err = e
			break
		}
		totals, e := s.views.MostAffected(ctx, n)
		spec, err = chart.MostAffected(totals), e

	case chart.NameWorldTimeline:
		q, e := heatmapQuery(r)
		if e != nil {
			err = e
			break
		}
		series, e := s.views.Timelines(ctx, q)
		spec, err = chart.WorldTimeline(series), e

	case chart.NameHeatmap:
		q, e := heatmapQuery(r)
		if e != nil {
			err = e
			break
		}
		h, e := s.views.Heatmap(ctx, q)
		spec, err = chart.Heatmap(h), e

	case chart.NameCountry:
		name := r.URL.Query().Get("country")
		if name == "" {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "country is required"})
			return
		}
		start, end, e := queryRange(r)
		if e != nil {
			err = e
			break
		}
		v, e := s.views.Country(ctx, name, start, end)
		spec, err = chart.Country(v.Summary.Country, v.Deltas), e

	default:
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "unknown chart", "charts": chart.Names})
		return
	}

	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, spec)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, pipeline.ErrInvalidRange):
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, pipeline.ErrCountryNotFound):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
