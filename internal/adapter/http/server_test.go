package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/covid-dashboard/internal/adapter/http"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/ws"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

// --- fixtures ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticSource struct {
	ds  *domain.Dataset
	err error
}

func (s *staticSource) Snapshot(_ context.Context) (*domain.Dataset, error) { return s.ds, s.err }

func testDataset() *domain.Dataset {
	var recs []domain.CaseRecord
	add := func(country, iso string, cumulative ...int64) {
		for i, c := range cumulative {
			recs = append(recs, domain.CaseRecord{
				Country:    country,
				ISO3:       iso,
				Date:       time.Date(2020, time.March, 1+i, 0, 0, 0, 0, time.UTC),
				Cumulative: c,
				Deaths:     c / 10,
			})
		}
	}
	add("Norway", "NOR", 0, 10, 10, 15, 15, 30)
	add("Sweden", "SWE", 0, 0, 20, 40, 60, 80)
	add("Korea, South", "KOR", 1, 2, 3, 4, 5, 6)
	return domain.NewDataset(recs, nil)
}

func newServer(src pipeline.SnapshotSource, readyErr error) *httpadapter.Server {
	p := pipeline.New(src, slog.Default(), observability.NewMetricsForTesting(), 2, 2)
	return httpadapter.NewServer(":0", p, &mockReadiness{err: readyErr}, nil, slog.Default())
}

func newTestServer(readyErr error) *httpadapter.Server {
	return newServer(&staticSource{ds: testDataset()}, readyErr)
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("not ready yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- data API ---

func TestWorldSummary(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/world/summary")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	s := decode[domain.WorldSummary](t, rec)
	assert.Equal(t, int64(30+80+6), s.Confirmed)
	assert.Equal(t, 3, s.Countries)
}

func TestWorldTimeline(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/world/timeline")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.WorldPoint](t, rec), 6)
}

func TestMostAffected(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(t, srv, "/api/v1/world/most-affected?n=1")
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode[[]domain.CountryTotal](t, rec)
	require.Len(t, totals, 1)
	assert.Equal(t, "Sweden", totals[0].Country)

	rec = get(t, srv, "/api/v1/world/most-affected")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.CountryTotal](t, rec), 2, "default n")
}

func TestMostAffected_BadN(t *testing.T) {
	for _, n := range []string{"abc", "0", "-3", "1000"} {
		t.Run(n, func(t *testing.T) {
			rec := get(t, newTestServer(nil), "/api/v1/world/most-affected?n="+n)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], "n must be")
		})
	}
}

func TestHeatmap_ExplicitCountries(t *testing.T) {
	q := url.Values{"countries": {"Norway,Korea, South"}, "start": {"2020-03-02"}}
	rec := get(t, newTestServer(nil), "/api/v1/heatmap?"+q.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[domain.Heatmap](t, rec)
	require.Len(t, h.Rows, 2)
	assert.Equal(t, "Norway", h.Rows[0].Country)
	assert.Equal(t, "Korea, South", h.Rows[1].Country)
	assert.True(t, h.Rows[1].Flat)
	assert.Len(t, h.Rows[0].Cells, 5)
}

func TestHeatmap_TopDefault(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/heatmap")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.Heatmap](t, rec).Rows, 2)
}

func TestHeatmap_Errors(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		status int
	}{
		{"bad start", "start=03/01/2020", http.StatusBadRequest},
		{"bad end", "end=yesterday", http.StatusBadRequest},
		{"bad top", "top=x", http.StatusBadRequest},
		{"inverted range", "start=2020-03-05&end=2020-03-01", http.StatusBadRequest},
		{"unknown country", "countries=Atlantis", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, newTestServer(nil), "/api/v1/heatmap?"+tc.query)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestCountries(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/countries")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Korea, South", "Norway", "Sweden"}, decode[[]string](t, rec))
}

func TestCountry(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/countries/"+url.PathEscape("Korea, South")+"?end=2020-03-03")

	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[pipeline.CountryView](t, rec)
	assert.Equal(t, "Korea, South", v.Summary.Country)
	assert.Len(t, v.Records, 3)
	assert.Len(t, v.Deltas, 3)
}

func TestCountry_NotFound(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/countries/Atlantis")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshotInfo(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/snapshot")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[pipeline.SnapshotInfo](t, rec).Countries)
}

func TestEmptyDataset(t *testing.T) {
	srv := newServer(&staticSource{ds: domain.NewDataset(nil, nil)}, nil)

	for _, path := range []string{"/api/v1/world/timeline", "/api/v1/world/most-affected", "/api/v1/world/countries", "/api/v1/countries"} {
		rec := get(t, srv, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
	rec := get(t, srv, "/api/v1/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows": []}`, rec.Body.String())
}

func TestSnapshotFailureIs500(t *testing.T) {
	srv := newServer(&staticSource{err: errors.New("disk on fire")}, nil)
	rec := get(t, srv, "/api/v1/world/summary")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[map[string]string](t, rec)["error"])
}

// --- charts ---

func TestCharts(t *testing.T) {
	srv := newTestServer(nil)
	for _, target := range []string{
		"/api/v1/charts/map",
		"/api/v1/charts/map?column=deaths&country=Norway",
		"/api/v1/charts/world-summary",
		"/api/v1/charts/most-affected?n=2",
		"/api/v1/charts/world-timeline?top=3",
		"/api/v1/charts/heatmap?countries=Norway",
		"/api/v1/charts/country?country=Norway&start=2020-03-02",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, srv, target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			spec := decode[map[string]any](t, rec)
			assert.Contains(t, spec["$schema"], "vega-lite")
			assert.Contains(t, spec, "data")
		})
	}
}

func TestChart_Errors(t *testing.T) {
	srv := newTestServer(nil)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/charts/pie").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/charts/country").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/charts/country?country=Atlantis").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/charts/heatmap?start=bad").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/charts/map?column=recovered").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/charts/map?country=Atlantis").Code)
}

func TestMapChart_UsesNumericCodes(t *testing.T) {
	ds := testDataset()
	ds.NumericIDs = map[string]int{"NOR": 578, "KOR": 410}
	srv := newServer(&staticSource{ds: ds}, nil)

	rec := get(t, srv, "/api/v1/charts/map?column=confirmed")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var spec struct {
		Title string `json:"title"`
		Layer []struct {
			Transform []struct {
				From struct {
					Data struct {
						Values []map[string]any `json:"values"`
					} `json:"data"`
				} `json:"from"`
			} `json:"transform"`
		} `json:"layer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "Confirmed cases", spec.Title)
	require.Len(t, spec.Layer, 2)
	rows := spec.Layer[1].Transform[0].From.Data.Values
	require.Len(t, rows, 2, "Sweden has no numeric code")
	assert.Equal(t, "Korea, South", rows[0]["country"])
	assert.InDelta(t, 410, rows[0]["id"], 0)
	assert.InDelta(t, 6, rows[0]["confirmed"], 0)
}

func TestWorldCountries(t *testing.T) {
	rec := get(t, newTestServer(nil), "/api/v1/world/countries")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]domain.CountrySummary](t, rec)
	require.Len(t, got, 3)
	assert.Equal(t, "Norway", got[1].Country)
	assert.Equal(t, int64(30), got[1].Confirmed)
}

// --- middleware and static page ---

func TestRequestIDGenerated(t *testing.T) {
	rec := get(t, newTestServer(nil), "/healthz")

	id := rec.Header().Get(httpadapter.RequestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "generated id %q is a UUID", id)
}

func TestRequestIDEchoed(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(httpadapter.RequestIDHeader, id)
	rec := httptest.NewRecorder()

	newTestServer(nil).ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(httpadapter.RequestIDHeader))
}

func TestRequestIDReplacesGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(httpadapter.RequestIDHeader, "<script>")
	rec := httptest.NewRecorder()

	newTestServer(nil).ServeHTTP(rec, req)

	assert.NotEqual(t, "<script>", rec.Header().Get(httpadapter.RequestIDHeader))
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vega-embed")

	rec = get(t, srv, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/charts/")
}

func TestWebsocketRoute(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	hub := ws.New(func() uint64 { return 4 }, slog.Default(), metrics)
	p := pipeline.New(&staticSource{ds: testDataset()}, slog.Default(), metrics, 2, 2)
	srv := httptest.NewServer(httpadapter.NewServer(":0", p, &mockReadiness{}, hub, slog.Default()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err, "upgrade passes through the request logging middleware")
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.EventHello, msg.Event)
	assert.Equal(t, uint64(4), msg.Version)
}
