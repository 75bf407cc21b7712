package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/filecache"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refreshCSV = `Country_Region,Last_Update,Confirmed,Deaths,iso3
Norway,2020-03-01,0,0,NOR
Norway,2020-03-02,10,0,NOR
Norway,2020-03-03,25,1,NOR
Sweden,2020-03-01,3,0,SWE
Sweden,2020-03-02,4,0,SWE
Sweden,2020-03-03,4,0,SWE
Ghost Ship,2020-03-03,700,7,
`

// TestPipeline_ServesRefreshedFile drives the views through the real CSV
// loader and snapshot cache, then replaces the file and invalidates.
func TestPipeline_ServesRefreshedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases_time.csv")
	require.NoError(t, os.WriteFile(path, []byte(refreshCSV), 0o600))

	metrics := observability.NewMetricsForTesting()
	loader := csvsource.NewLoader(csvsource.Options{Path: path}, slog.Default(), metrics)
	cache := filecache.New(loader, slog.Default(), metrics)
	p := pipeline.New(cache, slog.Default(), metrics, 20, 10)
	ctx := context.Background()

	top, err := p.MostAffected(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2, "row without ISO3 is dropped")
	assert.Equal(t, "Norway", top[0].Country)
	assert.Equal(t, int64(15), top[0].NewConfirmed)

	info, err := p.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, info.RowsRead)
	assert.Equal(t, 1, info.RowsDropped)
	assert.Equal(t, uint64(1), info.Version)

	updated := refreshCSV + "Sweden,2020-03-04,100,2,SWE\nNorway,2020-03-04,30,1,NOR\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	// Still the old snapshot until invalidated.
	top, err = p.MostAffected(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Norway", top[0].Country)

	cache.Invalidate()

	top, err = p.MostAffected(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Sweden", top[0].Country)
	assert.Equal(t, int64(96), top[0].NewConfirmed)

	info, err = p.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Version)
}

func TestPipeline_MissingFileIsEmpty(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	loader := csvsource.NewLoader(csvsource.Options{Path: filepath.Join(t.TempDir(), "absent.csv")}, slog.Default(), metrics)
	p := pipeline.New(filecache.New(loader, slog.Default(), metrics), slog.Default(), metrics, 20, 10)

	h, err := p.Heatmap(context.Background(), pipeline.HeatmapQuery{})
	require.NoError(t, err)
	assert.Empty(t, h.Rows)

	summary, err := p.WorldSummary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Confirmed)
	assert.Zero(t, summary.Countries)
}
