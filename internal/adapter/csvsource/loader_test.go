package csvsource

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const casesTimeCSV = `Country_Region,Last_Update,Confirmed,Deaths,Recovered,Active,Delta_Confirmed,Delta_Recovered,Incident_Rate,People_Tested,People_Hospitalized,Province_State,FIPS,UID,iso3,Report_Date_String
Norway,3/1/20,10,0,,,,,,,,,,578,NOR,2020-03-01
Norway,3/2/20,25,1,,,,,,,,,,578,NOR,2020-03-02
Diamond Princess,3/1/20,705,6,,,,,,,,,,9999,,2020-03-01
United Kingdom of Great Britain and Northern Ireland,3/1/20,36,0,,,,,,,,,,826,GBR,2020-03-01
Sweden,3/1/20,14,0,,,,,,,,,,752,SWE,2020-03-01
Sweden,not-a-date,20,0,,,,,,,,,,752,SWE,
Sweden,3/2/20,-3,0,,,,,,,,,,752,SWE,2020-03-02
Atlantis,3/1/20,5,0,,,,,,,,,,000,ATL,2020-03-01
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cases_time.csv", casesTimeCSV)
	metrics := observability.NewMetricsForTesting()

	ds, err := NewLoader(Options{Path: path}, quietLogger(), metrics).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, path, ds.Source)
	assert.Equal(t, 8, ds.RowsRead)
	assert.Equal(t, 3, ds.RowsDropped)
	assert.Equal(t, map[string]int{"invalid_iso3": 1, "invalid_date": 1, "invalid_count": 1}, ds.DropReasons)
	assert.False(t, ds.ModTime.IsZero())
	assert.Equal(t, []string{"Atlantis", "Norway", "Sweden", "United Kingdom"}, ds.Countries())

	no, ok := ds.Lookup("Norway")
	require.True(t, ok)
	require.Len(t, no.Records, 2)
	assert.Equal(t, time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC), no.Records[1].Date)
	assert.Equal(t, int64(25), no.Records[1].Cumulative)
	assert.Equal(t, int64(1), no.Records[1].Deaths)

	assert.InDelta(t, 5.0, testutil.ToFloat64(metrics.RowsLoaded), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("invalid_iso3")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("invalid_date")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("invalid_count")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotLoads.WithLabelValues("success")), 0)
}

func TestLoader_ISOReferenceDropsUnknownCodes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cases_time.csv", casesTimeCSV)
	iso := writeFile(t, dir, "iso-codes.csv", "country_region,alpha-3,id\nNorway,NOR,578\nSweden,SWE,752\nUnited Kingdom,GBR,826\n")
	metrics := observability.NewMetricsForTesting()

	ds, err := NewLoader(Options{Path: path, ISOCodesPath: iso}, quietLogger(), metrics).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Norway", "Sweden", "United Kingdom"}, ds.Countries())
	assert.Equal(t, 4, ds.RowsDropped)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("unknown_iso3")), 0)
	assert.Equal(t, map[string]int{"NOR": 578, "SWE": 752, "GBR": 826}, ds.NumericIDs)
}

func TestLoader_ISOReferenceSkipsBadNumericCodes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cases_time.csv", casesTimeCSV)
	iso := writeFile(t, dir, "iso-codes.csv", "name,iso3,numeric\nNorway,NOR,\nSweden,SWE,x\nUnited Kingdom,GBR,826\n")

	ds, err := NewLoader(Options{Path: path, ISOCodesPath: iso}, quietLogger(), observability.NewMetricsForTesting()).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, ds.Series, 3)
	assert.Equal(t, map[string]int{"GBR": 826}, ds.NumericIDs)
}

func TestLoader_Population(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cases_time.csv", casesTimeCSV)
	pop := writeFile(t, dir, "population.csv", "Country_Region,2018\nNorway,5314336\nUnited Kingdom of Great Britain and Northern Ireland,66488991\nNowhere,\n")

	ds, err := NewLoader(Options{Path: path, PopulationPath: pop}, quietLogger(), observability.NewMetricsForTesting()).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5314336), ds.Population["Norway"])
	assert.Equal(t, int64(66488991), ds.Population["United Kingdom"])
	assert.NotContains(t, ds.Population, "Nowhere")
}

func TestLoader_MissingFileIsEmpty(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	ds, err := NewLoader(Options{Path: filepath.Join(t.TempDir(), "absent.csv")}, quietLogger(), metrics).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Empty())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotLoads.WithLabelValues("missing")), 0)
}

func TestLoader_EmptyFileIsEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases_time.csv", "")
	ds, err := NewLoader(Options{Path: path}, quietLogger(), observability.NewMetricsForTesting()).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestLoader_HeaderOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases_time.csv", "country,iso3,date,cumulative_cases\n")
	ds, err := NewLoader(Options{Path: path}, quietLogger(), observability.NewMetricsForTesting()).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestLoader_MissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases_time.csv", "country,date,cumulative_cases\nNorway,2020-03-01,1\n")
	metrics := observability.NewMetricsForTesting()
	_, err := NewLoader(Options{Path: path}, quietLogger(), metrics).Load(context.Background())
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "iso3")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotLoads.WithLabelValues("error")), 0)
}

func TestLoader_CancelledContext(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases_time.csv", casesTimeCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(Options{Path: path}, quietLogger(), observability.NewMetricsForTesting()).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Paths(t *testing.T) {
	l := NewLoader(Options{Path: "a.csv", PopulationPath: "p.csv"}, quietLogger(), observability.NewMetricsForTesting())
	assert.Equal(t, []string{"a.csv", "p.csv"}, l.Paths())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		DataDir:        "data",
		TimeSeriesFile: "cases_time.csv",
		ISOCodesFile:   "/etc/covid/iso.csv",
		PopulationFile: "population.csv",
	}

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, filepath.Join("data", "cases_time.csv"), opts.Path)
	assert.Equal(t, "/etc/covid/iso.csv", opts.ISOCodesPath)
	assert.Equal(t, filepath.Join("data", "population.csv"), opts.PopulationPath)
	assert.Empty(t, opts.AliasesPath)
}
