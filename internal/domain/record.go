package domain

import (
	"sort"
	"time"
)

// RawRow holds the string fields of one CSV row after column resolution.
// Deaths is optional and may be empty.
type RawRow struct {
	Country   string
	ISO3      string
	Date      string
	Confirmed string
	Deaths    string
}

// CaseRecord is one validated (country, date) observation of cumulative counts.
type CaseRecord struct {
	Country    string    `json:"country"`
	ISO3       string    `json:"iso3"`
	Date       time.Time `json:"date"`
	Cumulative int64     `json:"confirmed"`
	Deaths     int64     `json:"deaths"`
}

// CountryTimeSeries is every record for one country, sorted by date ascending
// with at most one record per date.
type CountryTimeSeries struct {
	Country string       `json:"country"`
	ISO3    string       `json:"iso3"`
	Records []CaseRecord `json:"records"`
}

// Final returns the last cumulative case count, or 0 for an empty series.
func (s CountryTimeSeries) Final() int64 {
	if len(s.Records) == 0 {
		return 0
	}
	return s.Records[len(s.Records)-1].Cumulative
}

// DeltaPoint is one day of a DeltaSeries.
type DeltaPoint struct {
	Date        time.Time `json:"date"`
	Cumulative  int64     `json:"confirmed"`
	Delta       int64     `json:"delta_confirmed"`
	Deaths      int64     `json:"deaths"`
	DeltaDeaths int64     `json:"delta_deaths"`
}

// DeltaSeries holds the first differences of a CountryTimeSeries.
type DeltaSeries struct {
	Country string       `json:"country"`
	ISO3    string       `json:"iso3"`
	Points  []DeltaPoint `json:"points"`
}

// HeatmapCell is one normalized new-case value. Flat repeats the row's flag
// so a flattened cell can be told apart from a true minimum.
type HeatmapCell struct {
	Country string    `json:"country"`
	Date    time.Time `json:"date"`
	Delta   int64     `json:"delta_confirmed"`
	Value   float64   `json:"norm_confirmed"`
	Flat    bool      `json:"flat"`
}

// HeatmapRow is the normalized series for one country. Flat is set when the
// series had no variation and every Value was zero-filled.
type HeatmapRow struct {
	Country string        `json:"country"`
	ISO3    string        `json:"iso3"`
	Flat    bool          `json:"flat"`
	Cells   []HeatmapCell `json:"cells"`
}

// Heatmap is the matrix rendered by the infection heatmap view.
type Heatmap struct {
	Start time.Time    `json:"start,omitzero"`
	End   time.Time    `json:"end,omitzero"`
	Rows  []HeatmapRow `json:"rows"`
}

// Cells flattens the heatmap into the tidy form chart specs consume.
func (h Heatmap) Cells() []HeatmapCell {
	var n int
	for _, r := range h.Rows {
		n += len(r.Cells)
	}
	out := make([]HeatmapCell, 0, n)
	for _, r := range h.Rows {
		out = append(out, r.Cells...)
	}
	return out
}

// Dataset is one immutable load of the source table. Loaders fill the
// metadata fields; Series and the lookup index come from NewDataset.
// NumericIDs maps ISO3 codes to ISO 3166-1 numeric codes, the keys of the
// world map's country shapes.
type Dataset struct {
	Series      []CountryTimeSeries
	Population  map[string]int64
	NumericIDs  map[string]int
	Source      string
	ModTime     time.Time
	LoadedAt    time.Time
	RowsRead    int
	RowsDropped int
	DropReasons map[string]int
	Version     uint64

	index map[string]int
}

// NewDataset groups records by country and indexes the result. population may
// be nil.
func NewDataset(records []CaseRecord, population map[string]int64) *Dataset {
	series := GroupByCountry(records)
	index := make(map[string]int, len(series))
	for i, s := range series {
		index[s.Country] = i
	}
	return &Dataset{
		Series:     series,
		Population: population,
		LoadedAt:   clock.Now(),
		index:      index,
	}
}

// Lookup returns the series for a country by exact name.
func (d *Dataset) Lookup(country string) (CountryTimeSeries, bool) {
	if d == nil {
		return CountryTimeSeries{}, false
	}
	i, ok := d.index[country]
	if !ok {
		return CountryTimeSeries{}, false
	}
	return d.Series[i], true
}

// Countries returns the country names in sorted order.
func (d *Dataset) Countries() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.Country
	}
	return out
}

// Empty reports whether the dataset has no usable records.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Series) == 0
}

// GroupByCountry splits records into per-country series sorted by country name,
// each sorted by date. Records sharing a (country, date) key, such as
// province-level rows, are summed.
func GroupByCountry(records []CaseRecord) []CountryTimeSeries {
	type key struct {
		country string
		date    time.Time
	}
	merged := make(map[key]*CaseRecord, len(records))
	byCountry := make(map[string][]*CaseRecord)

	for _, r := range records {
		k := key{country: r.Country, date: r.Date}
		if existing, ok := merged[k]; ok {
			existing.Cumulative += r.Cumulative
			existing.Deaths += r.Deaths
			continue
		}
		rec := r
		merged[k] = &rec
		byCountry[r.Country] = append(byCountry[r.Country], &rec)
	}

	out := make([]CountryTimeSeries, 0, len(byCountry))
	for country, recs := range byCountry {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
		s := CountryTimeSeries{Country: country, Records: make([]CaseRecord, len(recs))}
		for i, r := range recs {
			s.Records[i] = *r
		}
		s.ISO3 = s.Records[0].ISO3
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}
