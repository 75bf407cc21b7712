package domain

import (
	"sort"
	"time"
)

// ComputeDeltas returns the day-over-day increases of a series. The first
// point has no prior day, so its delta is its own cumulative value.
func ComputeDeltas(s CountryTimeSeries) DeltaSeries {
	out := DeltaSeries{
		Country: s.Country,
		ISO3:    s.ISO3,
		Points:  make([]DeltaPoint, len(s.Records)),
	}
	var prevCases, prevDeaths int64
	for i, r := range s.Records {
		out.Points[i] = DeltaPoint{
			Date:        r.Date,
			Cumulative:  r.Cumulative,
			Delta:       r.Cumulative - prevCases,
			Deaths:      r.Deaths,
			DeltaDeaths: r.Deaths - prevDeaths,
		}
		prevCases, prevDeaths = r.Cumulative, r.Deaths
	}
	return out
}

// Normalize min-max scales a delta series into [0, 1] using the series' own
// extremes. A constant series is zero-filled and marked Flat.
func Normalize(d DeltaSeries) HeatmapRow {
	row := HeatmapRow{
		Country: d.Country,
		ISO3:    d.ISO3,
		Cells:   make([]HeatmapCell, len(d.Points)),
	}
	if len(d.Points) == 0 {
		return row
	}

	lo, hi := d.Points[0].Delta, d.Points[0].Delta
	for _, p := range d.Points[1:] {
		lo = min(lo, p.Delta)
		hi = max(hi, p.Delta)
	}
	span := float64(hi - lo)
	row.Flat = hi == lo

	for i, p := range d.Points {
		cell := HeatmapCell{Country: d.Country, Date: p.Date, Delta: p.Delta, Flat: row.Flat}
		if !row.Flat {
			cell.Value = float64(p.Delta-lo) / span
		}
		row.Cells[i] = cell
	}
	return row
}

// TopNByTotal returns the n series with the highest final cumulative count,
// highest first. Ties are broken by country name. n <= 0 yields nothing.
func TopNByTotal(series []CountryTimeSeries, n int) []CountryTimeSeries {
	if n <= 0 || len(series) == 0 {
		return []CountryTimeSeries{}
	}
	ranked := make([]CountryTimeSeries, len(series))
	copy(ranked, series)
	sort.SliceStable(ranked, func(i, j int) bool {
		fi, fj := ranked[i].Final(), ranked[j].Final()
		if fi != fj {
			return fi > fj
		}
		return ranked[i].Country < ranked[j].Country
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// DefaultRange returns the date of the first confirmed case and the last
// available date. A series that never reports a case starts at its first
// record. ok is false for an empty series.
func DefaultRange(s CountryTimeSeries) (start, end time.Time, ok bool) {
	if len(s.Records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start = s.Records[0].Date
	for _, r := range s.Records {
		if r.Cumulative > 0 {
			start = r.Date
			break
		}
	}
	return start, s.Records[len(s.Records)-1].Date, true
}

// FilterDateRange keeps the records dated within [start, end], inclusive. A
// zero start or end falls back to the corresponding DefaultRange bound.
func FilterDateRange(s CountryTimeSeries, start, end time.Time) CountryTimeSeries {
	defStart, defEnd, ok := DefaultRange(s)
	if !ok {
		return CountryTimeSeries{Country: s.Country, ISO3: s.ISO3, Records: []CaseRecord{}}
	}
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}

	out := CountryTimeSeries{Country: s.Country, ISO3: s.ISO3, Records: []CaseRecord{}}
	for _, r := range s.Records {
		if inRange(r.Date, start, end) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// FilterDeltas keeps the points dated within [start, end]. Zero bounds are
// open. Deltas are computed on the full series first so the first point in
// range keeps its true day-over-day value.
func FilterDeltas(d DeltaSeries, start, end time.Time) DeltaSeries {
	out := DeltaSeries{Country: d.Country, ISO3: d.ISO3, Points: []DeltaPoint{}}
	for _, p := range d.Points {
		if inRange(p.Date, start, end) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// BuildHeatmap computes deltas for every series, restricts them to the date
// range and normalizes each row. Row order follows the input order.
func BuildHeatmap(series []CountryTimeSeries, start, end time.Time) Heatmap {
	h := Heatmap{Start: start, End: end, Rows: make([]HeatmapRow, 0, len(series))}
	for _, s := range series {
		d := FilterDeltas(ComputeDeltas(s), start, end)
		h.Rows = append(h.Rows, Normalize(d))
	}
	return h
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
