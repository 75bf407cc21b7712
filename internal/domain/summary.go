package domain

import (
	"sort"
	"time"
)

// WorldPoint is the world aggregate for one date.
type WorldPoint struct {
	Date         time.Time `json:"date"`
	Confirmed    int64     `json:"confirmed"`
	Deaths       int64     `json:"deaths"`
	NewConfirmed int64     `json:"delta_confirmed"`
	NewDeaths    int64     `json:"delta_deaths"`
}

// WorldSummary is the headline block of the world view.
type WorldSummary struct {
	AsOf         time.Time `json:"as_of,omitzero"`
	Confirmed    int64     `json:"confirmed"`
	Deaths       int64     `json:"deaths"`
	NewConfirmed int64     `json:"delta_confirmed"`
	NewDeaths    int64     `json:"delta_deaths"`
	Countries    int       `json:"countries"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// CountryTotal is one bar of the most affected chart.
type CountryTotal struct {
	Country      string `json:"country"`
	ISO3         string `json:"iso3"`
	Confirmed    int64  `json:"confirmed"`
	Deaths       int64  `json:"deaths"`
	NewConfirmed int64  `json:"delta_confirmed"`
}

// CountrySummary describes one country at its latest date. ID is the ISO
// 3166-1 numeric code when the ISO reference provides one.
type CountrySummary struct {
	Country       string    `json:"country"`
	ISO3          string    `json:"iso3"`
	ID            int       `json:"id,omitempty"`
	Confirmed     int64     `json:"confirmed"`
	Deaths        int64     `json:"deaths"`
	NewConfirmed  int64     `json:"delta_confirmed"`
	NewDeaths     int64     `json:"delta_deaths"`
	FirstCase     time.Time `json:"first_case,omitzero"`
	LastUpdate    time.Time `json:"last_update,omitzero"`
	Population    int64     `json:"population,omitempty"`
	CasesPer100k  float64   `json:"sick_pr_100k,omitempty"`
	DeathsPer100k float64   `json:"deaths_pr_100k,omitempty"`
}

// WorldTimeline sums every country per date and derives world deltas. Dates
// are ascending. A country that has stopped reporting keeps contributing its
// last known counts, and one that has not started yet contributes nothing.
func WorldTimeline(series []CountryTimeSeries) []WorldPoint {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for _, r := range s.Records {
			seen[r.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]WorldPoint, len(dates))
	for i, d := range dates {
		out[i].Date = d
	}
	for _, s := range series {
		var next int
		var cases, deaths int64
		for i, d := range dates {
			for next < len(s.Records) && !s.Records[next].Date.After(d) {
				cases, deaths = s.Records[next].Cumulative, s.Records[next].Deaths
				next++
			}
			out[i].Confirmed += cases
			out[i].Deaths += deaths
		}
	}

	var prevCases, prevDeaths int64
	for i := range out {
		out[i].NewConfirmed = out[i].Confirmed - prevCases
		out[i].NewDeaths = out[i].Deaths - prevDeaths
		prevCases, prevDeaths = out[i].Confirmed, out[i].Deaths
	}
	return out
}

// WorldSummarize reports the world totals at the latest date in the data.
func WorldSummarize(series []CountryTimeSeries) WorldSummary {
	summary := WorldSummary{Countries: len(series), GeneratedAt: clock.Now().UTC()}
	timeline := WorldTimeline(series)
	if len(timeline) == 0 {
		return summary
	}
	last := timeline[len(timeline)-1]
	summary.AsOf = last.Date
	summary.Confirmed = last.Confirmed
	summary.Deaths = last.Deaths
	summary.NewConfirmed = last.NewConfirmed
	summary.NewDeaths = last.NewDeaths
	return summary
}

// MostAffected returns totals for the n countries with the most confirmed
// cases, highest first.
func MostAffected(series []CountryTimeSeries, n int) []CountryTotal {
	top := TopNByTotal(series, n)
	out := make([]CountryTotal, 0, len(top))
	for _, s := range top {
		d := ComputeDeltas(s)
		t := CountryTotal{Country: s.Country, ISO3: s.ISO3}
		if len(d.Points) > 0 {
			last := d.Points[len(d.Points)-1]
			t.Confirmed = last.Cumulative
			t.Deaths = last.Deaths
			t.NewConfirmed = last.Delta
		}
		out = append(out, t)
	}
	return out
}

// SummarizeCountry reports a country's latest totals. population <= 0 leaves
// the per-100k figures unset.
func SummarizeCountry(s CountryTimeSeries, population int64) CountrySummary {
	summary := CountrySummary{Country: s.Country, ISO3: s.ISO3}
	first, last, ok := DefaultRange(s)
	if !ok {
		return summary
	}
	d := ComputeDeltas(s)
	latest := d.Points[len(d.Points)-1]

	summary.Confirmed = latest.Cumulative
	summary.Deaths = latest.Deaths
	summary.NewConfirmed = latest.Delta
	summary.NewDeaths = latest.DeltaDeaths
	summary.FirstCase = first
	summary.LastUpdate = last

	if population > 0 {
		summary.Population = population
		summary.CasesPer100k = per100k(latest.Cumulative, population)
		summary.DeathsPer100k = per100k(latest.Deaths, population)
	}
	return summary
}

// Summarize is SummarizeCountry with the dataset's population and numeric
// code for the series.
func (d *Dataset) Summarize(s CountryTimeSeries) CountrySummary {
	if d == nil {
		return SummarizeCountry(s, 0)
	}
	summary := SummarizeCountry(s, d.Population[s.Country])
	summary.ID = d.NumericIDs[s.ISO3]
	return summary
}

// Summaries returns the summary of every country, sorted by name.
func (d *Dataset) Summaries() []CountrySummary {
	if d == nil {
		return []CountrySummary{}
	}
	out := make([]CountrySummary, len(d.Series))
	for i, s := range d.Series {
		out[i] = d.Summarize(s)
	}
	return out
}

func per100k(count, population int64) float64 {
	return float64(count) / float64(population) * 1e5
}
