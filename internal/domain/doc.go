// Package domain models COVID-19 case counts and the transformations that turn
// them into dashboard tables.
//
// # Data Source
//
// Case data originates from the Johns Hopkins CSSE "web-data" branch, which
// publishes cases_time.csv with one row per (country, date). The scraper
// downloads snapshots into the data directory and the csvsource adapter turns
// rows into [CaseRecord] values.
//
// # Conventions
//
// Counts are cumulative: the Confirmed column on 2020-03-01 is every case
// reported up to and including that day. Upstream occasionally revises counts
// downwards, so a series is usually but not always non-decreasing. Nothing in
// this package enforces monotonicity; a downward revision simply shows up as a
// negative delta.
//
// Dates are calendar days. Every date is normalized to midnight UTC so that
// records compare with time.Time.Equal regardless of the source layout.
//
// Countries are keyed by display name after alias resolution ("US",
// "Korea, South"). Rows whose ISO3 code is missing or malformed never reach
// this package; see [ValidISO3].
//
// # Derived Tables
//
//	delta[i]   = cumulative[i] - cumulative[i-1], delta[0] = cumulative[0]
//	scaled[i]  = (delta[i] - min(delta)) / (max(delta) - min(delta))
//
// A series whose deltas are all equal has no range to scale against. Those
// series are zero-filled and flagged with HeatmapRow.Flat so the presentation
// can label them "no variation" instead of drawing a misleading gradient.
package domain
