package chart

import (
	"strconv"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// Chart names served under /api/v1/charts/{name}.
const (
	NameMap           = "map"
	NameWorldSummary  = "world-summary"
	NameMostAffected  = "most-affected"
	NameWorldTimeline = "world-timeline"
	NameHeatmap       = "heatmap"
	NameCountry       = "country"
)

// Names lists every chart in display order.
var Names = []string{NameMap, NameWorldSummary, NameMostAffected, NameWorldTimeline, NameHeatmap, NameCountry}

// flatOpacity fades heatmap rows whose new cases never changed.
const flatOpacity = 0.3

type statusCount struct {
	Country string `json:"country,omitempty"`
	Status  string `json:"status"`
	Count   int64  `json:"count"`
}

type timelinePoint struct {
	Country   string    `json:"country"`
	Date      time.Time `json:"date"`
	Confirmed int64     `json:"confirmed"`
}

// WorldSummary is a horizontal bar per status of the world totals.
func WorldSummary(s domain.WorldSummary) Spec {
	values := []statusCount{
		{Status: "confirmed", Count: s.Confirmed},
		{Status: "deaths", Count: s.Deaths},
		{Status: "new confirmed", Count: s.NewConfirmed},
		{Status: "new deaths", Count: s.NewDeaths},
	}
	spec := newSpec("Summary statistics", values)
	spec.Height = 200
	spec.Mark = &Mark{Type: "bar", Tooltip: true}
	y := field("status", "nominal", "")
	y.Sort = "-x"
	spec.Encoding = &Encoding{
		X:       ptr(field("count", "quantitative", "Count")),
		Y:       &y,
		Color:   &Channel{Field: "status", Type: "nominal"},
		Tooltip: []Channel{field("status", "nominal", "Status"), field("count", "quantitative", "Count")},
	}
	spec.Config = &Config{Legend: &LegendConfig{Orient: "top"}}
	return spec
}

// MostAffected stacks confirmed cases and deaths for each country, ordered by
// total.
func MostAffected(totals []domain.CountryTotal) Spec {
	values := make([]statusCount, 0, 2*len(totals))
	for _, t := range totals {
		values = append(values,
			statusCount{Country: t.Country, Status: "confirmed", Count: t.Confirmed},
			statusCount{Country: t.Country, Status: "deaths", Count: t.Deaths},
		)
	}
	spec := newSpec(mostAffectedTitle(len(totals)), values)
	spec.Height = 300
	spec.Mark = &Mark{Type: "bar"}

	x := field("count", "quantitative", "Count")
	x.Aggregate = "sum"
	y := field("country", "nominal", "")
	y.Sort = "-x"
	spec.Encoding = &Encoding{
		X:     &x,
		Y:     &y,
		Color: &Channel{Field: "status", Type: "nominal", Scale: &Scale{Scheme: "tableau20"}},
		Tooltip: []Channel{
			field("country", "nominal", "Country"),
			field("count", "quantitative", "Count"),
			field("status", "nominal", "Status"),
		},
	}
	spec.Config = &Config{Legend: &LegendConfig{Orient: "top"}}
	return spec
}

// WorldTimeline draws one cumulative line per country. Hovering a line
// thickens it.
func WorldTimeline(series []domain.CountryTimeSeries) Spec {
	var values []timelinePoint
	for _, s := range series {
		for _, r := range s.Records {
			values = append(values, timelinePoint{Country: s.Country, Date: r.Date, Confirmed: r.Cumulative})
		}
	}
	if values == nil {
		values = []timelinePoint{}
	}

	spec := newSpec("Timeline of confirmed cases", values)
	spec.Height = 300
	spec.Encoding = &Encoding{
		X:     ptr(field("date", "temporal", "Date")),
		Y:     ptr(field("confirmed", "quantitative", "Confirmed cases")),
		Color: &Channel{Field: "country", Type: "nominal", Legend: hidden},
	}

	points := Spec{
		Mark: &Mark{Type: "circle"},
		Encoding: &Encoding{
			Opacity: &Channel{Value: 0},
			Tooltip: []Channel{
				field("country", "nominal", "Country"),
				field("date", "temporal", "Date"),
				field("confirmed", "quantitative", "Confirmed cases"),
			},
		},
		Params: []Param{{
			Name:   "highlight",
			Select: &Selection{Type: "point", On: "mouseover", Fields: []string{"country"}, Nearest: true},
		}},
	}
	empty := false
	lines := Spec{
		Mark: &Mark{Type: "line"},
		Encoding: &Encoding{
			Size: &Channel{Value: 1, Condition: &Condition{Param: "highlight", Value: 3, Empty: &empty}},
		},
	}
	spec.Layer = []Spec{points, lines}
	return spec
}

// Heatmap colors each (country, date) cell by its normalized new cases. Rows
// keep the heatmap's order. Rows without variation are faded and flagged in
// the tooltip.
func Heatmap(h domain.Heatmap) Spec {
	order := make([]string, len(h.Rows))
	for i, r := range h.Rows {
		order[i] = r.Country
	}

	spec := newSpec("New confirmed cases, normalized per country", h.Cells())
	spec.Mark = &Mark{Type: "rect"}
	x := field("date", "temporal", "Date")
	x.TimeUnit = "yearmonthdate"
	y := field("country", "nominal", "")
	y.Sort = order
	spec.Encoding = &Encoding{
		X: &x,
		Y: &y,
		Color: &Channel{
			Field:  "norm_confirmed",
			Type:   "quantitative",
			Legend: hidden,
			Scale:  &Scale{Scheme: "yelloworangered", Domain: []float64{0, 1}},
		},
		Opacity: &Channel{Value: 1, Condition: &Condition{Test: "datum.flat", Value: flatOpacity}},
		Tooltip: []Channel{
			field("country", "nominal", "Country"),
			{Field: "date", Type: "temporal", Title: title("Date"), Format: "%Y-%m-%d"},
			field("delta_confirmed", "quantitative", "New cases"),
			{Field: "norm_confirmed", Type: "quantitative", Title: title("Normalized"), Format: ".2f"},
			field("flat", "nominal", "No variation"),
		},
	}
	return spec
}

// Country layers daily new cases as bars under the cumulative curve, each on
// its own y axis.
func Country(country string, deltas []domain.DeltaPoint) Spec {
	if deltas == nil {
		deltas = []domain.DeltaPoint{}
	}
	spec := newSpec(country, deltas)
	spec.Height = 300
	spec.Encoding = &Encoding{
		X: ptr(field("date", "temporal", "Date")),
	}

	bars := Spec{
		Mark: &Mark{Type: "bar", Opacity: 0.5, Tooltip: true},
		Encoding: &Encoding{
			Y: ptr(field("delta_confirmed", "quantitative", "New cases")),
		},
	}
	line := Spec{
		Mark: &Mark{Type: "line", Stroke: "firebrick", Tooltip: true},
		Encoding: &Encoding{
			Y: ptr(field("confirmed", "quantitative", "Confirmed cases")),
		},
	}
	spec.Layer = []Spec{bars, line}
	spec.Resolve = &Resolve{Scale: map[string]string{"y": "independent"}}
	return spec
}

func mostAffectedTitle(n int) string {
	if n == 1 {
		return "Most affected nation"
	}
	return strconv.Itoa(n) + " most affected nations"
}

func ptr[T any](v T) *T { return &v }
