package chart

import (
	"slices"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// worldAtlasURL is the world-110m TopoJSON from vega-datasets. Its country
// shapes are keyed by ISO 3166-1 numeric code.
const worldAtlasURL = "https://cdn.jsdelivr.net/npm/vega-datasets@2/data/world-110m.json"

// Map columns, named after the CountrySummary JSON fields they read.
const (
	MapCasesPer100k  = "sick_pr_100k"
	MapDeathsPer100k = "deaths_pr_100k"
	MapConfirmed     = "confirmed"
	MapDeaths        = "deaths"
)

// MapColumns lists the selectable map columns; the first is the default.
var MapColumns = []string{MapCasesPer100k, MapDeathsPer100k, MapConfirmed, MapDeaths}

var mapColumnTitles = map[string]string{
	MapCasesPer100k:  "Cases pr. 100.000",
	MapDeathsPer100k: "Deaths pr. 100.000",
	MapConfirmed:     "Confirmed cases",
	MapDeaths:        "Deaths",
}

// ValidMapColumn reports whether column can be drawn by Map.
func ValidMapColumn(column string) bool {
	return slices.Contains(MapColumns, column)
}

// Map is a choropleth of one summary column over the world atlas. Countries
// without a numeric code or without a value for the column stay grey. When
// country is set the map is that country's own view and has no tooltip.
func Map(summaries []domain.CountrySummary, column, country string) Spec {
	rows := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		if s.ID == 0 {
			continue
		}
		row := map[string]any{"id": s.ID, "country": s.Country}
		if v, ok := mapValue(s, column); ok {
			row[column] = v
		}
		rows = append(rows, row)
	}

	columnTitle := mapColumnTitles[column]
	spec := Spec{
		Schema:     schemaURL,
		Title:      columnTitle,
		Width:      "container",
		Height:     400,
		Data:       &Data{URL: worldAtlasURL, Format: &DataFormat{Type: "topojson", Feature: "countries"}},
		Projection: &Projection{Type: "naturalEarth1"},
		Config:     &Config{View: &ViewConfig{StrokeWidth: 0}},
	}
	if country != "" {
		spec.Title = country
	}

	background := Spec{Mark: &Mark{Type: "geoshape", Fill: "lightgray"}}
	foreground := Spec{
		Mark: &Mark{Type: "geoshape", Stroke: "black", StrokeWidth: 0.15},
		Transform: []Transform{{
			Lookup: "id",
			From:   &LookupData{Data: Data{Values: rows}, Key: "id", Fields: []string{column, "country"}},
		}},
		Encoding: &Encoding{
			Color: &Channel{
				Field:  column,
				Type:   "quantitative",
				Legend: hidden,
				Scale:  &Scale{Scheme: "lightgreyred"},
			},
		},
	}
	if country == "" {
		foreground.Encoding.Tooltip = []Channel{
			field("country", "nominal", "Country"),
			{Field: column, Type: "quantitative", Title: title(columnTitle), Format: ",.1f"},
		}
	}
	spec.Layer = []Spec{background, foreground}
	return spec
}

// mapValue reads column from s. Per-100k figures are missing without a
// population.
func mapValue(s domain.CountrySummary, column string) (any, bool) {
	switch column {
	case MapConfirmed:
		return s.Confirmed, true
	case MapDeaths:
		return s.Deaths, true
	case MapCasesPer100k:
		return s.CasesPer100k, s.Population > 0
	case MapDeathsPer100k:
		return s.DeathsPer100k, s.Population > 0
	default:
		return nil, false
	}
}
