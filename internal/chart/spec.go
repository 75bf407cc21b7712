// Package chart builds Vega-Lite specifications with the data inlined, ready
// for vega-embed in the browser.
package chart

import "encoding/json"

const schemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// hidden marshals as JSON null, which Vega-Lite reads as "disable".
var hidden = json.RawMessage("null")

// Spec is a single or layered Vega-Lite view.
type Spec struct {
	Schema      string      `json:"$schema,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Width       any         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Data        *Data       `json:"data,omitempty"`
	Mark        *Mark       `json:"mark,omitempty"`
	Encoding    *Encoding   `json:"encoding,omitempty"`
	Params      []Param     `json:"params,omitempty"`
	Transform   []Transform `json:"transform,omitempty"`
	Projection  *Projection `json:"projection,omitempty"`
	Layer       []Spec      `json:"layer,omitempty"`
	Resolve     *Resolve    `json:"resolve,omitempty"`
	Config      *Config     `json:"config,omitempty"`
}

// Data is either inline Values or a URL with a Format.
type Data struct {
	URL    string      `json:"url,omitempty"`
	Format *DataFormat `json:"format,omitempty"`
	Values any         `json:"values,omitempty"`
}

type DataFormat struct {
	Type    string `json:"type"`
	Feature string `json:"feature,omitempty"`
}

// Transform holds the lookup transform, the only one the charts use.
type Transform struct {
	Lookup string      `json:"lookup"`
	From   *LookupData `json:"from"`
}

type LookupData struct {
	Data   Data     `json:"data"`
	Key    string   `json:"key"`
	Fields []string `json:"fields,omitempty"`
}

type Projection struct {
	Type string `json:"type"`
}

type Mark struct {
	Type        string  `json:"type"`
	Fill        string  `json:"fill,omitempty"`
	Tooltip     bool    `json:"tooltip,omitempty"`
	Point       bool    `json:"point,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
}

type Encoding struct {
	X       *Channel  `json:"x,omitempty"`
	Y       *Channel  `json:"y,omitempty"`
	Color   *Channel  `json:"color,omitempty"`
	Size    *Channel  `json:"size,omitempty"`
	Opacity *Channel  `json:"opacity,omitempty"`
	Tooltip []Channel `json:"tooltip,omitempty"`
}

// Channel is one encoding channel. Title is a pointer so an empty title can
// be emitted explicitly.
type Channel struct {
	Field     string     `json:"field,omitempty"`
	Type      string     `json:"type,omitempty"`
	Title     *string    `json:"title,omitempty"`
	TimeUnit  string     `json:"timeUnit,omitempty"`
	Aggregate string     `json:"aggregate,omitempty"`
	Format    string     `json:"format,omitempty"`
	Sort      any        `json:"sort,omitempty"`
	Scale     *Scale     `json:"scale,omitempty"`
	Legend    any        `json:"legend,omitempty"`
	Stack     any        `json:"stack,omitempty"`
	Value     any        `json:"value,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

type Scale struct {
	Scheme string    `json:"scheme,omitempty"`
	Domain []float64 `json:"domain,omitempty"`
	Type   string    `json:"type,omitempty"`
}

// Condition switches a channel's value on a selection param or a test
// expression.
type Condition struct {
	Param string `json:"param,omitempty"`
	Test  string `json:"test,omitempty"`
	Value any    `json:"value"`
	Empty *bool  `json:"empty,omitempty"`
}

type Param struct {
	Name   string     `json:"name"`
	Select *Selection `json:"select,omitempty"`
	Bind   string     `json:"bind,omitempty"`
}

type Selection struct {
	Type      string   `json:"type"`
	On        string   `json:"on,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Nearest   bool     `json:"nearest,omitempty"`
	Encodings []string `json:"encodings,omitempty"`
}

type Resolve struct {
	Scale map[string]string `json:"scale,omitempty"`
}

type Config struct {
	Legend *LegendConfig `json:"legend,omitempty"`
	View   *ViewConfig   `json:"view,omitempty"`
}

type LegendConfig struct {
	Orient string `json:"orient,omitempty"`
}

type ViewConfig struct {
	StrokeWidth float64 `json:"strokeWidth"`
}

func title(s string) *string { return &s }

func field(name, typ, label string) Channel {
	return Channel{Field: name, Type: typ, Title: title(label)}
}

func newSpec(t string, values any) Spec {
	return Spec{
		Schema: schemaURL,
		Title:  t,
		Width:  "container",
		Data:   &Data{Values: values},
	}
}
