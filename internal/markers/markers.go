// Package markers turns stored-function FeatureCollections into coloured map
// markers and groups them into H3 clusters.
package markers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/mapper"
)

type Type string

const (
	TypeIntensity     Type = "intensidad"
	TypeConcentration Type = "concentracion"
)

// Label is the display form used in popups.
func (t Type) Label() string {
	if t == TypeConcentration {
		return "Concentración"
	}
	return "Intensidad"
}

// CellRes is the resolution of Marker.Cell; clusters use coarser parents.
const CellRes = 12

const (
	valueKey   = "measurement_avg"
	signalUnit = "dBm"
)

type Marker struct {
	Position orb.Point      `json:"position"` // lon, lat
	Value    *float64       `json:"value"`
	Color    colorscale.RGB `json:"-"`
	Type     Type           `json:"type"`
	Layer    string         `json:"layer"`
	Unit     string         `json:"unit"`
	Popup    string         `json:"popup"`
	Cell     string         `json:"cell,omitempty"`
	Count    int            `json:"measurement_count,omitempty"`
	Props    map[string]any `json:"-"`
}

func (m Marker) Lat() float64 { return m.Position[1] }
func (m Marker) Lng() float64 { return m.Position[0] }

type Result struct {
	Markers       []Marker `json:"markers"`
	IsEmpty       bool     `json:"is_empty"`
	Message       string   `json:"message,omitempty"`
	TotalFeatures int      `json:"total_features"`
	ValidFeatures int      `json:"valid_features"`
}

// Partial reports whether some features were dropped for lacking a location.
func (r Result) Partial() bool { return !r.IsEmpty && r.ValidFeatures < r.TotalFeatures }

type Mapper struct {
	reg   *colorscale.Registry
	cells mapper.Interface
}

// New builds a mapper. cells may be nil, in which case markers carry no H3 cell.
func New(reg *colorscale.Registry, cells mapper.Interface) *Mapper {
	return &Mapper{reg: reg, cells: cells}
}

type rawFeature struct {
	Geometry *struct {
		Coordinates []json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func emptyResult(msg string) Result {
	return Result{Markers: []Marker{}, IsEmpty: true, Message: msg}
}

// Map converts a FeatureCollection into markers for the layer labelled layerLabel.
func (m *Mapper) Map(data []byte, layerLabel string) Result {
	var doc map[string]json.RawMessage
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &doc) != nil || isNull(doc["features"]) {
		observability.IncEmptyResult("no_data")
		return emptyResult("no valid data received")
	}

	var features []json.RawMessage
	if err := json.Unmarshal(doc["features"], &features); err != nil || len(features) == 0 {
		observability.IncEmptyResult("no_features")
		return emptyResult(fmt.Sprintf("no data available for %s", layerLabel))
	}

	typ := TypeIntensity
	kind := colorscale.KindSignal
	unit := signalUnit
	if m.reg.IsPollutant(layerLabel) {
		typ = TypeConcentration
		kind = layerLabel
		if s, ok := m.reg.Scale(layerLabel); ok && s.Unit != "" {
			unit = s.Unit
		}
	}

	out := make([]Marker, 0, len(features))
	for _, raw := range features {
		var f rawFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		pos, ok := position(f)
		if !ok {
			continue
		}
		mk := Marker{
			Position: pos,
			Type:     typ,
			Layer:    layerLabel,
			Props:    f.Properties,
		}
		mk.Unit = stringProp(f.Properties, "pollutant_unit")
		if mk.Unit == "" {
			mk.Unit = unit
		}
		if v, ok := Measurement(f.Properties); ok {
			mk.Value = &v
		}
		mk.Color = m.reg.ColorFor(valueOrNaN(mk.Value), kind)
		if n, ok := toFloat(f.Properties["measurement_count"]); ok {
			mk.Count = int(n)
		}
		if m.cells != nil {
			if cell, err := m.cells.CellForPoint(pos[1], pos[0], CellRes); err == nil {
				mk.Cell = cell
			}
		}
		mk.Popup = popup(mk, f.Properties)
		out = append(out, mk)
	}

	observability.AddFeatures(len(features), len(out))
	if len(out) == 0 {
		observability.IncEmptyResult("no_locations")
		r := emptyResult(fmt.Sprintf("%s contains no valid locations", layerLabel))
		r.TotalFeatures = len(features)
		return r
	}
	return Result{
		Markers:       out,
		TotalFeatures: len(features),
		ValidFeatures: len(out),
	}
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func position(f rawFeature) (orb.Point, bool) {
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return orb.Point{}, false
	}
	var lng, lat float64
	if json.Unmarshal(f.Geometry.Coordinates[0], &lng) != nil || json.Unmarshal(f.Geometry.Coordinates[1], &lat) != nil {
		return orb.Point{}, false
	}
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return orb.Point{}, false
	}
	return orb.Point{lng, lat}, true
}

// Measurement returns measurement_avg when present, otherwise the first property
// (in key order) whose name contains "avg".
func Measurement(props map[string]any) (float64, bool) {
	if v, ok := props[valueKey]; ok {
		return toFloat(v)
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		if strings.Contains(k, "avg") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, false
	}
	sort.Strings(keys)
	return toFloat(props[keys[0]])
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "sin dato"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func popup(mk Marker, props map[string]any) string {
	name := stringProp(props, "operator_name")
	if name == "" {
		name = stringProp(props, "pollutant_name")
	}
	if name == "" {
		name = "Desconocido"
	}
	age := stringProp(props, "data_age_days")
	if age == "" {
		age = "-"
	}
	count := stringProp(props, "measurement_count")
	if count == "" {
		count = "-"
	}
	coords := strconv.FormatFloat(mk.Lng(), 'f', -1, 64) + "," + strconv.FormatFloat(mk.Lat(), 'f', -1, 64)

	var b strings.Builder
	b.WriteString("<strong>Capa:</strong> ")
	b.WriteString(html.EscapeString(name))
	b.WriteString("<br><strong>")
	b.WriteString(mk.Type.Label())
	b.WriteString(":</strong> ")
	b.WriteString(html.EscapeString(formatValue(mk.Value)))
	b.WriteString(" ")
	b.WriteString(html.EscapeString(mk.Unit))
	b.WriteString("<br><strong>Días desde la medición:</strong> ")
	b.WriteString(html.EscapeString(age))
	b.WriteString("<br><strong>Longitud y Latitud:</strong> ")
	b.WriteString(coords)
	b.WriteString("<br><strong>Nº de medidas agrupadas:</strong> ")
	b.WriteString(html.EscapeString(count))
	return b.String()
}
