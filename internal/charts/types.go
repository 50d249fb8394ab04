// Package charts turns the dashboard statistics returned by the data engine
// into chart specifications the browser renders without further logic.
package charts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
)

// Number decodes JSON numbers, numeric strings and null (as zero).
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }

// Text decodes strings and numbers alike.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

type SignalRecord struct {
	Province     string `json:"provincia"`
	Operator     string `json:"operator_name"`
	AvgSignal    Number `json:"avg_signal_strength"`
	Quality      Text   `json:"quality_level"`
	Measurements Number `json:"measurement_count"`
	Reliability  Text   `json:"reliability"`
}

type SignalSummary struct {
	TotalMeasurements Number `json:"total_measurements"`
	AvgSignalStrength Number `json:"avg_signal_strength"`
	OperatorsCovered  Number `json:"operators_covered"`
}

// SignalData is the get_signal_stats_charts payload.
type SignalData struct {
	SignalType string         `json:"signal_type"`
	Data       []SignalRecord `json:"data"`
	Summary    SignalSummary  `json:"data_summary"`
}

type PollutionRecord struct {
	Province         string `json:"provincia"`
	Date             string `json:"fecha"`
	AvgConcentration Number `json:"avg_concentration"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PollutionSummary struct {
	TotalMeasurements Number    `json:"total_measurements"`
	AvgConcentration  Number    `json:"avg_concentration"`
	PollutantUnit     string    `json:"pollutant_unit"`
	DateRange         DateRange `json:"date_range"`
}

// PollutionData is the get_pollution_temporal_charts payload.
type PollutionData struct {
	PollutantCode string            `json:"pollutant_code,omitempty"`
	Data          []PollutionRecord `json:"data"`
	Summary       PollutionSummary  `json:"data_summary"`
}

// Viewport describes the client; widths up to MobileWidth are mobile.
type Viewport struct {
	Width int `json:"width"`
}

const MobileWidth = 768

func (v Viewport) Mobile() bool { return v.Width > 0 && v.Width <= MobileWidth }

type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type Dataset struct {
	Label            string    `json:"label"`
	Values           []float64 `json:"values,omitempty"`
	Points           []Point   `json:"points,omitempty"`
	BackgroundColor  []string  `json:"background_color,omitempty"`
	BorderColor      []string  `json:"border_color,omitempty"`
	Color            string    `json:"color,omitempty"`
	BorderWidth      int       `json:"border_width"`
	BorderRadius     int       `json:"border_radius,omitempty"`
	Tension          float64   `json:"tension"`
	PointRadius      int       `json:"point_radius,omitempty"`
	PointHoverRadius int       `json:"point_hover_radius,omitempty"`
	ShowLine         bool      `json:"show_line"`
}

type TimeScale struct {
	Unit           string            `json:"unit"`
	Round          string            `json:"round"`
	StepSize       int               `json:"step_size"`
	DisplayFormats map[string]string `json:"display_formats"`
}

type Axis struct {
	Type        string     `json:"type,omitempty"`
	Title       string     `json:"title"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	BeginAtZero bool       `json:"begin_at_zero"`
	Time        *TimeScale `json:"time,omitempty"`
}

type LegendItem struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Short string `json:"short"`
	Color string `json:"color"`
}

// LegendSpec places the chart legend. When Display is false and External is
// set, the client renders External as a click-to-toggle list.
type LegendSpec struct {
	Display  bool         `json:"display"`
	Position string       `json:"position,omitempty"`
	BoxWidth int          `json:"box_width,omitempty"`
	Padding  int          `json:"padding,omitempty"`
	FontSize int          `json:"font_size,omitempty"`
	Labels   []string     `json:"labels,omitempty"`
	External []LegendItem `json:"external,omitempty"`
}

type Padding struct {
	Top    *int `json:"top,omitempty"`
	Right  int  `json:"right,omitempty"`
	Bottom int  `json:"bottom"`
}

type Tooltip struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

type ChartSpec struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	Labels   []string   `json:"labels,omitempty"`
	Datasets []Dataset  `json:"datasets"`
	Legend   LegendSpec `json:"legend"`
	X        Axis       `json:"x"`
	Y        Axis       `json:"y"`
	Padding  Padding    `json:"padding"`
	Tooltips []Tooltip  `json:"tooltips,omitempty"`
	// PositiveTooltipsOnly hides zero readings in crowded mobile charts.
	PositiveTooltipsOnly bool `json:"positive_tooltips_only,omitempty"`
}

type SummaryCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// EmptyDataError reports a payload with nothing left to chart after filtering.
type EmptyDataError struct {
	Kind string
}

func (e *EmptyDataError) Error() string {
	return "No hay datos disponibles para mostrar (solo se encontraron datos sin provincia)"
}

func (e *EmptyDataError) Unwrap() error { return apperr.ErrEmptyResult }

// excluded reports records without a usable province.
func excluded(province string) bool {
	p := strings.TrimSpace(province)
	return p == "" || strings.EqualFold(p, "sin provincia")
}

// groupByProvince keeps first-appearance order of provinces.
func groupByProvince[T any](records []T, province func(T) string) ([]string, map[string][]T) {
	var order []string
	groups := make(map[string][]T)
	for _, r := range records {
		p := province(r)
		if excluded(p) {
			continue
		}
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], r)
	}
	return order, groups
}

func intPtr(v int) *int { return &v }

func truncate(s string, limit, keep int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:keep]) + "..."
}
