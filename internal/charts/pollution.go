package charts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var lineColors = []string{"#3498db", "#27ae60", "#e67e22", "#e74c3c", "#9b59b6", "#f1c40f", "#34495e", "#95a5a6", "#e91e63"}

// Legend placement thresholds by province count.
const (
	legendTopMax  = 3
	legendSideMax = 6
)

type PollutionOptions struct {
	MonthsBack    int      `json:"months_back"`
	GroupBy       string   `json:"group_by"`
	PollutantName string   `json:"pollutant_name"`
	Viewport      Viewport `json:"viewport"`
}

type PollutionDashboard struct {
	Summary  []SummaryCard `json:"summary"`
	Grouping Grouping      `json:"grouping"`
	Chart    ChartSpec     `json:"chart"`
}

// ParsePollution decodes a get_pollution_temporal_charts payload.
func ParsePollution(raw []byte) (PollutionData, error) {
	var d PollutionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return PollutionData{}, fmt.Errorf("decode pollution charts: %w", err)
	}
	return d, nil
}

// BuildPollutionChart builds one line chart with a dataset per province.
func BuildPollutionChart(d PollutionData, opt PollutionOptions) (PollutionDashboard, error) {
	order, groups := groupByProvince(d.Data, func(r PollutionRecord) string { return r.Province })
	mobile := opt.Viewport.Mobile()
	unit := d.Summary.PollutantUnit

	grouping := ResolveGrouping(opt.MonthsBack, opt.GroupBy)
	dash := PollutionDashboard{
		Grouping: grouping,
		Summary: []SummaryCard{
			{Label: "Mediciones", Value: d.Summary.TotalMeasurements.String()},
			{Label: "Concentración Media", Value: strings.TrimSpace(d.Summary.AvgConcentration.String() + " " + unit)},
			{Label: "Provincias", Value: fmt.Sprint(len(order))},
			{Label: "Período", Value: esDate(d.Summary.DateRange.From) + " - " + esDate(d.Summary.DateRange.To)},
		},
	}
	if len(order) == 0 {
		return dash, &EmptyDataError{Kind: "pollution"}
	}

	days := make(map[string]struct{})
	for _, p := range order {
		for _, r := range groups[p] {
			days[dayOf(r.Date)] = struct{}{}
		}
	}
	single := len(days) == 1
	groupBy := grouping.Selected

	datasets := make([]Dataset, len(order))
	for i, p := range order {
		color := lineColors[i%len(lineColors)]
		rows := groups[p]
		pts := make([]Point, len(rows))
		for j, r := range rows {
			pts[j] = Point{X: r.Date, Y: float64(r.AvgConcentration)}
		}
		ds := Dataset{
			Label:           p,
			Points:          pts,
			Color:           color,
			BackgroundColor: []string{color + "20"},
		}
		switch {
		case single:
			ds.BorderWidth, ds.Tension, ds.PointRadius, ds.PointHoverRadius, ds.ShowLine = 0, 0, 8, 10, false
		case groupBy == GroupMonth:
			ds.BorderWidth, ds.Tension, ds.PointRadius, ds.PointHoverRadius, ds.ShowLine = 3, 0.4, 6, 8, true
		default:
			ds.BorderWidth, ds.Tension, ds.PointRadius, ds.PointHoverRadius, ds.ShowLine = 3, 0.4, 4, 6, true
		}
		datasets[i] = ds
	}

	legend, padding := placeLegend(datasets, mobile)

	ts := timeScale(opt.MonthsBack, groupBy, mobile)
	xTitle := "Fecha"
	if single {
		ts.DisplayFormats = map[string]string{"hour": "HH:mm"}
		xTitle = "Hora"
	}

	name := opt.PollutantName
	if name == "" {
		name = d.PollutantCode
	}
	dash.Chart = ChartSpec{
		ID:       "pollution-chart",
		Type:     "line",
		Title:    name + " - Evolución Temporal",
		Datasets: datasets,
		Legend:   legend,
		X:        Axis{Type: "time", Title: xTitle, Time: &ts},
		Y:        Axis{Title: "Concentración (" + unit + ")", BeginAtZero: true},
		Padding:  padding,

		PositiveTooltipsOnly: mobile && len(order) > legendSideMax,
	}
	return dash, nil
}

func placeLegend(ds []Dataset, mobile bool) (LegendSpec, Padding) {
	pick := func(m, d int) int {
		if mobile {
			return m
		}
		return d
	}
	n := len(ds)
	pad := Padding{Bottom: pick(15, 25)}

	switch {
	case n <= legendTopMax:
		return LegendSpec{
			Display:  true,
			Position: "top",
			BoxWidth: pick(10, 15),
			Padding:  pick(12, 15),
			FontSize: pick(12, 14),
			Labels:   labelsOf(ds, 0, 0),
		}, pad
	case n <= legendSideMax:
		l := LegendSpec{
			Display:  true,
			Position: "right",
			BoxWidth: pick(8, 12),
			Padding:  pick(8, 10),
			FontSize: pick(10, 12),
			Labels:   labelsOf(ds, 0, 0),
		}
		if mobile {
			l.Position = "top"
			l.Labels = labelsOf(ds, 10, 8)
		} else {
			pad.Right = 120
		}
		return l, pad
	default:
		items := make([]LegendItem, n)
		for i, d := range ds {
			short := d.Label
			if mobile {
				short = truncate(d.Label, 8, 6)
			}
			items[i] = LegendItem{Index: i, Label: d.Label, Short: short, Color: d.Color}
		}
		pad.Top = intPtr(0)
		pad.Bottom = 50
		return LegendSpec{Display: false, External: items}, pad
	}
}

func labelsOf(ds []Dataset, limit, keep int) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Label
		if limit > 0 {
			out[i] = truncate(d.Label, limit, keep)
		}
	}
	return out
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dayOf(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

// esDate renders a date the way es-ES locales do (d/m/yyyy).
func esDate(s string) string {
	t, ok := parseDate(s)
	if !ok {
		return s
	}
	return t.Format("2/1/2006")
}
