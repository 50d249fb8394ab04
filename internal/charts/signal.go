package charts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var operatorColors = map[string]string{
	"Vodafone":  "#e60000",
	"Orange":    "#ff6600",
	"Yoigo":     "#9d4edd",
	"O2":        "#0066cc",
	"Pepephone": "#ff3366",
	"Digi":      "#00cc66",
	"Lowi":      "#ffcc00",
	"Movistar":  "#0099ff",
	"Otro":      "#95a5a6",
}

var operatorAbbreviations = map[string]string{
	"Vodafone":  "VOD",
	"Orange":    "ORG",
	"Yoigo":     "YOI",
	"O2":        "O2",
	"Pepephone": "PEPE",
	"Digi":      "DIGI",
	"Lowi":      "LOWI",
	"Movistar":  "MOV",
	"Otro":      "OTRO",
}

// abbreviateAbove is the operator count from which bar labels are shortened.
const abbreviateAbove = 6

const signalAxisTitle = "Intensidad de Señal (dBm)"

func OperatorColor(name string) string {
	if c, ok := operatorColors[name]; ok {
		return c
	}
	return operatorColors["Otro"]
}

func OperatorAbbreviation(name string) string {
	if a, ok := operatorAbbreviations[name]; ok {
		return a
	}
	return name
}

type SignalDashboard struct {
	SignalType string        `json:"signal_type"`
	Summary    []SummaryCard `json:"summary"`
	Charts     []ChartSpec   `json:"charts"`
}

var spaces = regexp.MustCompile(`\s+`)

func chartID(province string) string {
	return "chart-" + strings.ToLower(spaces.ReplaceAllString(province, "-"))
}

// ParseSignal decodes a get_signal_stats_charts payload.
func ParseSignal(raw []byte) (SignalData, error) {
	var d SignalData
	if err := json.Unmarshal(raw, &d); err != nil {
		return SignalData{}, fmt.Errorf("decode signal charts: %w", err)
	}
	return d, nil
}

// BuildSignalChart builds one bar chart per province, one bar per operator.
func BuildSignalChart(d SignalData, vp Viewport) (SignalDashboard, error) {
	order, groups := groupByProvince(d.Data, func(r SignalRecord) string { return r.Province })
	mobile := vp.Mobile()

	dash := SignalDashboard{
		SignalType: d.SignalType,
		Summary: []SummaryCard{
			{Label: "Mediciones", Value: d.Summary.TotalMeasurements.String()},
			{Label: "Señal Promedio", Value: d.Summary.AvgSignalStrength.String() + " dBm"},
			{Label: "Provincias", Value: fmt.Sprint(len(order))},
			{Label: "Operadores", Value: d.Summary.OperatorsCovered.String()},
		},
	}
	if len(order) == 0 {
		return dash, &EmptyDataError{Kind: "signal"}
	}

	for _, province := range order {
		rows := groups[province]
		abbreviate := len(rows) > abbreviateAbove || mobile

		labels := make([]string, len(rows))
		values := make([]float64, len(rows))
		colors := make([]string, len(rows))
		borders := make([]string, len(rows))
		tips := make([]Tooltip, len(rows))
		lo, hi := float64(rows[0].AvgSignal), float64(rows[0].AvgSignal)
		for i, r := range rows {
			labels[i] = r.Operator
			if abbreviate {
				labels[i] = OperatorAbbreviation(r.Operator)
			}
			v := float64(r.AvgSignal)
			values[i] = v
			lo, hi = min(lo, v), max(hi, v)
			colors[i] = OperatorColor(r.Operator)
			borders[i] = colors[i] + "DD"
			tips[i] = Tooltip{
				Title: r.Operator,
				Lines: []string{
					"Intensidad: " + r.AvgSignal.String() + " dBm",
					"Calidad: " + string(r.Quality),
					"Mediciones: " + r.Measurements.String(),
					"Fiabilidad: " + string(r.Reliability),
				},
			}
		}
		yMin, yMax := lo-5, hi+5

		dash.Charts = append(dash.Charts, ChartSpec{
			ID:     chartID(province),
			Type:   "bar",
			Title:  d.SignalType + " - " + province,
			Labels: labels,
			Datasets: []Dataset{{
				Label:           signalAxisTitle,
				Values:          values,
				BackgroundColor: colors,
				BorderColor:     borders,
				BorderWidth:     2,
				BorderRadius:    8,
			}},
			Legend:   LegendSpec{Display: false},
			X:        Axis{Title: "Operadores"},
			Y:        Axis{Title: signalAxisTitle, Min: &yMin, Max: &yMax},
			Padding:  Padding{Bottom: 25},
			Tooltips: tips,
		})
	}
	return dash, nil
}
