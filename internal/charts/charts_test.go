package charts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
)

func TestResolveGrouping(t *testing.T) {
	cases := []struct {
		months    int
		requested string
		selected  string
		switched  bool
	}{
		{1, "month", "day", true},
		{1, "week", "day", true},
		{1, "day", "day", false},
		{3, "week", "week", false},
		{3, "month", "day", true},
		{6, "day", "week", true},
		{6, "month", "month", false},
		{12, "day", "month", true},
		{12, "week", "week", false},
		{2, "week", "week", false},
		{2, "hour", "day", true},
	}
	for _, c := range cases {
		g := ResolveGrouping(c.months, c.requested)
		if g.Selected != c.selected || g.Switched() != c.switched {
			t.Fatalf("ResolveGrouping(%d,%q) selected=%s switched=%v", c.months, c.requested, g.Selected, g.Switched())
		}
	}

	g := ResolveGrouping(1, "month")
	if g.Message != "Para 1 mes se recomienda agrupación diaria" {
		t.Fatalf("message=%q", g.Message)
	}
	if strings.Join(g.Disabled, ",") != "week,month" {
		t.Fatalf("disabled=%v", g.Disabled)
	}
	if g := ResolveGrouping(12, "month"); g.Optimal != "month" || g.Recommended != "month" || g.Message != "" {
		t.Fatalf("12 months=%+v", g)
	}
}

func TestNumber_Tolerant(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		T Text   `json:"t"`
	}
	if err := json.Unmarshal([]byte(`{"a":"-85.5","b":null,"c":12,"t":3}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != -85.5 || v.B != 0 || v.C != 12 || v.T != "3" {
		t.Fatalf("got %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":"abc"}`), &v); err == nil {
		t.Fatalf("non-numeric string must fail")
	}
}

const signalPayload = `{
	"signal_type": "4G",
	"data": [
		{"provincia":"Soria","operator_name":"Movistar","avg_signal_strength":-85,"quality_level":"Buena","measurement_count":40,"reliability":"alta"},
		{"provincia":"Sin provincia","operator_name":"Orange","avg_signal_strength":-99},
		{"provincia":"","operator_name":"Orange","avg_signal_strength":-99},
		{"provincia":"Soria","operator_name":"Acme","avg_signal_strength":-101,"measurement_count":"3"},
		{"provincia":"León","operator_name":"Orange","avg_signal_strength":-90}
	],
	"data_summary": {"total_measurements": 120, "avg_signal_strength": -92.1, "operators_covered": 3}
}`

func TestBuildSignalChart(t *testing.T) {
	d, err := ParseSignal([]byte(signalPayload))
	if err != nil {
		t.Fatal(err)
	}
	dash, err := BuildSignalChart(d, Viewport{Width: 1280})
	if err != nil {
		t.Fatalf("BuildSignalChart: %v", err)
	}
	if len(dash.Charts) != 2 {
		t.Fatalf("charts=%d want 2", len(dash.Charts))
	}
	soria := dash.Charts[0]
	if soria.ID != "chart-soria" || soria.Title != "4G - Soria" || soria.Type != "bar" {
		t.Fatalf("chart=%+v", soria)
	}
	if strings.Join(soria.Labels, ",") != "Movistar,Acme" {
		t.Fatalf("labels=%v", soria.Labels)
	}
	ds := soria.Datasets[0]
	if ds.BackgroundColor[0] != "#0099ff" || ds.BackgroundColor[1] != "#95a5a6" || ds.BorderColor[0] != "#0099ffDD" {
		t.Fatalf("colors=%v %v", ds.BackgroundColor, ds.BorderColor)
	}
	if *soria.Y.Min != -106 || *soria.Y.Max != -80 {
		t.Fatalf("y range=%v..%v", *soria.Y.Min, *soria.Y.Max)
	}
	tip := soria.Tooltips[0]
	if tip.Title != "Movistar" || tip.Lines[0] != "Intensidad: -85 dBm" || tip.Lines[1] != "Calidad: Buena" || tip.Lines[2] != "Mediciones: 40" {
		t.Fatalf("tooltip=%+v", tip)
	}
	if dash.Summary[2].Value != "2" || dash.Summary[1].Value != "-92.1 dBm" {
		t.Fatalf("summary=%+v", dash.Summary)
	}

	mob, _ := BuildSignalChart(d, Viewport{Width: 375})
	if strings.Join(mob.Charts[0].Labels, ",") != "MOV,Acme" {
		t.Fatalf("mobile labels=%v", mob.Charts[0].Labels)
	}
}

func TestBuildSignalChart_AbbreviatesCrowdedProvince(t *testing.T) {
	ops := []string{"Vodafone", "Orange", "Yoigo", "O2", "Pepephone", "Digi", "Lowi"}
	d := SignalData{SignalType: "5G"}
	for i, op := range ops {
		d.Data = append(d.Data, SignalRecord{Province: "Ávila", Operator: op, AvgSignal: Number(-80 - i)})
	}
	dash, err := BuildSignalChart(d, Viewport{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(dash.Charts[0].Labels, ","); got != "VOD,ORG,YOI,O2,PEPE,DIGI,LOWI" {
		t.Fatalf("labels=%s", got)
	}
}

func TestBuildCharts_EmptyAfterFiltering(t *testing.T) {
	d := SignalData{Data: []SignalRecord{{Province: "SIN PROVINCIA"}, {Province: " "}}}
	_, err := BuildSignalChart(d, Viewport{})
	var empty *EmptyDataError
	if !errors.As(err, &empty) || !errors.Is(err, apperr.ErrEmptyResult) {
		t.Fatalf("err=%v want EmptyDataError", err)
	}

	p := PollutionData{Data: []PollutionRecord{{Province: "Sin provincia", Date: "2025-01-01"}}}
	if _, err := BuildPollutionChart(p, PollutionOptions{MonthsBack: 3}); !errors.As(err, &empty) {
		t.Fatalf("pollution err=%v", err)
	}
}

func pollution(provinces int, dates ...string) PollutionData {
	d := PollutionData{Summary: PollutionSummary{
		TotalMeasurements: 10,
		AvgConcentration:  12.5,
		PollutantUnit:     "µg/m³",
		DateRange:         DateRange{From: "2025-03-01", To: "2025-05-31T00:00:00Z"},
	}}
	for i := range provinces {
		for _, day := range dates {
			d.Data = append(d.Data, PollutionRecord{Province: fmt.Sprintf("Provincia %d", i), Date: day, AvgConcentration: Number(i + 1)})
		}
	}
	return d
}

func TestBuildPollutionChart_LineSeries(t *testing.T) {
	d := pollution(2, "2025-03-01", "2025-03-02")
	dash, err := BuildPollutionChart(d, PollutionOptions{MonthsBack: 1, GroupBy: "month", PollutantName: "Partículas PM 2.5"})
	if err != nil {
		t.Fatalf("BuildPollutionChart: %v", err)
	}
	if dash.Grouping.Selected != "day" {
		t.Fatalf("grouping=%+v", dash.Grouping)
	}
	c := dash.Chart
	if c.Title != "Partículas PM 2.5 - Evolución Temporal" || c.Type != "line" || len(c.Datasets) != 2 {
		t.Fatalf("chart=%+v", c)
	}
	if c.X.Time.Unit != "day" || c.X.Time.StepSize != 2 || c.X.Title != "Fecha" {
		t.Fatalf("x=%+v %+v", c.X, c.X.Time)
	}
	ds := c.Datasets[1]
	if !ds.ShowLine || ds.PointRadius != 4 || ds.Color != "#27ae60" || ds.BackgroundColor[0] != "#27ae6020" {
		t.Fatalf("dataset=%+v", ds)
	}
	if c.Y.Title != "Concentración (µg/m³)" || !c.Y.BeginAtZero {
		t.Fatalf("y=%+v", c.Y)
	}
	if c.Legend.Position != "top" || !c.Legend.Display {
		t.Fatalf("legend=%+v", c.Legend)
	}
	if dash.Summary[3].Value != "1/3/2025 - 31/5/2025" {
		t.Fatalf("period=%q", dash.Summary[3].Value)
	}
}

func TestBuildPollutionChart_SingleDate(t *testing.T) {
	d := pollution(2, "2025-03-01T08:00:00Z", "2025-03-01T20:00:00Z")
	dash, err := BuildPollutionChart(d, PollutionOptions{MonthsBack: 3, GroupBy: "day"})
	if err != nil {
		t.Fatal(err)
	}
	ds := dash.Chart.Datasets[0]
	if ds.ShowLine || ds.PointRadius != 8 || ds.BorderWidth != 0 {
		t.Fatalf("single-date dataset=%+v", ds)
	}
	if dash.Chart.X.Title != "Hora" || dash.Chart.X.Time.DisplayFormats["hour"] != "HH:mm" {
		t.Fatalf("x=%+v", dash.Chart.X)
	}
}

func TestPollutionLegendPlacement(t *testing.T) {
	cases := []struct {
		provinces int
		width     int
		display   bool
		position  string
		external  int
	}{
		{3, 1280, true, "top", 0},
		{5, 1280, true, "right", 0},
		{5, 375, true, "top", 0},
		{9, 1280, false, "", 9},
	}
	for _, c := range cases {
		dash, err := BuildPollutionChart(pollution(c.provinces, "2025-03-01", "2025-03-08"), PollutionOptions{MonthsBack: 3, GroupBy: "week", Viewport: Viewport{Width: c.width}})
		if err != nil {
			t.Fatal(err)
		}
		l := dash.Chart.Legend
		if l.Display != c.display || l.Position != c.position || len(l.External) != c.external {
			t.Fatalf("%d provinces @%d: legend=%+v", c.provinces, c.width, l)
		}
	}

	dash, _ := BuildPollutionChart(pollution(5, "2025-03-01", "2025-03-08"), PollutionOptions{MonthsBack: 3, Viewport: Viewport{Width: 1280}})
	if dash.Chart.Padding.Right != 120 {
		t.Fatalf("side legend padding=%+v", dash.Chart.Padding)
	}
	dash, _ = BuildPollutionChart(pollution(5, "2025-03-01", "2025-03-08"), PollutionOptions{MonthsBack: 3, Viewport: Viewport{Width: 375}})
	if dash.Chart.Legend.Labels[0] != "Provinci..." {
		t.Fatalf("mobile labels=%v", dash.Chart.Legend.Labels)
	}
	dash, _ = BuildPollutionChart(pollution(8, "2025-03-01", "2025-03-08"), PollutionOptions{MonthsBack: 3, Viewport: Viewport{Width: 375}})
	if dash.Chart.Legend.External[0].Short != "Provin..." || !dash.Chart.PositiveTooltipsOnly {
		t.Fatalf("external=%+v", dash.Chart.Legend.External[0])
	}
	if dash.Chart.Padding.Top == nil || *dash.Chart.Padding.Top != 0 || dash.Chart.Padding.Bottom != 50 {
		t.Fatalf("external padding=%+v", dash.Chart.Padding)
	}
}
