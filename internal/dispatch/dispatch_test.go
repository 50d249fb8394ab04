package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

var (
	pollution = model.Category{Name: "Contaminación aérea", Kind: model.KindPollution}
	coverage  = model.Category{Name: "Cobertura 4G", Kind: model.KindSignal}
)

type fakeCatalog []model.Category

func (f fakeCatalog) Lookup(_ context.Context, name string) (model.Category, error) {
	for _, c := range f {
		if c.SameName(name) {
			return c, nil
		}
	}
	return model.Category{}, fmt.Errorf("%w: %q", apperr.ErrUnsupportedCategory, name)
}

func TestFilter_Encoding(t *testing.T) {
	cases := []struct {
		name string
		f    Filter
		want any
		str  string
	}{
		{"unset", Unset(), nil, "NULL"},
		{"empty", Empty(), []string{}, "{}"},
		{"values", Values("a", "b"), []string{"a", "b"}, "{a,b}"},
		{"no values is empty", Values(), []string{}, "{}"},
		{"from nil", FilterFrom(nil), nil, "NULL"},
		{"from filtered-empty", FilterFrom([]string{}), nil, "NULL"},
		{"from list", FilterFrom([]string{"Soria"}), []string{"Soria"}, "{Soria}"},
	}
	for _, tc := range cases {
		got := tc.f.SQLValue()
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: SQLValue=%#v want %#v", tc.name, got, tc.want)
		}
		if tc.f.String() != tc.str {
			t.Fatalf("%s: String=%q want %q", tc.name, tc.f.String(), tc.str)
		}
	}
	if !Unset().IsUnset() || !Empty().IsEmpty() || Values("x").IsEmpty() {
		t.Fatal("state predicates disagree")
	}
}

func TestBuild_Pollution(t *testing.T) {
	c, err := params.Validate(model.KindPollution, map[string]any{
		"pollutants": []any{"PM25"},
		"date_from":  "2025-01-01",
		"bbox":       map[string]any{"south": 40.0, "west": -4.0, "north": 41.0, "east": -3.0},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	call, err := Build(pollution, c)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if call.Name != FnPollutionGeoJSON {
		t.Fatalf("name=%q", call.Name)
	}
	want := []any{
		[]string{"PM25"},
		nil,
		"2025-01-01",
		nil,
		`{"south":40,"west":-4,"north":41,"east":-3}`,
		1,
	}
	if got := call.SQLArgs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%#v\nwant %#v", got, want)
	}
	sql, err := call.SQL()
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	wantSQL := "SELECT get_pollution_geojson_optimized($1::TEXT[], $2::TEXT[], $3::DATE, $4::DATE, $5::JSONB, $6::INTEGER)::text AS result"
	if sql != wantSQL {
		t.Fatalf("sql=%q\nwant %q", sql, wantSQL)
	}
}

func TestBuild_PollutionMinMeasurements(t *testing.T) {
	c, _ := params.Validate(model.KindPollution, map[string]any{"min_measurements": 4})
	call, err := Build(pollution, c)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := call.SQLArgs()[5]; got != 4 {
		t.Fatalf("min_measurements=%v want 4", got)
	}
}

func TestBuild_Signal(t *testing.T) {
	c, err := params.Validate(model.KindSignal, map[string]any{
		"operators": []any{"", " "},
		"provinces": []any{"Teruel"},
		"days_back": 30,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	call, err := Build(coverage, c)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []any{[]string{"Cobertura 4G"}, nil, []string{"Teruel"}, nil}
	if got := call.SQLArgs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%#v want %#v", got, want)
	}
	if got := call.String(); got != "get_signal_geojson_optimized(signal_types={Cobertura 4G}, operators=NULL, provinces={Teruel}, bbox=NULL)" {
		t.Fatalf("String()=%q", got)
	}
}

func TestBuild_KindMismatchAndUnknown(t *testing.T) {
	c, _ := params.Validate(model.KindSignal, nil)
	if _, err := Build(pollution, c); !errors.Is(err, apperr.ErrUnsupportedCategory) {
		t.Fatalf("err=%v want ErrUnsupportedCategory", err)
	}
	if _, err := Build(model.Category{Name: "Tiempo", Kind: "weather"}, params.Clean{}); !errors.Is(err, apperr.ErrUnsupportedCategory) {
		t.Fatalf("err=%v want ErrUnsupportedCategory", err)
	}
}

func TestRouter_Prepare(t *testing.T) {
	r := NewRouter(fakeCatalog{coverage, pollution})

	p, err := r.Prepare(context.Background(), params.Request{
		Category: "cobertura 4g",
		Raw:      map[string]any{"operators": []any{"Digi"}},
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if got := p.Call.SQLArgs()[0]; !reflect.DeepEqual(got, []string{"Cobertura 4G"}) {
		t.Fatalf("signal_types=%v want canonical name", got)
	}

	_, err = r.Prepare(context.Background(), params.Request{Category: "Radar", Raw: map[string]any{}})
	if !errors.Is(err, apperr.ErrUnsupportedCategory) {
		t.Fatalf("err=%v want ErrUnsupportedCategory", err)
	}

	_, err = r.Prepare(context.Background(), params.Request{
		Category: pollution.Name,
		Raw:      map[string]any{"date_to": "31/12/2024"},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
}

func TestMetadataCalls(t *testing.T) {
	sql, _ := CategoriesCall().SQL()
	if sql != "SELECT get_geojson_categories()::text AS result" {
		t.Fatalf("sql=%q", sql)
	}
	if _, err := LayersCall("  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
	call, _ := LayersCall("Cobertura 4G")
	if sql, _ := call.SQL(); sql != "SELECT get_geojson_layers($1::TEXT)::text AS result" {
		t.Fatalf("sql=%q", sql)
	}
	if _, err := (FunctionCall{Name: "drop table x; --"}).SQL(); err == nil {
		t.Fatal("unsafe function name must be rejected")
	}
}

func TestChartCalls(t *testing.T) {
	if _, err := SignalChartsCall("", nil); err == nil || !strings.Contains(err.Error(), "signal_type") {
		t.Fatalf("err=%v", err)
	}
	call, err := SignalChartsCall("4G", nil)
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	if got := call.SQLArgs(); !reflect.DeepEqual(got, []any{"4G", nil}) {
		t.Fatalf("args=%#v", got)
	}
	bad := 400
	if _, err := SignalChartsCall("4G", &bad); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v", err)
	}

	call, err = PollutionChartsCall("PM10", 0, "year")
	if err != nil {
		t.Fatalf("pollution: %v", err)
	}
	if got := call.SQLArgs(); !reflect.DeepEqual(got, []any{"PM10", 3, "day"}) {
		t.Fatalf("args=%#v", got)
	}
	if _, err := PollutionChartsCall(" ", 3, "day"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
}
