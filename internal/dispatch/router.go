package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

// DefaultMinMeasurements is sent when a pollution request does not set one.
const DefaultMinMeasurements = 1

// CategoryLookup resolves a category name to its catalogue entry.
// Unknown names fail with apperr.ErrUnsupportedCategory.
type CategoryLookup interface {
	Lookup(ctx context.Context, name string) (model.Category, error)
}

// Build routes a validated request to the stored function for its category kind.
func Build(cat model.Category, c params.Clean) (FunctionCall, error) {
	if c.Kind != "" && c.Kind != cat.Kind {
		return FunctionCall{}, fmt.Errorf("%w: parameters validated as %s for %s category %q",
			apperr.ErrUnsupportedCategory, c.Kind, cat.Kind, cat.Name)
	}
	switch cat.Kind {
	case model.KindPollution:
		minMeas := DefaultMinMeasurements
		if c.MinMeasurements != nil {
			minMeas = *c.MinMeasurements
		}
		return FunctionCall{
			Name: FnPollutionGeoJSON,
			Args: []Arg{
				{Name: "pollutant_codes", Type: TypeTextArray, Value: FilterFrom(c.Pollutants)},
				{Name: "provinces", Type: TypeTextArray, Value: FilterFrom(c.Provinces)},
				{Name: "date_from", Type: TypeDate, Value: optional(c.DateFrom)},
				{Name: "date_to", Type: TypeDate, Value: optional(c.DateTo)},
				{Name: "bbox", Type: TypeJSONB, Value: bboxArg(c.BBox)},
				{Name: "min_measurements", Type: TypeInteger, Value: minMeas},
			},
		}, nil
	case model.KindSignal:
		return FunctionCall{
			Name: FnSignalGeoJSON,
			Args: []Arg{
				{Name: "signal_types", Type: TypeTextArray, Value: Values(cat.Name)},
				{Name: "operators", Type: TypeTextArray, Value: FilterFrom(c.Operators)},
				{Name: "provinces", Type: TypeTextArray, Value: FilterFrom(c.Provinces)},
				{Name: "bbox", Type: TypeJSONB, Value: bboxArg(c.BBox)},
			},
		}, nil
	default:
		return FunctionCall{}, fmt.Errorf("%w: %q", apperr.ErrUnsupportedCategory, cat.Name)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func bboxArg(b *model.BBox) *string {
	if b == nil {
		return nil
	}
	return optional(b.JSON())
}

// Router runs lookup, validation and routing for a raw request.
type Router struct {
	cats CategoryLookup
}

func NewRouter(cats CategoryLookup) *Router { return &Router{cats: cats} }

// Prepared is a request ready to hit the data engine.
type Prepared struct {
	Category model.Category
	Params   params.Clean
	Call     FunctionCall
}

// Prepare fails before any data call when the category is unknown or a parameter is invalid.
func (r *Router) Prepare(ctx context.Context, req params.Request) (Prepared, error) {
	cat, err := r.cats.Lookup(ctx, req.Category)
	if err != nil {
		return Prepared{}, err
	}
	clean, err := params.Validate(cat.Kind, req.Raw)
	if err != nil {
		return Prepared{}, err
	}
	call, err := Build(cat, clean)
	if err != nil {
		return Prepared{}, err
	}
	return Prepared{Category: cat, Params: clean, Call: call}, nil
}

func CategoriesCall() FunctionCall { return FunctionCall{Name: FnCategories} }

func AppMetadataCall() FunctionCall { return FunctionCall{Name: FnAppMetadata} }

func LayersCall(category string) (FunctionCall, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return FunctionCall{}, &params.InvalidParameterError{Field: "category", Reason: "is required"}
	}
	return FunctionCall{
		Name: FnLayers,
		Args: []Arg{{Name: "category", Type: TypeText, Value: category}},
	}, nil
}

// SignalChartsCall builds get_signal_stats_charts; daysBack nil means the engine default.
func SignalChartsCall(signalType string, daysBack *int) (FunctionCall, error) {
	signalType = strings.TrimSpace(signalType)
	if signalType == "" {
		return FunctionCall{}, &params.InvalidParameterError{Field: "signal_type", Reason: "is required"}
	}
	if daysBack != nil && (*daysBack < params.MinDaysBack || *daysBack > params.MaxDaysBack) {
		return FunctionCall{}, &params.InvalidParameterError{Field: "days_back", Reason: "must be 1-365"}
	}
	return FunctionCall{
		Name: FnSignalCharts,
		Args: []Arg{
			{Name: "signal_type", Type: TypeText, Value: signalType},
			{Name: "days_back", Type: TypeInteger, Value: daysBack},
		},
	}, nil
}

// Time groupings accepted by get_pollution_temporal_charts.
const (
	GroupDay   = "day"
	GroupWeek  = "week"
	GroupMonth = "month"

	DefaultMonthsBack = 3
)

// PollutionChartsCall builds get_pollution_temporal_charts. Unknown groupings
// fall back to day and non-positive windows to three months.
func PollutionChartsCall(pollutantCode string, monthsBack int, groupBy string) (FunctionCall, error) {
	pollutantCode = strings.TrimSpace(pollutantCode)
	if pollutantCode == "" {
		return FunctionCall{}, &params.InvalidParameterError{Field: "pollutant_code", Reason: "is required"}
	}
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	switch groupBy {
	case GroupDay, GroupWeek, GroupMonth:
	default:
		groupBy = GroupDay
	}
	return FunctionCall{
		Name: FnPollutionCharts,
		Args: []Arg{
			{Name: "pollutant_code", Type: TypeText, Value: pollutantCode},
			{Name: "months_back", Type: TypeInteger, Value: monthsBack},
			{Name: "group_by", Type: TypeText, Value: groupBy},
		},
	}, nil
}
