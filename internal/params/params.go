// Package params validates the raw parameter bag of a GeoJSON request against
// the rules of its category kind.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
)

// InvalidParameterError names the offending field. It unwraps to apperr.ErrValidation.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string { return e.Field + " " + e.Reason }

func (e *InvalidParameterError) Unwrap() error { return apperr.ErrValidation }

func invalid(field, reason string) error {
	return &InvalidParameterError{Field: field, Reason: reason}
}

// Clean is a fully validated parameter set. Nil fields were absent; a non-nil
// empty slice was present but held no usable strings.
type Clean struct {
	Kind model.CategoryKind

	Provinces []string
	BBox      *model.BBox

	// pollution
	Pollutants      []string
	DateFrom        string
	DateTo          string
	MinReliability  *int
	MinMeasurements *int

	// signal
	Operators  []string
	DaysBack   *int
	MinQuality *int
}

const (
	MinDaysBack = 1
	MaxDaysBack = 365
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var bboxFields = [...]string{"south", "west", "north", "east"}

// Validate applies the rules for kind to raw. It either returns a complete
// Clean or the first violation; JSON null counts as absent.
func Validate(kind model.CategoryKind, raw map[string]any) (Clean, error) {
	if !kind.Valid() {
		return Clean{}, fmt.Errorf("%w: kind %q", apperr.ErrUnsupportedCategory, kind)
	}
	c := Clean{Kind: kind}

	if v, ok := present(raw, "provinces"); ok {
		list, err := stringList("provinces", v, nonEmpty)
		if err != nil {
			return Clean{}, err
		}
		c.Provinces = list
	}

	if v, ok := present(raw, "bbox"); ok {
		b, err := parseBBox(v)
		if err != nil {
			return Clean{}, err
		}
		c.BBox = &b
	}

	switch kind {
	case model.KindPollution:
		if v, ok := present(raw, "pollutants"); ok {
			list, err := stringList("pollutants", v, nonEmpty)
			if err != nil {
				return Clean{}, err
			}
			c.Pollutants = list
		}
		for _, f := range []struct {
			name string
			dst  *string
		}{{"date_from", &c.DateFrom}, {"date_to", &c.DateTo}} {
			v, ok := present(raw, f.name)
			if !ok {
				continue
			}
			s, isStr := v.(string)
			if !isStr || !isoDate.MatchString(s) {
				return Clean{}, invalid(f.name, "must be in YYYY-MM-DD")
			}
			*f.dst = s
		}
		for _, f := range []struct {
			name string
			dst  **int
		}{{"min_reliability", &c.MinReliability}, {"min_measurements", &c.MinMeasurements}} {
			v, ok := present(raw, f.name)
			if !ok {
				continue
			}
			n, err := integer(f.name, v)
			if err != nil {
				return Clean{}, err
			}
			if n < 0 {
				return Clean{}, invalid(f.name, "must be a non-negative integer")
			}
			*f.dst = &n
		}

	case model.KindSignal:
		if v, ok := present(raw, "operators"); ok {
			list, err := stringList("operators", v, nonBlank)
			if err != nil {
				return Clean{}, err
			}
			c.Operators = list
		}
		if v, ok := present(raw, "days_back"); ok {
			n, err := integer("days_back", v)
			if err != nil || n < MinDaysBack || n > MaxDaysBack {
				return Clean{}, invalid("days_back", "must be 1-365")
			}
			c.DaysBack = &n
		}
		if v, ok := present(raw, "min_quality"); ok {
			n, err := integer("min_quality", v)
			if err != nil {
				return Clean{}, err
			}
			c.MinQuality = &n
		}
	}
	return c, nil
}

// Raw converts c back into a parameter bag that validates to c again.
func (c Clean) Raw() map[string]any {
	out := map[string]any{}
	putList := func(k string, l []string) {
		if l == nil {
			return
		}
		vs := make([]any, len(l))
		for i, s := range l {
			vs[i] = s
		}
		out[k] = vs
	}
	putInt := func(k string, n *int) {
		if n != nil {
			out[k] = *n
		}
	}
	putList("provinces", c.Provinces)
	if c.BBox != nil {
		out["bbox"] = map[string]any{
			"south": c.BBox.South, "west": c.BBox.West,
			"north": c.BBox.North, "east": c.BBox.East,
		}
	}
	putList("pollutants", c.Pollutants)
	if c.DateFrom != "" {
		out["date_from"] = c.DateFrom
	}
	if c.DateTo != "" {
		out["date_to"] = c.DateTo
	}
	putInt("min_reliability", c.MinReliability)
	putInt("min_measurements", c.MinMeasurements)
	putList("operators", c.Operators)
	putInt("days_back", c.DaysBack)
	putInt("min_quality", c.MinQuality)
	return out
}

// Count is the number of parameters present, for request logging.
func (c Clean) Count() int { return len(c.Raw()) }

func present(raw map[string]any, key string) (any, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func nonEmpty(s string) bool { return s != "" }

func nonBlank(s string) bool { return strings.TrimSpace(s) != "" }

func stringList(field string, v any, keep func(string) bool) ([]string, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		items = make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
	default:
		return nil, invalid(field, "must be an array")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if ok && keep(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseBBox(v any) (model.BBox, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.BBox{}, invalid("bbox", "must be an object")
	}
	var vals [4]float64
	for i, k := range bboxFields {
		f, ok := number(obj[k])
		if !ok {
			return model.BBox{}, invalid("bbox", fmt.Sprintf("must contain valid numeric '%s'", k))
		}
		vals[i] = f
	}
	b := model.BBox{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}
	if err := b.Validate(); err != nil {
		return model.BBox{}, invalid("bbox", "requires south < north and west < east")
	}
	return b, nil
}

// number accepts JSON numbers and numeric strings; the result is finite.
func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
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

func integer(field string, v any) (int, error) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, invalid(field, "must be an integer")
	}
	return int(f), nil
}
