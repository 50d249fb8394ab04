// Package dispatch turns validated requests into stored-function calls.
package dispatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Stored functions exposed by the data engine.
const (
	FnPollutionGeoJSON = "get_pollution_geojson_optimized"
	FnSignalGeoJSON    = "get_signal_geojson_optimized"
	FnCategories       = "get_geojson_categories"
	FnLayers           = "get_geojson_layers"
	FnAppMetadata      = "get_complete_app_metadata"
	FnSignalCharts     = "get_signal_stats_charts"
	FnPollutionCharts  = "get_pollution_temporal_charts"
)

// Postgres argument types used in casts.
const (
	TypeText      = "TEXT"
	TypeTextArray = "TEXT[]"
	TypeDate      = "DATE"
	TypeJSONB     = "JSONB"
	TypeInteger   = "INTEGER"
)

type filterState uint8

const (
	filterUnset filterState = iota
	filterEmpty
	filterValues
)

// Filter is a list argument: Unset means no filter (SQL NULL), Empty matches
// nothing ('{}'), Values restricts to the listed strings.
type Filter struct {
	state  filterState
	values []string
}

func Unset() Filter { return Filter{} }

func Empty() Filter { return Filter{state: filterEmpty} }

// Values builds a restricting filter; no values yields Empty.
func Values(v ...string) Filter {
	if len(v) == 0 {
		return Empty()
	}
	return Filter{state: filterValues, values: append([]string(nil), v...)}
}

// FilterFrom maps a cleaned list to a filter: absent or empty lists are Unset.
func FilterFrom(list []string) Filter {
	if len(list) == 0 {
		return Unset()
	}
	return Values(list...)
}

func (f Filter) IsUnset() bool { return f.state == filterUnset }
func (f Filter) IsEmpty() bool { return f.state == filterEmpty }

func (f Filter) List() []string { return append([]string(nil), f.values...) }

// SQLValue is the driver argument: nil, an empty array or the values.
func (f Filter) SQLValue() any {
	switch f.state {
	case filterEmpty:
		return []string{}
	case filterValues:
		return append([]string(nil), f.values...)
	default:
		return nil
	}
}

func (f Filter) String() string {
	switch f.state {
	case filterEmpty:
		return "{}"
	case filterValues:
		return "{" + strings.Join(f.values, ",") + "}"
	default:
		return "NULL"
	}
}

// Arg is one positional argument. Value is a Filter, string, int, *int or nil.
type Arg struct {
	Name  string
	Type  string
	Value any
}

// SQLValue converts Value into what the driver binds.
func (a Arg) SQLValue() any {
	switch v := a.Value.(type) {
	case Filter:
		return v.SQLValue()
	case *int:
		if v == nil {
			return nil
		}
		return *v
	case *string:
		if v == nil {
			return nil
		}
		return *v
	default:
		return v
	}
}

type FunctionCall struct {
	Name string
	Args []Arg
}

func (c FunctionCall) SQLArgs() []any {
	out := make([]any, len(c.Args))
	for i, a := range c.Args {
		out[i] = a.SQLValue()
	}
	return out
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQL renders the select statement, casting every placeholder and the result to text.
func (c FunctionCall) SQL() (string, error) {
	if !identRe.MatchString(c.Name) {
		return "", fmt.Errorf("dispatch: invalid function name %q", c.Name)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i + 1))
		if a.Type != "" {
			b.WriteString("::")
			b.WriteString(a.Type)
		}
	}
	b.WriteString(")::text AS result")
	return b.String(), nil
}

func (c FunctionCall) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		v := a.SQLValue()
		var s string
		switch t := a.Value.(type) {
		case Filter:
			s = t.String()
		default:
			if v == nil {
				s = "NULL"
			} else {
				s = fmt.Sprint(v)
			}
		}
		parts[i] = a.Name + "=" + s
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}
