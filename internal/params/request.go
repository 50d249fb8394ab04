package params

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
)

// Request is a raw GeoJSON request: the category plus its unvalidated parameters.
type Request struct {
	Category string
	// Layer is the display label used by the marker endpoint; optional.
	Layer string
	Raw   map[string]any
}

var listKeys = map[string]bool{"operators": true, "pollutants": true, "provinces": true}

// FromQuery reads a GET request: list parameters are comma separated and
// bbox is a JSON object string.
func FromQuery(q url.Values) (Request, error) {
	raw := make(map[string]any, len(q))
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		switch {
		case listKeys[k]:
			items := []any{}
			for _, v := range vs {
				for part := range strings.SplitSeq(v, ",") {
					if part != "" {
						items = append(items, part)
					}
				}
			}
			raw[k] = items
		case k == "bbox":
			var obj map[string]any
			if err := json.Unmarshal([]byte(vs[0]), &obj); err == nil && obj != nil {
				raw[k] = obj
			} else {
				raw[k] = vs[0]
			}
		default:
			raw[k] = vs[0]
		}
	}
	return fromRaw(raw)
}

// FromJSON reads a JSON object body. Numbers are kept as json.Number.
func FromJSON(r io.Reader) (Request, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, invalid("body", "is empty")
		}
		return Request{}, invalid("body", "is not valid JSON")
	}
	if raw == nil {
		return Request{}, invalid("body", "must be a JSON object")
	}
	return fromRaw(raw)
}

// FromForm reads an urlencoded or multipart POST the same way as a query string.
func FromForm(form url.Values) (Request, error) { return FromQuery(form) }

func fromRaw(raw map[string]any) (Request, error) {
	cat, _ := raw["category"].(string)
	cat = strings.TrimSpace(cat)
	if cat == "" {
		return Request{}, invalid("category", "is required")
	}
	delete(raw, "category")

	req := Request{Category: cat, Raw: raw}
	if l, ok := raw["layer"].(string); ok {
		req.Layer = strings.TrimSpace(l)
		delete(raw, "layer")
	}
	return req, nil
}
