package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

const apiVersion = "1.0"

// emptyCollection is returned when the data engine yields no row.
var emptyCollection = []byte(`{"type":"FeatureCollection","features":[],"metadata":{"total_features":0,"error":"No data found"}}`)

// parseRequest reads a GET query, a JSON body or a form body.
func parseRequest(r *http.Request) (params.Request, error) {
	if r.Method == http.MethodGet {
		return params.FromQuery(r.URL.Query())
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		return params.FromJSON(http.MaxBytesReader(nil, r.Body, 1<<20))
	}
	if err := r.ParseForm(); err != nil {
		return params.Request{}, &params.InvalidParameterError{Field: "body", Reason: "is not a valid form"}
	}
	return params.FromForm(r.PostForm)
}

// fetch validates, routes and executes a GeoJSON request. A missing row
// becomes an empty collection.
func (a *API) fetch(r *http.Request, req params.Request) ([]byte, error) {
	ctx := r.Context()
	prep, err := a.Router.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	a.Log.DebugContext(ctx, "geojson request",
		"category", prep.Category.Name, "params_count", prep.Params.Count(), "params", prep.Params.Raw())

	raw, err := a.Exec.Execute(ctx, prep.Call)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return emptyCollection, nil
	}
	return raw, nil
}

func (a *API) geojson(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	raw, err := a.fetch(r, req)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	out, err := decorate(raw, req.Category, a.Now().Format("2006-01-02 15:04:05"))
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeRaw(w, http.StatusOK, out)
}

// decorate checks the document is GeoJSON and stamps its metadata object, when
// present, with the api version, requested category and response time.
func decorate(raw []byte, category, at string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: Invalid GeoJSON response", apperr.ErrUpstream)
	}
	if typ, ok := doc["type"]; !ok || string(typ) == "null" {
		return nil, fmt.Errorf("%w: Invalid GeoJSON response", apperr.ErrUpstream)
	}
	metaRaw, ok := doc["metadata"]
	if !ok {
		return raw, nil
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(metaRaw, &meta); err != nil || meta == nil {
		return raw, nil
	}
	for k, v := range map[string]string{
		"api_version":      apiVersion,
		"request_category": category,
		"response_time":    at,
	} {
		b, _ := json.Marshal(v)
		meta[k] = b
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	doc["metadata"] = b
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return out, nil
}

// markers runs a GeoJSON request through the marker mapper and returns the
// styled points. Empty results are not errors; the mapper message is kept in
// the collection metadata.
func (a *API) markers(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	raw, err := a.fetch(r, req)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	label := req.Layer
	if label == "" {
		label = strings.TrimSpace(req.Category)
	}
	res := a.Markers.Map(raw, label)

	fc := markers.FeatureCollection(res.Markers)
	if b, ok := markers.Bounds(res.Markers); ok {
		fc.BBox = geojson.NewBBox(b)
	}
	fc.ExtraMembers = geojson.Properties{
		"metadata": map[string]any{
			"layer":          label,
			"is_empty":       res.IsEmpty,
			"message":        res.Message,
			"total_features": res.TotalFeatures,
			"valid_features": res.ValidFeatures,
		},
	}
	writeJSON(w, http.StatusOK, fc)
}
