// Package catalog serves the category and layer metadata published by the
// data engine, cached in process.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
)

// Executor runs a stored-function call and returns its JSON text.
type Executor interface {
	Execute(ctx context.Context, call dispatch.FunctionCall) ([]byte, error)
}

const (
	keyCategories = "categories"
	keyAppMeta    = "app_metadata"
	cacheSize     = 128
)

type Catalog struct {
	exec  Executor
	log   *slog.Logger
	cache *expirable.LRU[string, any]
}

// New builds a catalog whose entries expire after ttl (10m when ttl <= 0).
func New(exec Executor, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		exec:  exec,
		log:   log,
		cache: expirable.NewLRU[string, any](cacheSize, nil, ttl),
	}
}

// Invalidate drops every cached entry.
func (c *Catalog) Invalidate() { c.cache.Purge() }

func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	if v, ok := c.cache.Get(keyCategories); ok {
		return clone(v.([]model.Category)), nil
	}
	raw, err := c.exec.Execute(ctx, dispatch.CategoriesCall())
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	cats, legacy, err := ParseCategories(raw)
	if err != nil {
		return nil, err
	}
	if legacy {
		c.log.WarnContext(ctx, "categories without kinds, treating the last entry as pollution",
			"pollution", cats[len(cats)-1].Name, "count", len(cats))
	}
	c.cache.Add(keyCategories, cats)
	return clone(cats), nil
}

// Lookup resolves name case-insensitively to the canonical category.
func (c *Catalog) Lookup(ctx context.Context, name string) (model.Category, error) {
	cats, err := c.Categories(ctx)
	if err != nil {
		return model.Category{}, err
	}
	for _, cat := range cats {
		if cat.SameName(name) {
			return cat, nil
		}
	}
	return model.Category{}, fmt.Errorf("%w: %q", apperr.ErrUnsupportedCategory, name)
}

func (c *Catalog) Pollution(ctx context.Context) (model.Category, error) {
	cats, err := c.Categories(ctx)
	if err != nil {
		return model.Category{}, err
	}
	for _, cat := range cats {
		if cat.IsPollution() {
			return cat, nil
		}
	}
	return model.Category{}, fmt.Errorf("%w: no pollution category", apperr.ErrUpstream)
}

// Layers lists the selectable layers of a known category.
func (c *Catalog) Layers(ctx context.Context, category string) ([]model.LayerInfo, error) {
	cat, err := c.Lookup(ctx, category)
	if err != nil {
		return nil, err
	}
	key := "layers:" + strings.ToLower(cat.Name)
	if v, ok := c.cache.Get(key); ok {
		return append([]model.LayerInfo(nil), v.([]model.LayerInfo)...), nil
	}
	call, err := dispatch.LayersCall(cat.Name)
	if err != nil {
		return nil, err
	}
	raw, err := c.exec.Execute(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("load layers for %q: %w", cat.Name, err)
	}
	layers, legacy, err := ParseLayers(raw)
	if err != nil {
		return nil, err
	}
	if legacy {
		c.log.WarnContext(ctx, "layers listed as plain codes", "category", cat.Name, "count", len(layers))
	}
	c.cache.Add(key, layers)
	return append([]model.LayerInfo(nil), layers...), nil
}

// AppMetadata passes the complete metadata document through unchanged.
func (c *Catalog) AppMetadata(ctx context.Context) (json.RawMessage, error) {
	if v, ok := c.cache.Get(keyAppMeta); ok {
		return v.(json.RawMessage), nil
	}
	raw, err := c.exec.Execute(ctx, dispatch.AppMetadataCall())
	if err != nil {
		return nil, fmt.Errorf("load app metadata: %w", err)
	}
	if isNull(raw) {
		raw = []byte("[]")
	}
	msg := json.RawMessage(append([]byte(nil), raw...))
	c.cache.Add(keyAppMeta, msg)
	return msg, nil
}

func clone(cats []model.Category) []model.Category { return append([]model.Category(nil), cats...) }

func isNull(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// ParseCategories accepts [{name, kind}] or the legacy list of names, where
// the last name is the pollution category. Exactly one pollution category is required.
func ParseCategories(raw []byte) (cats []model.Category, legacy bool, err error) {
	if isNull(raw) {
		return nil, false, fmt.Errorf("%w: no categories published", apperr.ErrUpstream)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("%w: categories: %v", apperr.ErrUpstream, err)
	}
	if len(items) == 0 {
		return nil, false, fmt.Errorf("%w: no categories published", apperr.ErrUpstream)
	}

	var names []string
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			names = append(names, s)
			continue
		}
		var cat model.Category
		if err := json.Unmarshal(it, &cat); err != nil {
			return nil, false, fmt.Errorf("%w: category entry %s: %v", apperr.ErrUpstream, it, err)
		}
		cat.Name = strings.TrimSpace(cat.Name)
		cat.Kind = model.CategoryKind(strings.ToLower(string(cat.Kind)))
		if cat.Name == "" || !cat.Kind.Valid() {
			return nil, false, fmt.Errorf("%w: category entry %s needs a name and kind", apperr.ErrUpstream, it)
		}
		cats = append(cats, cat)
	}
	switch {
	case len(names) > 0 && len(cats) > 0:
		return nil, false, fmt.Errorf("%w: categories mix names and objects", apperr.ErrUpstream)
	case len(names) > 0:
		legacy = true
		for i, n := range names {
			kind := model.KindSignal
			if i == len(names)-1 {
				kind = model.KindPollution
			}
			cats = append(cats, model.Category{Name: strings.TrimSpace(n), Kind: kind})
		}
	}

	pollution := 0
	for _, c := range cats {
		if c.IsPollution() {
			pollution++
		}
	}
	if pollution != 1 {
		return nil, false, fmt.Errorf("%w: want exactly one pollution category, got %d", apperr.ErrUpstream, pollution)
	}
	return cats, legacy, nil
}

// ParseLayers accepts [{code, display_name, unit?}] or a legacy list of codes,
// whose display names are derived from the code.
func ParseLayers(raw []byte) (layers []model.LayerInfo, legacy bool, err error) {
	if isNull(raw) {
		return []model.LayerInfo{}, false, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("%w: expected array of layer objects with code and display_name", apperr.ErrUpstream)
	}
	layers = make([]model.LayerInfo, 0, len(items))
	strs := 0
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			layers = append(layers, model.LayerInfo{Code: s, DisplayName: FormatLayerName(s)})
			strs++
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(it, &obj); err != nil {
			return nil, false, fmt.Errorf("%w: layer entry %s", apperr.ErrUpstream, it)
		}
		_, hasCode := obj["code"]
		_, hasName := obj["display_name"]
		if !hasCode || !hasName {
			return nil, false, fmt.Errorf("%w: expected array of layer objects with code and display_name", apperr.ErrUpstream)
		}
		var li model.LayerInfo
		if err := json.Unmarshal(it, &li); err != nil {
			return nil, false, fmt.Errorf("%w: layer entry %s: %v", apperr.ErrUpstream, it, err)
		}
		layers = append(layers, li)
	}
	if strs > 0 && strs != len(items) {
		return nil, false, fmt.Errorf("%w: layers mix codes and objects", apperr.ErrUpstream)
	}
	return layers, strs > 0, nil
}

var geojsonExt = regexp.MustCompile(`(?i)\.geojson$`)

// FormatLayerName derives a display name from a legacy layer code.
func FormatLayerName(code string) string {
	name := geojsonExt.ReplaceAllString(code, "")
	if name == "Concentración_PM_25" {
		return "Concentración PM 2.5"
	}
	return strings.ReplaceAll(name, "_", " ")
}
