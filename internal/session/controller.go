package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/logger"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

type Catalog interface {
	Lookup(ctx context.Context, name string) (model.Category, error)
	Layers(ctx context.Context, category string) ([]model.LayerInfo, error)
}

type Preparer interface {
	Prepare(ctx context.Context, req params.Request) (dispatch.Prepared, error)
}

type Executor interface {
	Execute(ctx context.Context, call dispatch.FunctionCall) ([]byte, error)
}

// Level is the notification style shown to the visitor.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level    Level  `json:"type"`
	Message  string `json:"message"`
	Duration int    `json:"duration_ms"`
}

type ToggleResult struct {
	Layer         string        `json:"layer"`
	Checked       bool          `json:"checked"`
	Stale         bool          `json:"stale,omitempty"`
	Notification  *Notification `json:"notification,omitempty"`
	TotalFeatures int           `json:"total_features"`
	ValidFeatures int           `json:"valid_features"`
	Markers       int           `json:"markers"`
}

// defaultMinReliability is sent with every pollutant layer request.
const defaultMinReliability = 2

type Controller struct {
	log      *slog.Logger
	store    *Store
	catalog  Catalog
	router   Preparer
	exec     Executor
	mapper   *markers.Mapper
	palettes *colorscale.Registry
}

func NewController(log *slog.Logger, store *Store, cat Catalog, router Preparer, exec Executor,
	mapper *markers.Mapper, palettes *colorscale.Registry,
) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log,
		store:    store,
		catalog:  cat,
		router:   router,
		exec:     exec,
		mapper:   mapper,
		palettes: palettes,
	}
}

func (c *Controller) Create() Snapshot {
	s := c.store.Create()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (c *Controller) Get(id string) (Snapshot, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// SetCategory switches the session to category, drops every loaded layer and
// lists the layers available for it. filters are merged into each layer request.
func (c *Controller) SetCategory(ctx context.Context, id, category string, filters map[string]any) (Snapshot, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	cat, err := c.catalog.Lookup(ctx, category)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := params.Validate(cat.Kind, filters); err != nil {
		return Snapshot{}, err
	}
	layers, err := c.catalog.Layers(ctx, cat.Name)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = cat
	s.layers = layers
	s.filters = maps.Clone(filters)
	s.registry.Reset(cat.IsPollution())
	s.updated = c.store.now()
	c.showSignalLegend(s)
	return s.snapshot(), nil
}

// Toggle loads (on) or removes (off) layer code. Empty results and upstream
// failures are reported through the notification and leave the layer
// unchecked; only bad input and unknown sessions return an error.
func (c *Controller) Toggle(ctx context.Context, id, code string, on bool) (ToggleResult, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return ToggleResult{}, err
	}
	ctx = logger.WithSession(ctx, id)

	s.mu.Lock()
	if s.category.Name == "" {
		s.mu.Unlock()
		return ToggleResult{}, fmt.Errorf("toggle %s: %w", code, errors.Join(ErrNoCategory, apperr.ErrValidation))
	}
	if !on {
		s.registry.Remove(code)
		s.updated = c.store.now()
		c.showSignalLegend(s)
		s.mu.Unlock()
		return ToggleResult{Layer: code, Checked: false}, nil
	}
	info, ok := s.layerInfo(code)
	if !ok {
		s.mu.Unlock()
		return ToggleResult{}, &params.InvalidParameterError{Field: "layer", Reason: fmt.Sprintf("%q is not a layer of %s", code, s.category.Name)}
	}
	cat := s.category
	raw := layerRequest(cat, code, s.filters)
	ticket := s.registry.Begin(info)
	s.mu.Unlock()

	label := info.DisplayName
	if label == "" {
		label = code
	}
	ctx = logger.WithLayer(logger.WithCategory(ctx, cat.Name), code)

	prep, err := c.router.Prepare(ctx, params.Request{Category: cat.Name, Layer: label, Raw: raw})
	if err != nil {
		c.abort(s, ticket)
		return ToggleResult{}, err
	}

	data, err := c.exec.Execute(ctx, prep.Call)
	if err != nil {
		c.log.Error("layer load failed", "layer", code, "category", cat.Name, "err", err)
		if !c.abort(s, ticket) {
			return c.stale(s, code), nil
		}
		return ToggleResult{Layer: code, Checked: false, Notification: loadError(err)}, nil
	}

	res := c.mapper.Map(data, label)
	out := ToggleResult{
		Layer:         code,
		TotalFeatures: res.TotalFeatures,
		ValidFeatures: res.ValidFeatures,
	}
	if res.IsEmpty {
		c.log.Warn("layer has no data", "layer", code, "reason", res.Message)
		if !c.abort(s, ticket) {
			return c.stale(s, code), nil
		}
		out.Notification = &Notification{
			Level:    LevelWarning,
			Message:  fmt.Sprintf("No hay datos disponibles para %s", label),
			Duration: 5000,
		}
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registry.Commit(ticket, res.Markers) {
		c.log.Debug("dropping stale layer response", "layer", code)
		out.Checked = s.registry.Checked(code)
		out.Stale = true
		return out, nil
	}
	s.updated = c.store.now()
	out.Checked = true
	out.Markers = len(res.Markers)
	if res.Partial() {
		out.Notification = &Notification{
			Level:    LevelWarning,
			Message:  fmt.Sprintf("Se cargaron %d puntos de %d", res.ValidFeatures, res.TotalFeatures),
			Duration: 3000,
		}
	} else {
		out.Notification = &Notification{
			Level:    LevelSuccess,
			Message:  fmt.Sprintf("Se cargaron %d puntos", len(res.Markers)),
			Duration: 3000,
		}
	}

	if cat.IsPollution() {
		if sc, ok := c.palettes.Scale(label); ok {
			unit := info.Unit
			if unit == "" {
				unit = sc.Unit
			}
			if err := s.legend.Show(sc, unit); err != nil {
				c.log.Warn("legend render failed", "layer", code, "err", err)
			}
		}
	} else {
		c.showSignalLegend(s)
	}
	return out, nil
}

// Markers returns every marker currently loaded in the session.
func (c *Controller) Markers(id string) ([]markers.Marker, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Markers(), nil
}

func (c *Controller) abort(s *State, t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Abort(t)
}

func (c *Controller) stale(s *State, code string) ToggleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ToggleResult{Layer: code, Checked: s.registry.Checked(code), Stale: true}
}

// caller holds s.mu
func (c *Controller) showSignalLegend(s *State) {
	if s.category.IsPollution() {
		return
	}
	sc, ok := c.palettes.Scale(colorscale.KindSignal)
	if !ok {
		return
	}
	if err := s.legend.Show(sc, sc.Unit); err != nil {
		c.log.Warn("legend render failed", "err", err)
	}
}

func layerRequest(cat model.Category, code string, filters map[string]any) map[string]any {
	raw := make(map[string]any, len(filters)+2)
	for k, v := range filters {
		raw[k] = v
	}
	if cat.IsPollution() {
		raw["pollutants"] = []string{code}
		if _, ok := raw["min_reliability"]; !ok {
			raw["min_reliability"] = defaultMinReliability
		}
	} else {
		raw["operators"] = []string{code}
	}
	return raw
}

func loadError(err error) *Notification {
	if errors.Is(err, apperr.ErrNetwork) {
		return &Notification{Level: LevelError, Message: "Error de conexión al servidor", Duration: 6000}
	}
	return &Notification{Level: LevelError, Message: "Error al cargar los datos del servidor", Duration: 6000}
}

// ParseToggle maps the HTTP verb onto a toggle direction.
func ParseToggle(method string) (bool, error) {
	switch strings.ToUpper(method) {
	case "POST", "PUT":
		return true, nil
	case "DELETE":
		return false, nil
	default:
		return false, fmt.Errorf("method %s: %w", method, apperr.ErrValidation)
	}
}
