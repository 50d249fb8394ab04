// Package session keeps per-visitor map state: the selected category, the
// layers loaded for it and the legend being shown.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/legend"
	"github.com/mohammed-shakir/rurair-map/internal/logger"
)

var ErrNoCategory = errors.New("no category selected")

type State struct {
	mu       sync.Mutex
	id       string
	category model.Category
	layers   []model.LayerInfo
	filters  map[string]any
	registry *Registry
	legend   legend.Control
	updated  time.Time
}

func newState(id string, now time.Time) *State {
	return &State{id: id, registry: NewRegistry(false), updated: now}
}

func (s *State) ID() string { return s.id }

type LayerView struct {
	model.LayerInfo
	Checked bool `json:"checked"`
	Pending bool `json:"pending"`
	Markers int  `json:"markers"`
}

// Snapshot is a read-only copy of a State.
type Snapshot struct {
	ID       string          `json:"id"`
	Category *model.Category `json:"category"`
	Filters  map[string]any  `json:"filters,omitempty"`
	Layers   []LayerView     `json:"layers"`
	Legend   *legend.Widget  `json:"legend"`
	Updated  time.Time       `json:"updated"`
}

func (s *State) snapshot() Snapshot {
	snap := Snapshot{ID: s.id, Layers: make([]LayerView, 0, len(s.layers)), Updated: s.updated}
	if s.category.Name != "" {
		c := s.category
		snap.Category = &c
	}
	if len(s.filters) > 0 {
		snap.Filters = make(map[string]any, len(s.filters))
		for k, v := range s.filters {
			snap.Filters[k] = v
		}
	}
	for _, info := range s.layers {
		v := LayerView{LayerInfo: info}
		if l, ok := s.registry.entry(info.Code); ok {
			v.Checked = true
			v.Pending = l.pending
			v.Markers = len(l.markers)
		}
		snap.Layers = append(snap.Layers, v)
	}
	if w, ok := s.legend.Current(); ok {
		snap.Legend = &w
	}
	return snap
}

func (s *State) layerInfo(code string) (model.LayerInfo, bool) {
	for _, l := range s.layers {
		if l.Code == code {
			return l, true
		}
	}
	return model.LayerInfo{}, false
}

// Store holds sessions in an LRU; entries idle longer than ttl expire.
type Store struct {
	lru *expirable.LRU[string, *State]
	now func() time.Time
}

func NewStore(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{lru: expirable.NewLRU[string, *State](size, nil, ttl), now: time.Now}
}

func (st *Store) Create() *State {
	s := newState(logger.NewID(), st.now())
	st.lru.Add(s.id, s)
	return s
}

// Get returns the session and refreshes its expiry.
func (st *Store) Get(id string) (*State, error) {
	s, ok := st.lru.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, apperr.ErrNotFound)
	}
	st.lru.Add(id, s)
	return s, nil
}

func (st *Store) Delete(id string) bool { return st.lru.Remove(id) }

func (st *Store) Len() int { return st.lru.Len() }
