package session

import (
	"sort"

	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
)

// Ticket identifies one load of a layer. A ticket goes stale when its layer is
// toggled off, replaced by an exclusive selection or loaded again.
type Ticket struct {
	Code string
	gen  uint64
}

type layer struct {
	info    model.LayerInfo
	gen     uint64
	pending bool
	markers []markers.Marker
}

// Registry maps layer codes to loaded markers. It is not safe for concurrent
// use; State serialises access.
type Registry struct {
	exclusive bool
	seq       uint64
	layers    map[string]*layer
}

func NewRegistry(exclusive bool) *Registry {
	return &Registry{exclusive: exclusive, layers: make(map[string]*layer)}
}

// Reset drops every layer and switches the selection mode. The ticket sequence
// keeps counting, so tickets issued before the reset never match a later load.
func (r *Registry) Reset(exclusive bool) {
	r.exclusive = exclusive
	clear(r.layers)
}

// Begin marks info.Code as loading and returns its ticket. In exclusive mode
// every other layer is dropped.
func (r *Registry) Begin(info model.LayerInfo) Ticket {
	if r.exclusive {
		for code := range r.layers {
			if code != info.Code {
				delete(r.layers, code)
			}
		}
	}
	r.seq++
	r.layers[info.Code] = &layer{info: info, gen: r.seq, pending: true}
	return Ticket{Code: info.Code, gen: r.seq}
}

// Commit stores ms for t's layer. It reports false when t is stale.
func (r *Registry) Commit(t Ticket, ms []markers.Marker) bool {
	l, ok := r.layers[t.Code]
	if !ok || l.gen != t.gen || !l.pending {
		return false
	}
	l.pending = false
	l.markers = ms
	return true
}

// Abort drops t's layer if t is still current.
func (r *Registry) Abort(t Ticket) bool {
	l, ok := r.layers[t.Code]
	if !ok || l.gen != t.gen {
		return false
	}
	delete(r.layers, t.Code)
	return true
}

func (r *Registry) Remove(code string) bool {
	_, ok := r.layers[code]
	delete(r.layers, code)
	return ok
}

func (r *Registry) Clear() { clear(r.layers) }

func (r *Registry) Exclusive() bool { return r.exclusive }

// Checked reports whether code is loaded or loading.
func (r *Registry) Checked(code string) bool {
	_, ok := r.layers[code]
	return ok
}

// Active lists loaded (not pending) layer codes in sorted order.
func (r *Registry) Active() []string {
	out := make([]string, 0, len(r.layers))
	for code, l := range r.layers {
		if !l.pending {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Markers returns the markers of every loaded layer, ordered by layer code.
func (r *Registry) Markers() []markers.Marker {
	var out []markers.Marker
	for _, code := range r.Active() {
		out = append(out, r.layers[code].markers...)
	}
	return out
}

func (r *Registry) entry(code string) (*layer, bool) {
	l, ok := r.layers[code]
	return l, ok
}
