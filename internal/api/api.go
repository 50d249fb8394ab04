// Package api serves the map, dashboard, session and contact endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/contact"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
	"github.com/mohammed-shakir/rurair-map/internal/params"
	"github.com/mohammed-shakir/rurair-map/internal/session"
)

type Catalog interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Layers(ctx context.Context, category string) ([]model.LayerInfo, error)
}

type Preparer interface {
	Prepare(ctx context.Context, req params.Request) (dispatch.Prepared, error)
}

type Executor interface {
	Execute(ctx context.Context, call dispatch.FunctionCall) ([]byte, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call. Sessions and Contact may be
// nil, which leaves their routes unmounted.
type Deps struct {
	Log        *slog.Logger
	Catalog    Catalog
	Router     Preparer
	Exec       Executor
	Markers    *markers.Mapper
	Clusterer  *markers.Clusterer
	Palettes   *colorscale.Registry
	Sessions   *session.Controller
	Contact    *contact.Service
	DB         Pinger
	ClusterRes int
	Now        func() time.Time
}

type API struct {
	Deps
}

func New(d Deps) *API {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ClusterRes <= 0 {
		d.ClusterRes = 7
	}
	return &API{Deps: d}
}

// Mount registers every /api route on r.
func (a *API) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", a.categories)
		r.Get("/layers", a.layers)
		r.Get("/metadata", a.metadata)

		r.Get("/geojson", a.geojson)
		r.Post("/geojson", a.geojson)
		r.Post("/markers", a.markers)

		r.Get("/results", a.results)
		r.Get("/charts/signal", a.signalCharts)
		r.Get("/charts/pollution", a.pollutionCharts)
		r.Get("/legend", a.legend)

		if a.Sessions != nil {
			r.Post("/session", a.createSession)
			r.Route("/session/{id}", func(r chi.Router) {
				r.Get("/", a.getSession)
				r.Put("/category", a.setCategory)
				r.Post("/layers/{code}", a.toggleLayer)
				r.Delete("/layers/{code}", a.toggleLayer)
				r.Get("/markers", a.sessionMarkers)
				r.Get("/clusters", a.sessionClusters)
			})
		}

		if a.Contact != nil {
			r.HandleFunc("/contacto", a.contact)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeRaw sends a JSON document produced by the data engine unchanged.
func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
