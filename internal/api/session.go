package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	mylog "github.com/mohammed-shakir/rurair-map/internal/logger"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
	"github.com/mohammed-shakir/rurair-map/internal/params"
	"github.com/mohammed-shakir/rurair-map/internal/session"
)

func (a *API) createSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, a.Sessions.Create())
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type categoryBody struct {
	Category string         `json:"category"`
	Filters  map[string]any `json:"filters"`
}

func (a *API) setCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		a.fail(r.Context(), w, &params.InvalidParameterError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	id := chi.URLParam(r, "id")
	ctx := mylog.WithCategory(mylog.WithSession(r.Context(), id), body.Category)
	snap, err := a.Sessions.SetCategory(ctx, id, body.Category, body.Filters)
	if err != nil {
		a.fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// toggleLayer loads the layer on POST and removes it on DELETE. Load
// failures come back as an unchecked layer with a notification.
func (a *API) toggleLayer(w http.ResponseWriter, r *http.Request) {
	on, err := session.ParseToggle(r.Method)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	id, code := chi.URLParam(r, "id"), chi.URLParam(r, "code")
	ctx := mylog.WithLayer(mylog.WithSession(r.Context(), id), code)
	res, err := a.Sessions.Toggle(ctx, id, code, on)
	if err != nil {
		a.fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) sessionMarkers(w http.ResponseWriter, r *http.Request) {
	ms, err := a.Sessions.Markers(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, markers.FeatureCollection(ms))
}

// sessionClusters groups the loaded markers into H3 cells at ?res=.
func (a *API) sessionClusters(w http.ResponseWriter, r *http.Request) {
	res := a.ClusterRes
	if raw := r.URL.Query().Get("res"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > markers.CellRes {
			a.fail(r.Context(), w, &params.InvalidParameterError{
				Field:  "res",
				Reason: "must be 0-" + strconv.Itoa(markers.CellRes),
			})
			return
		}
		res = n
	}
	ms, err := a.Sessions.Markers(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	cs, err := a.Clusterer.Cluster(ms, res)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, markers.ClusterCollection(cs))
}
