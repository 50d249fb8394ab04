package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

func (a *API) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.Catalog.Categories(r.Context())
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (a *API) layers(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		a.fail(r.Context(), w, &params.InvalidParameterError{Field: "category", Reason: "is required"})
		return
	}
	layers, err := a.Catalog.Layers(r.Context(), category)
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, layers)
}

type metadataError struct {
	Error string `json:"error"`
}

// metadata passes the raw metadata documents through: ?action=list for the
// complete app metadata, ?action=categories, or ?category= for its layers.
func (a *API) metadata(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var call dispatch.FunctionCall
	switch {
	case q.Get("action") == "list":
		call = dispatch.AppMetadataCall()
	case q.Get("action") == "categories":
		call = dispatch.CategoriesCall()
	case q.Has("category"):
		c, err := dispatch.LayersCall(q.Get("category"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, metadataError{Error: "Categoría no válida"})
			return
		}
		call = c
	default:
		writeJSON(w, http.StatusBadRequest, metadataError{Error: "Acción no válida"})
		return
	}

	raw, err := a.Exec.Execute(r.Context(), call)
	if err != nil {
		a.logFailure(r.Context(), http.StatusInternalServerError, err)
		writeJSON(w, http.StatusInternalServerError, metadataError{Error: "Metadata error: " + err.Error()})
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("[]")
	}
	writeRaw(w, http.StatusOK, raw)
}
