package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/rurair-map/internal/legend"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

// legend renders the legend for ?kind= as JSON or, with format=png, as the
// gradient strip image. unit overrides the palette unit.
func (a *API) legend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := strings.TrimSpace(q.Get("kind"))
	if kind == "" {
		a.fail(r.Context(), w, &params.InvalidParameterError{Field: "kind", Reason: "is required"})
		return
	}
	scale, ok := a.Palettes.Scale(kind)
	if !ok {
		a.fail(r.Context(), w, &params.InvalidParameterError{Field: "kind", Reason: "has no colour scale"})
		return
	}
	widget, err := legend.ForScale(scale, q.Get("unit"))
	if err != nil {
		a.fail(r.Context(), w, err)
		return
	}

	switch q.Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, widget)
	case "png":
		var buf bytes.Buffer
		if err := widget.WritePNG(&buf); err != nil {
			a.fail(r.Context(), w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(buf.Bytes())
	default:
		a.fail(r.Context(), w, &params.InvalidParameterError{Field: "format", Reason: "must be json or png"})
	}
}
