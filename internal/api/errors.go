package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

// errorBody is {error, message, code}, the shape map clients already parse.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (a *API) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.Code(err)
	msg := err.Error()
	if code == "UNKNOWN_ERROR" {
		msg = "Unexpected error"
	}
	a.logFailure(ctx, status, err)
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: msg, Code: code})
}

func (a *API) logFailure(ctx context.Context, status int, err error) {
	var ipe *params.InvalidParameterError
	if errors.As(err, &ipe) {
		observability.IncValidationFailure(ipe.Field)
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.Log.Log(ctx, level, "request failed", "status", status, "err", err)
}
