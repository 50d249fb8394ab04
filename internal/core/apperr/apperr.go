// Package apperr holds the error taxonomy shared by validation, routing and upstream calls.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation          = errors.New("invalid parameter")
	ErrUnsupportedCategory = errors.New("unsupported category")
	ErrUpstream            = errors.New("upstream error")
	ErrNetwork             = errors.New("network error")
	ErrNotFound            = errors.New("not found")
	// ErrEmptyResult is a warning: the request was valid but produced no usable features.
	ErrEmptyResult = errors.New("empty result")
)

// HTTPStatus maps an error to the response status used by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedCategory):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable error code returned in JSON error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "INVALID_PARAMETERS"
	case errors.Is(err, ErrUnsupportedCategory):
		return "UNSUPPORTED_CATEGORY"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrNetwork):
		return "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, ErrUpstream):
		return "PROCESSING_ERROR"
	case errors.Is(err, ErrEmptyResult):
		return "EMPTY_RESULT"
	default:
		return "UNKNOWN_ERROR"
	}
}
