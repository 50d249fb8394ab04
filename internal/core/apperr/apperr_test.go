package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus_Taxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{fmt.Errorf("days_back: %w", ErrValidation), http.StatusBadRequest, "INVALID_PARAMETERS"},
		{fmt.Errorf("x: %w", ErrUnsupportedCategory), http.StatusBadRequest, "UNSUPPORTED_CATEGORY"},
		{fmt.Errorf("session abc: %w", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("dial: %w", ErrNetwork), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{fmt.Errorf("fn: %w", ErrUpstream), http.StatusInternalServerError, "PROCESSING_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v)=%d want %d", c.err, got, c.want)
		}
		if got := Code(c.err); got != c.code {
			t.Fatalf("Code(%v)=%q want %q", c.err, got, c.code)
		}
	}
	if HTTPStatus(nil) != http.StatusOK {
		t.Fatalf("nil error must map to 200")
	}
}
