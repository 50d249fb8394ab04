package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/rurair-map/internal/core/health"
)

type pingFn func(context.Context) error

func (f pingFn) Ping(ctx context.Context) error { return f(ctx) }

type app struct{}

func (app) Mount(r chi.Router) {
	r.Get("/api/categories", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestNewRouter_Routes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h := NewRouter(discard(), app{}, Options{Metrics: metrics})

	if rr := get(t, h, "/healthz"); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz=%d %q", rr.Code, rr.Body.String())
	}
	if rr := get(t, h, "/metrics"); !strings.HasPrefix(rr.Body.String(), "# metrics") {
		t.Fatalf("metrics body=%q", rr.Body.String())
	}
	if rr := get(t, h, "/api/categories"); rr.Code != http.StatusOK || rr.Body.String() != "[]" {
		t.Fatalf("api=%d %q", rr.Code, rr.Body.String())
	}
	if rr := get(t, h, "/api/categories"); rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestNewRouter_ReadinessReportsFailingCheck(t *testing.T) {
	h := NewRouter(discard(), nil, Options{Ready: []health.Check{
		{Name: "postgres", Pinger: pingFn(func(context.Context) error { return nil })},
		{Name: "redis", Pinger: pingFn(func(context.Context) error { return errors.New("refused") })},
	}})
	rr := get(t, h, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"redis":"refused"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
	if rr := get(t, h, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler=%d want 404", rr.Code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, "127.0.0.1:0", discard(), http.NotFoundHandler()); err != nil {
		t.Fatalf("run: %v", err)
	}
}
