// Package metrics owns the Prometheus registry of the service: runtime
// collectors, build info and the application collectors, plus the optional
// dedicated listener that serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
)

const DefaultPath = "/metrics"

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Enabled bool
	// Addr is the dedicated listener; empty serves metrics on the main router.
	Addr  string
	Path  string
	Build BuildInfo
}

type Provider struct {
	cfg Config
	reg *prometheus.Registry
}

// Init builds a fresh registry and registers every collector the service
// exports on it.
func Init(cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Build.Version == "" {
		cfg.Build.Version = "dev"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info of the rurair binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date", "goversion"},
	)
	reg.MustRegister(build)
	b := cfg.Build
	build.WithLabelValues(b.Version, b.Revision, b.Branch, b.BuildDate, runtime.Version()).Set(1)

	if err := observability.Init(reg); err != nil {
		return nil, fmt.Errorf("register application metrics: %w", err)
	}
	return &Provider{cfg: cfg, reg: reg}, nil
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

func (p *Provider) Path() string { return p.cfg.Path }

// Separate reports whether metrics need their own listener next to mainAddr.
func (p *Provider) Separate(mainAddr string) bool {
	return p.cfg.Addr != "" && p.cfg.Addr != mainAddr
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }

// Serve runs the dedicated metrics listener until ctx is cancelled.
func (p *Provider) Serve(ctx context.Context, zl *zerolog.Logger) error {
	if p.cfg.Addr == "" {
		return errors.New("metrics: no listen address")
	}
	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, p.Handler())
	srv := &http.Server{
		Addr:              p.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", p.cfg.Addr).Str("path", p.cfg.Path).Msg("metrics listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn().Err(err).Msg("metrics shutdown")
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	}
}
