package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/api"
	"github.com/mohammed-shakir/rurair-map/internal/cache/redisstore"
	"github.com/mohammed-shakir/rurair-map/internal/catalog"
	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/contact"
	"github.com/mohammed-shakir/rurair-map/internal/core/config"
	"github.com/mohammed-shakir/rurair-map/internal/core/executor"
	"github.com/mohammed-shakir/rurair-map/internal/core/health"
	"github.com/mohammed-shakir/rurair-map/internal/core/httpclient"
	"github.com/mohammed-shakir/rurair-map/internal/core/server"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/rurair-map/internal/logger"
	h3mapper "github.com/mohammed-shakir/rurair-map/internal/mapper/h3"
	"github.com/mohammed-shakir/rurair-map/internal/markers"
	"github.com/mohammed-shakir/rurair-map/internal/metrics"
	"github.com/mohammed-shakir/rurair-map/internal/session"
	"github.com/mohammed-shakir/rurair-map/internal/store/pgstore"
	"github.com/mohammed-shakir/rurair-map/internal/tracing"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "rurair-server",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{Enabled: cfg.TracingEnabled, ServiceName: "rurair-server"})
	if err != nil {
		appLog.Error("tracing setup failed", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	prov, err := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    metricsAddr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err != nil {
		appLog.Error("metrics setup failed", "err", err)
		return 1
	}

	appLog.Info("starting rurair-server",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.CacheEnabled,
		"invalidation", cfg.Invalidation.Enabled)

	db, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.DBQueryTimeout, pgstore.WithMaxConns(cfg.DBMaxConns))
	if err != nil {
		appLog.Error("postgres connect failed", "err", err)
		return 1
	}
	defer db.Close()

	ready := []health.Check{{Name: "postgres", Pinger: db}}
	var execOpts []executor.Option
	if cfg.CacheEnabled {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis connect failed", "err", err, "addr", cfg.RedisAddr)
			return 1
		}
		defer func() { _ = rc.Close() }()
		execOpts = append(execOpts, executor.WithCache(rc, cfg.CacheOpTimeout, cfg.TTLFor))
		ready = append(ready, health.Check{Name: "redis", Pinger: rc})
	}
	exec := executor.New(appLog, db, execOpts...)

	palettes, err := colorscale.LoadFile(cfg.PaletteFile)
	if err != nil {
		appLog.Error("palette load failed", "err", err, "file", cfg.PaletteFile)
		return 1
	}

	cat := catalog.New(exec, cfg.MetadataTTL, appLog)
	rt := dispatch.NewRouter(cat)
	cells := h3mapper.New()
	mk := markers.New(palettes, cells)
	sessions := session.NewController(appLog, session.NewStore(cfg.SessionMax, cfg.SessionTTL),
		cat, rt, exec, mk, palettes)

	a := api.New(api.Deps{
		Log:        appLog,
		Catalog:    cat,
		Router:     rt,
		Exec:       exec,
		Markers:    mk,
		Clusterer:  markers.NewClusterer(palettes, cells),
		Palettes:   palettes,
		Sessions:   sessions,
		Contact:    buildContact(cfg, appLog),
		DB:         db,
		ClusterRes: cfg.ClusterRes,
	})

	if cfg.Invalidation.Enabled {
		kzl := zl.With().Str("component", "invalidation").Logger()
		cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, exec, cat,
			kafkaconsumer.WithZerolog(&kzl))
		go func() {
			if err := cons.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	opts := server.Options{Ready: ready, Tracing: cfg.TracingEnabled}
	if cfg.Metrics.Enabled {
		if prov.Separate(cfg.Addr) {
			mzl := zl.With().Str("component", "metrics").Logger()
			go func() {
				if err := prov.Serve(ctx, &mzl); err != nil {
					appLog.Error("metrics listener stopped", "err", err)
				}
			}()
		} else {
			opts.Metrics = prov.Handler()
			opts.MetricsPath = prov.Path()
		}
	}

	if err := server.Run(ctx, cfg.Addr, appLog, server.NewRouter(appLog, a, opts)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// buildContact returns nil when no mail relay is configured, which leaves
// /api/contacto unmounted.
func buildContact(cfg config.Config, log *slog.Logger) *contact.Service {
	if cfg.SMTP.Host == "" || cfg.SMTP.To == "" {
		log.Warn("contact form disabled", "reason", "SMTP_HOST or CONTACT_TO unset")
		return nil
	}
	verifier := contact.NewHCaptcha(cfg.HCaptchaSecret, cfg.HCaptchaVerifyURL, httpclient.NewOutbound(10*time.Second))
	mailer := contact.NewSMTPMailer(contact.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	return contact.NewService(log, verifier, mailer, cfg.SMTP.To)
}
