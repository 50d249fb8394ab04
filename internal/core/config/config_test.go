package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ADDR", "")
	t.Setenv("CLUSTER_RES", "")
	cfg := FromEnv()
	if cfg.Addr != ":8090" {
		t.Fatalf("Addr=%q want :8090", cfg.Addr)
	}
	if cfg.ClusterRes != 7 {
		t.Fatalf("ClusterRes=%d want 7", cfg.ClusterRes)
	}
	if cfg.CacheTTLDefault != 5*time.Minute {
		t.Fatalf("CacheTTLDefault=%v want 5m", cfg.CacheTTLDefault)
	}
}

func TestFromEnv_ClusterResOutOfRangeFallsBack(t *testing.T) {
	t.Setenv("CLUSTER_RES", "22")
	if got := FromEnv().ClusterRes; got != 7 {
		t.Fatalf("ClusterRes=%d want 7", got)
	}
}

func TestTTLFor_Overrides(t *testing.T) {
	t.Setenv("CACHE_TTL_DEFAULT", "30s")
	t.Setenv("CACHE_TTL_OVERRIDES", "get_geojson_categories=1h, bad, =5m,get_signal_geojson_optimized=nope")
	cfg := FromEnv()
	if got := cfg.TTLFor("get_geojson_categories"); got != time.Hour {
		t.Fatalf("override ttl=%v want 1h", got)
	}
	if got := cfg.TTLFor("get_signal_geojson_optimized"); got != 30*time.Second {
		t.Fatalf("unparseable override must fall back, got %v", got)
	}
	if len(cfg.CacheTTLOvr) != 1 {
		t.Fatalf("overrides=%v want one entry", cfg.CacheTTLOvr)
	}
}

func TestFromEnv_Metrics(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "yes")
	t.Setenv("METRICS_PATH", "")
	m := FromEnv().Metrics
	if !m.Enabled || m.Addr != ":9090" || m.Path != "/metrics" {
		t.Fatalf("metrics=%+v", m)
	}
}
