package redisstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/rurair-map/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte(`{"type":"FeatureCollection"}`), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"type":"FeatureCollection"}` {
		t.Fatalf("value=%q", got)
	}

	_, ok, err = rc.Get(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatal("key still present after Del")
	}
}

func TestSet_TTLApplied(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "ttl:k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("ttl:k"); ttl != 30*time.Second {
		t.Fatalf("ttl=%v want 30s", ttl)
	}
	mr.FastForward(31 * time.Second)
	if _, ok, _ := rc.Get(ctx, "ttl:k"); ok {
		t.Fatal("key must expire")
	}
}

func TestDelPrefix_RemovesOnlyMatching(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for i := range 600 {
		_ = mr.Set(fmt.Sprintf("rurair:v1:get_signal_geojson_optimized:%d", i), "x")
	}
	_ = mr.Set("rurair:v1:get_geojson_categories:args=", "keep")

	n, err := rc.DelPrefix(ctx, "rurair:v1:get_signal_geojson_optimized:")
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 600 {
		t.Fatalf("removed=%d want 600", n)
	}
	if !mr.Exists("rurair:v1:get_geojson_categories:args=") {
		t.Fatal("unrelated key removed")
	}
	if left := mr.Keys(); len(left) != 1 {
		t.Fatalf("keys left=%d want 1", len(left))
	}
	if n, err := rc.DelPrefix(ctx, "rurair:v1:get_signal_geojson_optimized:"); err != nil || n != 0 {
		t.Fatalf("second DelPrefix n=%d err=%v want 0, nil", n, err)
	}
	if _, err := rc.DelPrefix(ctx, ""); err == nil {
		t.Fatal("empty prefix must be rejected")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_RequiresReachableAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("empty address must fail")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, "127.0.0.1:1", WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatal("unreachable redis must fail the ping")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p, err := metrics.Init(metrics.Config{})
	if err != nil {
		t.Fatalf("metrics init: %v", err)
	}

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `cache_op_total{op="set"`) ||
		!strings.Contains(body, `cache_op_total{op="get"`) ||
		!strings.Contains(body, `cache_op_total{op="del"`) {
		t.Fatalf("missing cache_op_total metrics; got:\n%s", body)
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}
