package invalidation_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/rurair-map/internal/cache/redisstore"
	"github.com/mohammed-shakir/rurair-map/internal/core/executor"
	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation/kafkaconsumer"
)

type countingStore struct {
	mu    sync.Mutex
	calls map[string]int
}

func (s *countingStore) CallJSON(_ context.Context, call dispatch.FunctionCall) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[call.Name]++
	return []byte(`{"type":"FeatureCollection","features":[]}`), nil
}

func (s *countingStore) count(fn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[fn]
}

func TestIntegration_Miniredis_RefreshDropsCachedResponses(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := observability.Init(reg); err != nil {
		t.Fatal(err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := &countingStore{calls: map[string]int{}}
	exec := executor.New(quiet, st,
		executor.WithCache(rc, time.Second, func(string) time.Duration { return time.Hour }))

	signal := dispatch.FunctionCall{Name: dispatch.FnSignalGeoJSON}
	pollution := dispatch.FunctionCall{Name: dispatch.FnPollutionGeoJSON}
	ctx := context.Background()
	for range 2 {
		for _, call := range []dispatch.FunctionCall{signal, pollution} {
			if _, err := exec.Execute(ctx, call); err != nil {
				t.Fatal(err)
			}
		}
	}
	if st.count(dispatch.FnSignalGeoJSON) != 1 || st.count(dispatch.FnPollutionGeoJSON) != 1 {
		t.Fatalf("warm-up calls = %v", st.calls)
	}

	cons := kafkaconsumer.New(kafkaconsumer.Config{Topic: "dataset-refresh"}, quiet, exec, nil)
	body, _ := json.Marshal(invalidation.Event{
		Version: 1, Op: invalidation.OpRefresh, Dataset: invalidation.DatasetSignal, TS: time.Now().UTC(),
	})
	if err := cons.ProcessOne(ctx, &sarama.ConsumerMessage{Topic: "dataset-refresh", Offset: 1, Value: body}); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	for _, call := range []dispatch.FunctionCall{signal, pollution} {
		if _, err := exec.Execute(ctx, call); err != nil {
			t.Fatal(err)
		}
	}
	if got := st.count(dispatch.FnSignalGeoJSON); got != 2 {
		t.Fatalf("signal store calls = %d, want 2 after refresh", got)
	}
	if got := st.count(dispatch.FnPollutionGeoJSON); got != 1 {
		t.Fatalf("pollution store calls = %d, want 1", got)
	}

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `invalidations_total{dataset="signal"} 1`) {
		t.Fatalf("metrics missing invalidation counter:\n%s", rr.Body.String())
	}
}
