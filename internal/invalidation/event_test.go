package invalidation

import (
	"slices"
	"testing"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate(t *testing.T) {
	ok := Event{Version: 1, Op: OpRefresh, Dataset: DatasetSignal, TS: mustTS()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	cases := map[string]func(*Event){
		"version":        func(e *Event) { e.Version = 2 },
		"op":             func(e *Event) { e.Op = "delete" },
		"dataset":        func(e *Event) { e.Dataset = "weather" },
		"blank category": func(e *Event) { e.Category = "  " },
		"missing ts":     func(e *Event) { e.TS = time.Time{} },
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			ev := ok
			mod(&ev)
			if err := ev.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestEvent_Functions(t *testing.T) {
	sig := Event{Dataset: DatasetSignal}.Functions()
	if !slices.Contains(sig, dispatch.FnSignalGeoJSON) || slices.Contains(sig, dispatch.FnPollutionGeoJSON) {
		t.Fatalf("signal functions = %v", sig)
	}
	meta := Event{Dataset: DatasetMetadata}.Functions()
	if !slices.Contains(meta, dispatch.FnCategories) || slices.Contains(meta, dispatch.FnSignalCharts) {
		t.Fatalf("metadata functions = %v", meta)
	}
	if all := (Event{Dataset: DatasetAll}).Functions(); len(all) != 7 {
		t.Fatalf("all functions = %v", all)
	}
	if fns := (Event{Dataset: "x"}).Functions(); fns != nil {
		t.Fatalf("unknown dataset functions = %v", fns)
	}
}
