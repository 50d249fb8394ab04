// Package invalidation describes dataset refresh events and the stored
// functions whose cached responses they make stale.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
)

const (
	OpRefresh = "refresh"

	DatasetSignal    = "signal"
	DatasetPollution = "pollution"
	DatasetMetadata  = "metadata"
	DatasetAll       = "all"
)

// Event is published after an import job reloads a dataset.
type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	Dataset  string    `json:"dataset"`
	Category string    `json:"category,omitempty"`
	TS       time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.Op != OpRefresh {
		return fmt.Errorf("op must be refresh")
	}
	switch e.Dataset {
	case DatasetSignal, DatasetPollution, DatasetMetadata, DatasetAll:
	default:
		return fmt.Errorf("dataset must be signal|pollution|metadata|all")
	}
	if e.Category != "" && strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("category must not be blank")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Functions lists the stored functions whose cached responses the event
// invalidates. Layer lists change with the data, so both data datasets
// include the layers function.
func (e Event) Functions() []string {
	switch e.Dataset {
	case DatasetSignal:
		return []string{dispatch.FnSignalGeoJSON, dispatch.FnSignalCharts, dispatch.FnLayers}
	case DatasetPollution:
		return []string{dispatch.FnPollutionGeoJSON, dispatch.FnPollutionCharts, dispatch.FnLayers}
	case DatasetMetadata:
		return []string{dispatch.FnCategories, dispatch.FnLayers, dispatch.FnAppMetadata}
	case DatasetAll:
		return []string{
			dispatch.FnSignalGeoJSON, dispatch.FnSignalCharts,
			dispatch.FnPollutionGeoJSON, dispatch.FnPollutionCharts,
			dispatch.FnCategories, dispatch.FnLayers, dispatch.FnAppMetadata,
		}
	}
	return nil
}

