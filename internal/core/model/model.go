// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type CategoryKind string

const (
	KindSignal    CategoryKind = "signal"
	KindPollution CategoryKind = "pollution"
)

func (k CategoryKind) Valid() bool {
	return k == KindSignal || k == KindPollution
}

// Category is a top-level dataset grouping: one operator-coverage dataset or the
// air-pollution dataset.
type Category struct {
	Name string       `json:"name"`
	Kind CategoryKind `json:"kind"`
}

func (c Category) IsPollution() bool { return c.Kind == KindPollution }

// SameName compares category names the way the data engine does (case-insensitive, trimmed).
func (c Category) SameName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}

type BBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (b BBox) Validate() error {
	if b.South >= b.North || b.West >= b.East {
		return fmt.Errorf("bbox: south < north and west < east")
	}
	return nil
}

// JSON is the jsonb argument form expected by the stored functions.
func (b BBox) JSON() string {
	raw, _ := json.Marshal(b)
	return string(raw)
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// LayerInfo is one selectable dataset within a category.
type LayerInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Unit        string `json:"unit,omitempty"`
}
