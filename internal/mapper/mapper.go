// Package mapper converts between geographic coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
)

type Interface interface {
	CellForPoint(lat, lng float64, res int) (string, error)
	ToParent(cell string, parentRes int) (string, error)
	Center(cell string) (lat, lng float64, err error)
	CellsForBBox(bb model.BBox, res int) ([]string, error)
}
