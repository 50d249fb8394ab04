package markers

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/mapper"
)

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// SizeFor classifies a cluster by member count.
func SizeFor(count int) Size {
	switch {
	case count >= 100:
		return SizeLarge
	case count >= 10:
		return SizeMedium
	default:
		return SizeSmall
	}
}

const (
	defaultConcentration = 0.0
	defaultIntensity     = -130.0
)

type Icon struct {
	Color   colorscale.RGB `json:"-"`
	Fill    string         `json:"fill"`
	Average float64        `json:"average"`
	Count   int            `json:"count"`
	Size    Size           `json:"size"`
	Type    Type           `json:"type"`
}

// ClusterIcon summarises markers: when any member is a concentration marker the
// icon averages concentration values and colours by that member's pollutant,
// otherwise it averages intensity.
func ClusterIcon(reg *colorscale.Registry, ms []Marker) Icon {
	typ := TypeIntensity
	layer := ""
	for _, m := range ms {
		if m.Type == TypeConcentration {
			typ = TypeConcentration
			layer = m.Layer
			break
		}
	}

	sum, n := 0.0, 0
	for _, m := range ms {
		if m.Type != typ || m.Value == nil {
			continue
		}
		sum += *m.Value
		n++
	}

	avg := defaultIntensity
	kind := colorscale.KindSignal
	if typ == TypeConcentration {
		avg = defaultConcentration
		kind = layer
	}
	if n > 0 {
		avg = sum / float64(n)
	}

	c := reg.ColorFor(avg, kind)
	return Icon{
		Color:   c,
		Fill:    c.String(),
		Average: avg,
		Count:   len(ms),
		Size:    SizeFor(len(ms)),
		Type:    typ,
	}
}

type Cluster struct {
	Cell    string    `json:"cell"`
	Center  orb.Point `json:"center"` // lon, lat
	Icon    Icon      `json:"icon"`
	Members []Marker  `json:"-"`
}

// Clusterer groups markers by their H3 ancestor cell.
type Clusterer struct {
	reg   *colorscale.Registry
	cells mapper.Interface
}

func NewClusterer(reg *colorscale.Registry, cells mapper.Interface) *Clusterer {
	return &Clusterer{reg: reg, cells: cells}
}

// Cluster groups ms at resolution res (0..CellRes), sorted by cell. Markers
// without a cell are located from their position.
func (c *Clusterer) Cluster(ms []Marker, res int) ([]Cluster, error) {
	if res < 0 || res > CellRes {
		return nil, fmt.Errorf("cluster resolution %d out of range 0..%d", res, CellRes)
	}
	groups := make(map[string][]Marker)
	for _, m := range ms {
		cell := m.Cell
		var err error
		if cell == "" {
			cell, err = c.cells.CellForPoint(m.Lat(), m.Lng(), res)
		} else {
			cell, err = c.cells.ToParent(cell, res)
		}
		if err != nil {
			return nil, fmt.Errorf("cluster marker at %v: %w", m.Position, err)
		}
		groups[cell] = append(groups[cell], m)
	}

	out := make([]Cluster, 0, len(groups))
	for cell, members := range groups {
		lat, lng, err := c.cells.Center(cell)
		if err != nil {
			return nil, err
		}
		out = append(out, Cluster{
			Cell:    cell,
			Center:  orb.Point{lng, lat},
			Icon:    ClusterIcon(c.reg, members),
			Members: members,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out, nil
}

// Bounds is the bounding box of every marker position.
func Bounds(ms []Marker) (orb.Bound, bool) {
	if len(ms) == 0 {
		return orb.Bound{}, false
	}
	b := ms[0].Position.Bound()
	for _, m := range ms[1:] {
		b = b.Extend(m.Position)
	}
	return b, true
}
