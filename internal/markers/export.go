package markers

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports markers as GeoJSON points carrying their style.
func FeatureCollection(ms []Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range ms {
		f := geojson.NewFeature(m.Position)
		f.Properties["fill"] = m.Color.String()
		f.Properties["fill_hex"] = m.Color.Hex()
		f.Properties["type"] = string(m.Type)
		f.Properties["layer"] = m.Layer
		f.Properties["unit"] = m.Unit
		f.Properties["popup"] = m.Popup
		if m.Value != nil {
			f.Properties["value"] = *m.Value
		} else {
			f.Properties["value"] = nil
		}
		if m.Cell != "" {
			f.Properties["cell"] = m.Cell
		}
		if m.Count > 0 {
			f.Properties["measurement_count"] = m.Count
		}
		fc.Append(f)
	}
	return fc
}

// ClusterCollection exports clusters as GeoJSON points at their cell centres.
func ClusterCollection(cs []Cluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cs {
		f := geojson.NewFeature(c.Center)
		f.ID = c.Cell
		f.Properties["cell"] = c.Cell
		f.Properties["fill"] = c.Icon.Fill
		f.Properties["count"] = c.Icon.Count
		f.Properties["size"] = string(c.Icon.Size)
		f.Properties["average"] = c.Icon.Average
		f.Properties["type"] = string(c.Icon.Type)
		fc.Append(f)
	}
	return fc
}
