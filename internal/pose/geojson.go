package pose

import (
	"sort"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders agent positions as GeoJSON points. The agent id
// and altitude travel as feature properties.
func FeatureCollection(positions map[int]Position) *geojson.FeatureCollection {
	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		p := positions[id]
		f := geojson.NewFeature(p.Point())
		f.Properties["agent"] = id
		f.Properties["z"] = p.Z
		fc.Append(f)
	}
	return fc
}
