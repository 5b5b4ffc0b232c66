package listing

import (
	"github.com/mmcloughlin/geohash"

	"github.com/sells-group/property-map/internal/model"
)

// geohashUpperBound sorts after every geohash character.
const geohashUpperBound = "~"

// geohashCover returns the longest geohash prefix shared by every point of v,
// or "" when v is malformed or no cell smaller than the world contains it.
// Each prefix names an axis-aligned cell, so a cell holding both corners holds
// the whole rectangle.
func geohashCover(v model.Viewport) string {
	if !v.IsWellFormed() || !encodable(v.SouthWest) || !encodable(v.NorthEast) {
		return ""
	}
	sw := geohash.Encode(v.SouthWest.Lat, v.SouthWest.Lng)
	ne := geohash.Encode(v.NorthEast.Lat, v.NorthEast.Lng)
	n := 0
	for n < len(sw) && n < len(ne) && sw[n] == ne[n] {
		n++
	}
	return sw[:n]
}

// encodable excludes the upper edges, where geohash quantization wraps.
func encodable(c model.Coordinates) bool {
	return c.Lat >= -90 && c.Lat < 90 && c.Lng >= -180 && c.Lng < 180
}
