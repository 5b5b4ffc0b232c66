package model

import "math"

// Viewport is the visible rectangular map region, given by its southwest and
// northeast corners. Antimeridian crossing is not supported.
type Viewport struct {
	SouthWest Coordinates `json:"sw"`
	NorthEast Coordinates `json:"ne"`
}

// NewViewport builds a viewport from corner values.
func NewViewport(swLng, swLat, neLng, neLat float64) Viewport {
	return Viewport{
		SouthWest: Coordinates{Lng: swLng, Lat: swLat},
		NorthEast: Coordinates{Lng: neLng, Lat: neLat},
	}
}

// Sanitize replaces non-finite corner values with 0. Malformed input is not
// rejected; it simply describes a degenerate rectangle.
func (v Viewport) Sanitize() Viewport {
	return Viewport{
		SouthWest: Coordinates{Lng: finiteOrZero(v.SouthWest.Lng), Lat: finiteOrZero(v.SouthWest.Lat)},
		NorthEast: Coordinates{Lng: finiteOrZero(v.NorthEast.Lng), Lat: finiteOrZero(v.NorthEast.Lat)},
	}
}

// IsWellFormed reports whether all corners are finite and southwest <= northeast
// on both axes.
func (v Viewport) IsWellFormed() bool {
	for _, f := range []float64{v.SouthWest.Lng, v.SouthWest.Lat, v.NorthEast.Lng, v.NorthEast.Lat} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return v.SouthWest.Lng <= v.NorthEast.Lng && v.SouthWest.Lat <= v.NorthEast.Lat
}

// Contains reports whether c lies inside the rectangle, boundary inclusive.
func (v Viewport) Contains(c Coordinates) bool {
	return c.Lng >= v.SouthWest.Lng && c.Lng <= v.NorthEast.Lng &&
		c.Lat >= v.SouthWest.Lat && c.Lat <= v.NorthEast.Lat
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
