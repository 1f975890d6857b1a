// Package geo provides the flat-Earth distance/bearing approximation used
// for nearby traffic. Adequate within the ~15 km alarm horizon; not a
// general-purpose geodesy library.
package geo

import "math"

const (
	// MetersPerDegree is the linear size of one degree of latitude.
	MetersPerDegree = 111300.0

	DegToRad = math.Pi / 180.0
	RadToDeg = 180.0 / math.Pi
)

// CosLat caches cos(latitude) so per-packet distance math avoids a cosine.
// The cache is refreshed once latitude has drifted more than 0.3 degrees,
// which keeps the longitude scale error well under GPS noise.
type CosLat struct {
	cachedLat float64
	cos       float64
	inv       float64
}

// NewCosLat seeds the cache at 45 degrees, matching a mid-latitude start
// before the first GNSS fix arrives.
func NewCosLat() *CosLat {
	return &CosLat{
		cachedLat: 45.0,
		cos:       0.7071,
		inv:       1.4142,
	}
}

// Update refreshes the cached cosine if latitude moved more than 0.3 degrees.
func (c *CosLat) Update(latDeg float64) {
	if math.Abs(latDeg-c.cachedLat) > 0.3 {
		c.cos = math.Cos(DegToRad * latDeg)
		if c.cos > 0.01 {
			// near the poles keep the previous inverse rather than blow up
			c.inv = 1.0 / c.cos
		}
		c.cachedLat = latDeg
	}
}

// Cos returns the cached cos(latitude).
func (c *CosLat) Cos() float64 { return c.cos }

// Inv returns the cached 1/cos(latitude).
func (c *CosLat) Inv() float64 { return c.inv }

// Offsets holds the relative geometry of a target with respect to the host.
type Offsets struct {
	Dx       int32   // meters east
	Dy       int32   // meters north
	Distance float64 // meters
	Bearing  float64 // degrees, 0..360, from host to target
}

// Relative computes the equirectangular offsets from (lat1,lon1) to
// (lat2,lon2) using the cached cosine for the longitude scale.
func Relative(c *CosLat, lat1, lon1, lat2, lon2 float64) Offsets {
	y := MetersPerDegree * (lat2 - lat1)
	x := MetersPerDegree * (lon2 - lon1) * c.Cos()
	bearing := RadToDeg * math.Atan2(x, y)
	if bearing < 0 {
		bearing += 360
	}
	return Offsets{
		Dx:       int32(x),
		Dy:       int32(y),
		Distance: math.Hypot(x, y),
		Bearing:  bearing,
	}
}

// RelativeHeading folds bearing minus heading into the signed -180..+180
// range.
func RelativeHeading(bearingDeg, headingDeg float64) int {
	rel := int(bearingDeg - headingDeg)
	if rel < -180 {
		rel += 360
	} else if rel > 180 {
		rel -= 360
	}
	return rel
}
