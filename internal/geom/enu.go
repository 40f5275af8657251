package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// wgs84A/wgs84F are the WGS-84 semi-major axis (meters) and flattening,
// used to convert geodetic coordinates to ECEF before rotating into a
// local East-North-Up frame.
const (
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
)

func wgs84E2() float64 { return wgs84F * (2 - wgs84F) }

// geodeticToECEF converts a GeoPoint to an ECEF vector in meters.
func geodeticToECEF(p GeoPoint) r3.Vector {
	latR := p.Lat * math.Pi / 180
	lonR := p.Lon * math.Pi / 180
	sinLat, cosLat := math.Sin(latR), math.Cos(latR)
	sinLon, cosLon := math.Sin(lonR), math.Cos(lonR)
	n := wgs84A / math.Sqrt(1-wgs84E2()*sinLat*sinLat)
	return r3.Vector{
		X: (n + p.Elev) * cosLat * cosLon,
		Y: (n + p.Elev) * cosLat * sinLon,
		Z: (n*(1-wgs84E2()) + p.Elev) * sinLat,
	}
}

// ENUFrame is a local tangent-plane frame anchored at a reference point,
// used to flatten every node of an intersection's geometry into
// centimeter-scale planar coordinates.
type ENUFrame struct {
	origin        r3.Vector
	east, north   r3.Vector
	refLatR       float64
	refLonR       float64
}

// NewENUFrame anchors a frame at ref.
func NewENUFrame(ref GeoPoint) ENUFrame {
	latR := ref.Lat * math.Pi / 180
	lonR := ref.Lon * math.Pi / 180
	sinLat, cosLat := math.Sin(latR), math.Cos(latR)
	sinLon, cosLon := math.Sin(lonR), math.Cos(lonR)
	return ENUFrame{
		origin:  geodeticToECEF(ref),
		east:    r3.Vector{X: -sinLon, Y: cosLon, Z: 0},
		north:   r3.Vector{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat},
		refLatR: latR,
		refLonR: lonR,
	}
}

// ToPoint2D converts a geodetic position into centimeters east/north of
// the frame's origin.
func (f ENUFrame) ToPoint2D(p GeoPoint) Point2D {
	d := geodeticToECEF(p).Sub(f.origin)
	return Point2D{
		X: f.east.Dot(d) * 100,
		Y: f.north.Dot(d) * 100,
	}
}

// Distance2D returns the planar distance between two Point2D values, in
// the same unit they're expressed in (centimeters for map geometry).
func Distance2D(a, b Point2D) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HeadingDdeg returns the compass heading from a to b in deci-degrees
// (0 = north, clockwise positive), matching a BSM's heading units.
func HeadingDdeg(a, b Point2D) float64 {
	theta := math.Atan2(b.X-a.X, b.Y-a.Y) * 180 / math.Pi
	if theta < 0 {
		theta += 360
	}
	return theta * 10
}
