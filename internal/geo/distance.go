// Package geo computes great-circle distances between a fixed reference point
// and reported station positions.
package geo

import "math"

const (
	earthRadiusKm = 6373.0
	kmToMiles     = 0.621371
)

// Point is a position in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the haversine distance between a and b rounded to two
// decimals, in kilometres when metric is true and statute miles otherwise.
func Distance(a, b Point, metric bool) float64 {
	lat1 := radians(a.Lat)
	lon1 := radians(a.Lon)
	lat2 := radians(b.Lat)
	lon2 := radians(b.Lon)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	d := earthRadiusKm * c
	if !metric {
		d *= kmToMiles
	}
	return math.Round(d*100) / 100
}

// Reference is the bridge's own location. A nil Reference means no location
// was configured.
type Reference struct {
	Point  Point
	Metric bool
}

// NewReference returns nil when either coordinate is missing.
func NewReference(lat, lon *float64, metric bool) *Reference {
	if lat == nil || lon == nil {
		return nil
	}
	return &Reference{Point: Point{Lat: *lat, Lon: *lon}, Metric: metric}
}

// DistanceTo reports the distance from the reference to p. ok is false when
// r is nil.
func (r *Reference) DistanceTo(p Point) (float64, bool) {
	if r == nil {
		return 0, false
	}
	return Distance(r.Point, p, r.Metric), true
}

// Unit returns "km" or "mi".
func (r *Reference) Unit() string {
	if r == nil || r.Metric {
		return "km"
	}
	return "mi"
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
