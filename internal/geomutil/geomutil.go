// Package geomutil provides the planar predicates the matcher needs
// (containment, area, centroid, distance) over go-geom geometries.
// Coordinates are WGS84 with X=lon, Y=lat.
package geomutil

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ringAreaM2 returns the absolute shoelace area of a ring in square meters,
// scaling degrees to meters at the ring's mean latitude. Accurate enough for
// building-sized polygons.
func ringAreaM2(coords []geom.Coord) float64 {
	if len(coords) < 3 {
		return 0
	}

	var meanLat float64
	for _, c := range coords {
		meanLat += c[1]
	}
	meanLat /= float64(len(coords))

	mPerDegLat := 2 * math.Pi * earthRadiusM / 360
	mPerDegLon := mPerDegLat * math.Cos(meanLat*math.Pi/180)

	var sum float64
	for i := 0; i < len(coords); i++ {
		j := (i + 1) % len(coords)
		xi, yi := coords[i][0]*mPerDegLon, coords[i][1]*mPerDegLat
		xj, yj := coords[j][0]*mPerDegLon, coords[j][1]*mPerDegLat
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2
}

// AreaM2 returns the approximate area of a polygon or multipolygon in square
// meters, subtracting interior rings.
func AreaM2(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonAreaM2(t)
	case *geom.MultiPolygon:
		var sum float64
		for i := 0; i < t.NumPolygons(); i++ {
			sum += polygonAreaM2(t.Polygon(i))
		}
		return sum
	default:
		return 0
	}
}

func polygonAreaM2(p *geom.Polygon) float64 {
	if p.NumLinearRings() == 0 {
		return 0
	}
	area := ringAreaM2(p.LinearRing(0).Coords())
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= ringAreaM2(p.LinearRing(i).Coords())
	}
	if area < 0 {
		return 0
	}
	return area
}

// Centroid returns the vertex centroid of the geometry's outer rings as
// (lat, lon). Deterministic and cheap; sufficient for distance tie-breaking.
func Centroid(g geom.T) (lat, lon float64) {
	var sumLat, sumLon float64
	var n int

	add := func(coords []geom.Coord) {
		for _, c := range coords {
			sumLon += c[0]
			sumLat += c[1]
			n++
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() > 0 {
			add(t.LinearRing(0).Coords())
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			if p.NumLinearRings() > 0 {
				add(p.LinearRing(0).Coords())
			}
		}
	}

	if n == 0 {
		return 0, 0
	}
	return sumLat / float64(n), sumLon / float64(n)
}

// ContainsPoint reports whether the point (lat, lon) lies inside the polygon
// or multipolygon, honoring interior rings as holes.
func ContainsPoint(g geom.T, lat, lon float64) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, lat, lon)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), lat, lon) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func polygonContains(p *geom.Polygon, lat, lon float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !ringContains(p.LinearRing(0).Coords(), lat, lon) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if ringContains(p.LinearRing(i).Coords(), lat, lon) {
			return false
		}
	}
	return true
}

// ringContains implements even-odd ray casting.
func ringContains(coords []geom.Coord, lat, lon float64) bool {
	if len(coords) < 3 {
		return false
	}
	inside := false
	j := len(coords) - 1
	for i := 0; i < len(coords); i++ {
		xi, yi := coords[i][0], coords[i][1]
		xj, yj := coords[j][0], coords[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
