package overpass

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/cityatlas/resolver-cli/internal/geomutil"
)

// Feature is one way or relation converted to polygon geometry. Geometry is
// a *geom.Polygon or *geom.MultiPolygon with X=lon, Y=lat.
type Feature struct {
	Type     string
	ID       int64
	Tags     map[string]string
	Geometry geom.T
}

// Tag returns the value for key, or "" when absent.
func (f Feature) Tag(key string) string {
	return f.Tags[key]
}

// IsBuildingPart reports whether the feature is a sub-building part rather
// than a whole building.
func (f Feature) IsBuildingPart() bool {
	return f.Tags["building:part"] != "" && f.Tags["building"] == ""
}

// featureFromElement converts one Overpass element to a Feature. Nodes and
// elements without usable polygon geometry yield nil without error; malformed
// geometry yields an error for the caller to log and skip.
func featureFromElement(el element) (*Feature, error) {
	switch el.Type {
	case "way":
		ring := coordsFromPoints(el.Geometry)
		ring = closeRing(ring)
		if ring == nil {
			return nil, eris.Errorf("way %d: open or degenerate ring", el.ID)
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flatCoords(ring))); err != nil {
			return nil, eris.Wrapf(err, "way %d: build ring", el.ID)
		}
		return &Feature{Type: el.Type, ID: el.ID, Tags: el.Tags, Geometry: poly}, nil

	case "relation":
		g, err := relationGeometry(el)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, nil
		}
		return &Feature{Type: el.Type, ID: el.ID, Tags: el.Tags, Geometry: g}, nil

	default:
		return nil, nil
	}
}

// relationGeometry assembles a relation's member ways into polygons with
// holes. Outer rings may arrive split across several member ways and are
// stitched end to end.
func relationGeometry(el element) (geom.T, error) {
	var outerSegs, innerSegs [][]geom.Coord
	for _, m := range el.Members {
		if m.Type != "way" || len(m.Geometry) == 0 {
			continue
		}
		coords := coordsFromPoints(m.Geometry)
		switch m.Role {
		case "inner":
			innerSegs = append(innerSegs, coords)
		// type=building relations mark their footprint way "outline" rather
		// than "outer".
		case "outer", "outline", "":
			outerSegs = append(outerSegs, coords)
		}
	}

	outers := assembleRings(outerSegs)
	if len(outers) == 0 {
		return nil, nil
	}
	inners := assembleRings(innerSegs)

	polys := make([]*geom.Polygon, 0, len(outers))
	for _, outer := range outers {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flatCoords(outer))); err != nil {
			return nil, eris.Wrapf(err, "relation %d: build outer ring", el.ID)
		}
		polys = append(polys, poly)
	}

	// Assign each hole to the outer ring containing its first vertex.
	for _, inner := range inners {
		for _, poly := range polys {
			if geomutil.ContainsPoint(poly, inner[0][1], inner[0][0]) {
				if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flatCoords(inner))); err != nil {
					return nil, eris.Wrapf(err, "relation %d: build inner ring", el.ID)
				}
				break
			}
		}
	}

	if len(polys) == 1 {
		return polys[0], nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrapf(err, "relation %d: build multipolygon", el.ID)
		}
	}
	return mp, nil
}

// assembleRings stitches way segments into closed rings by matching
// endpoints. Segments that cannot be closed are dropped.
func assembleRings(segs [][]geom.Coord) [][]geom.Coord {
	var rings [][]geom.Coord
	used := make([]bool, len(segs))

	for i := range segs {
		if used[i] || len(segs[i]) < 2 {
			continue
		}
		used[i] = true
		ring := append([]geom.Coord(nil), segs[i]...)

		for !isClosed(ring) {
			extended := false
			for j := range segs {
				if used[j] || len(segs[j]) < 2 {
					continue
				}
				seg := segs[j]
				switch {
				case sameCoord(ring[len(ring)-1], seg[0]):
					ring = append(ring, seg[1:]...)
				case sameCoord(ring[len(ring)-1], seg[len(seg)-1]):
					ring = append(ring, reverse(seg)[1:]...)
				default:
					continue
				}
				used[j] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}

		if closed := closeRing(ring); closed != nil {
			rings = append(rings, closed)
		}
	}

	return rings
}

// closeRing validates and closes a candidate ring. Returns nil when the ring
// is degenerate or its endpoints are too far apart to snap shut.
func closeRing(ring []geom.Coord) []geom.Coord {
	if len(ring) < 3 {
		return nil
	}
	if sameCoord(ring[0], ring[len(ring)-1]) {
		if len(ring) < 4 {
			return nil
		}
		return ring
	}
	// Snap near-coincident endpoints; anything else is a genuinely open way.
	const snapDeg = 1e-7
	dx := ring[0][0] - ring[len(ring)-1][0]
	dy := ring[0][1] - ring[len(ring)-1][1]
	if dx > -snapDeg && dx < snapDeg && dy > -snapDeg && dy < snapDeg {
		return append(ring, ring[0])
	}
	return nil
}

func isClosed(ring []geom.Coord) bool {
	return len(ring) >= 4 && sameCoord(ring[0], ring[len(ring)-1])
}

func sameCoord(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

func reverse(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}

func coordsFromPoints(pts []latLon) []geom.Coord {
	coords := make([]geom.Coord, 0, len(pts))
	for _, p := range pts {
		coords = append(coords, geom.Coord{p.Lon, p.Lat})
	}
	return coords
}

func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
