package geomutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

// square builds a closed axis-aligned ring around (lat, lon) spanning
// ±dDeg degrees. Coordinates are X=lon, Y=lat.
func square(lat, lon, dDeg float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		lon - dDeg, lat - dDeg,
		lon + dDeg, lat - dDeg,
		lon + dDeg, lat + dDeg,
		lon - dDeg, lat + dDeg,
		lon - dDeg, lat - dDeg,
	}, []int{10})
}

func squareWithHole(lat, lon, outer, hole float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		lon - outer, lat - outer,
		lon + outer, lat - outer,
		lon + outer, lat + outer,
		lon - outer, lat + outer,
		lon - outer, lat - outer,

		lon - hole, lat - hole,
		lon + hole, lat - hole,
		lon + hole, lat + hole,
		lon - hole, lat + hole,
		lon - hole, lat - hole,
	}, []int{10, 20})
}

func TestHaversineM(t *testing.T) {
	// One degree of latitude is about 111.2 km everywhere.
	d := HaversineM(56.0, 24.0, 57.0, 24.0)
	assert.InDelta(t, 111195, d, 500)

	// Zero distance.
	assert.InDelta(t, 0, HaversineM(56.95, 24.1, 56.95, 24.1), 0.001)
}

func TestHaversineM_Symmetric(t *testing.T) {
	a := HaversineM(56.95, 24.10, 56.96, 24.12)
	b := HaversineM(56.96, 24.12, 56.95, 24.10)
	assert.InDelta(t, a, b, 1e-9)
}

func TestAreaM2_Square(t *testing.T) {
	// 0.0002° × 0.0002° at 56.95°N ≈ 22.2 m × 12.1 m ≈ 270 m².
	p := square(56.95, 24.10, 0.0001)
	area := AreaM2(p)
	assert.InDelta(t, 270, area, 30)
}

func TestAreaM2_HoleSubtracted(t *testing.T) {
	solid := AreaM2(square(56.95, 24.10, 0.001))
	holed := AreaM2(squareWithHole(56.95, 24.10, 0.001, 0.0005))
	assert.Less(t, holed, solid)
	assert.Greater(t, holed, 0.0)
}

func TestAreaM2_MultiPolygonSums(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	assert.NoError(t, mp.Push(square(56.95, 24.10, 0.0001)))
	assert.NoError(t, mp.Push(square(56.96, 24.12, 0.0001)))

	single := AreaM2(square(56.95, 24.10, 0.0001))
	assert.InDelta(t, 2*single, AreaM2(mp), single*0.05)
}

func TestAreaM2_UnsupportedType(t *testing.T) {
	assert.Equal(t, 0.0, AreaM2(geom.NewPointFlat(geom.XY, []float64{24.1, 56.95})))
}

func TestCentroid(t *testing.T) {
	lat, lon := Centroid(square(56.95, 24.10, 0.001))
	assert.InDelta(t, 56.95, lat, 1e-9)
	assert.InDelta(t, 24.10, lon, 1e-9)
}

func TestCentroid_Empty(t *testing.T) {
	lat, lon := Centroid(geom.NewPolygon(geom.XY))
	assert.Equal(t, 0.0, lat)
	assert.Equal(t, 0.0, lon)
}

func TestContainsPoint(t *testing.T) {
	p := square(56.95, 24.10, 0.001)

	assert.True(t, ContainsPoint(p, 56.95, 24.10))
	assert.True(t, ContainsPoint(p, 56.9505, 24.1005))
	assert.False(t, ContainsPoint(p, 56.96, 24.10))
	assert.False(t, ContainsPoint(p, 56.95, 24.20))
}

func TestContainsPoint_Hole(t *testing.T) {
	p := squareWithHole(56.95, 24.10, 0.001, 0.0005)

	// In the courtyard: outside the building.
	assert.False(t, ContainsPoint(p, 56.95, 24.10))
	// Between hole and outer ring.
	assert.True(t, ContainsPoint(p, 56.95, 24.10+0.0008))
}

func TestContainsPoint_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	assert.NoError(t, mp.Push(square(56.95, 24.10, 0.001)))
	assert.NoError(t, mp.Push(square(56.97, 24.15, 0.001)))

	assert.True(t, ContainsPoint(mp, 56.95, 24.10))
	assert.True(t, ContainsPoint(mp, 56.97, 24.15))
	assert.False(t, ContainsPoint(mp, 56.96, 24.125))
}
