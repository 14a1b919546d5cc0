package footprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/pkg/overpass"
)

func testFootprintConfig() config.FootprintConfig {
	return config.FootprintConfig{
		RadiiM:          []float64{80, 120, 160, 200},
		LandmarkRadiusM: 300,

		ContainmentWeight:   100,
		AddressFullBonus:    40,
		AddressHouseBonus:   25,
		BuildingTagBonus:    5,
		DistancePenaltyPerM: 0.05,
		AreaPenaltyPerM2:    0.0002,

		StrongAddressThreshold: 25,
		AmbiguityMargin:        3,

		MergeDistanceM:   50,
		MergeScoreWindow: 10,

		MinAreaM2:     10,
		MaxAreaM2:     200000,
		TopCandidates: 5,
	}
}

// squareAt builds a closed ring polygon centered on (lat, lon) spanning
// ±dDeg degrees. Coordinates are X=lon, Y=lat.
func squareAt(lat, lon, dDeg float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		lon - dDeg, lat - dDeg,
		lon + dDeg, lat - dDeg,
		lon + dDeg, lat + dDeg,
		lon - dDeg, lat + dDeg,
		lon - dDeg, lat - dDeg,
	}, []int{10})
}

func buildingAt(id int64, lat, lon float64, tags map[string]string) overpass.Feature {
	if tags == nil {
		tags = map[string]string{"building": "yes"}
	}
	return overpass.Feature{
		Type:     "way",
		ID:       id,
		Tags:     tags,
		Geometry: squareAt(lat, lon, 0.0001),
	}
}

func TestScoreFeature_ContainmentDominates(t *testing.T) {
	cfg := testFootprintConfig()
	// Point inside feature A; feature B is closer to nothing but has a
	// perfect address.
	a := buildingAt(1, 56.9500, 24.1000, nil)
	b := buildingAt(2, 56.9504, 24.1000, map[string]string{
		"building":         "yes",
		"addr:housenumber": "10",
		"addr:street":      "Brīvības iela",
	})

	variants := []string{"Brīvības iela 10"}
	ca := ScoreFeature(a, 56.9500, 24.1000, variants, cfg)
	cb := ScoreFeature(b, 56.9500, 24.1000, variants, cfg)

	assert.True(t, ca.Contains)
	assert.False(t, cb.Contains)
	assert.Greater(t, ca.Score, cb.Score)
}

func TestScoreFeature_FullAddressBeatsHouseOnly(t *testing.T) {
	cfg := testFootprintConfig()
	full := buildingAt(1, 56.9500, 24.1000, map[string]string{
		"building":         "yes",
		"addr:housenumber": "10",
		"addr:street":      "Brīvības iela",
	})
	houseOnly := buildingAt(2, 56.9500, 24.1000, map[string]string{
		"building":         "yes",
		"addr:housenumber": "10",
		"addr:street":      "Cita iela",
	})

	variants := []string{"Brīvības iela 10"}
	cf := ScoreFeature(full, 56.9495, 24.1000, variants, cfg)
	ch := ScoreFeature(houseOnly, 56.9495, 24.1000, variants, cfg)

	assert.Equal(t, cfg.AddressFullBonus, cf.AddressBonus)
	assert.Equal(t, cfg.AddressHouseBonus, ch.AddressBonus)
	assert.Greater(t, cf.Score, ch.Score)
}

func TestScoreFeature_NoAddressTagNoBonus(t *testing.T) {
	cfg := testFootprintConfig()
	f := buildingAt(1, 56.9500, 24.1000, nil)
	c := ScoreFeature(f, 56.9500, 24.1000, []string{"Brīvības iela 10"}, cfg)
	assert.Zero(t, c.AddressBonus)
}

func TestScoreFeature_HouseNumberCaseAndSpacing(t *testing.T) {
	cfg := testFootprintConfig()
	f := buildingAt(1, 56.9500, 24.1000, map[string]string{
		"building":         "yes",
		"addr:housenumber": "10 A",
		"addr:street":      "Brīvības iela",
	})
	c := ScoreFeature(f, 56.9500, 24.1000, []string{"Brīvības iela 10a"}, cfg)
	assert.Equal(t, cfg.AddressFullBonus, c.AddressBonus)
}

func TestScoreFeature_StreetAgreesWithoutTypeWord(t *testing.T) {
	cfg := testFootprintConfig()
	// Record variant omits the street-type word the tag carries.
	f := buildingAt(1, 56.9500, 24.1000, map[string]string{
		"building":         "yes",
		"addr:housenumber": "10",
		"addr:street":      "Brīvības iela",
	})
	c := ScoreFeature(f, 56.9500, 24.1000, []string{"Brīvības 10"}, cfg)
	assert.Equal(t, cfg.AddressFullBonus, c.AddressBonus)
}

func TestScoreFeature_BuildingBeatsOtherTags(t *testing.T) {
	cfg := testFootprintConfig()
	building := buildingAt(1, 56.9500, 24.1000, map[string]string{"building": "yes"})
	part := buildingAt(2, 56.9500, 24.1000, map[string]string{"building:part": "yes"})

	cb := ScoreFeature(building, 56.9500, 24.1000, nil, cfg)
	cp := ScoreFeature(part, 56.9500, 24.1000, nil, cfg)

	assert.Equal(t, TagClassBuilding, cb.TagClass)
	assert.Equal(t, TagClassPart, cp.TagClass)
	assert.Greater(t, cb.Score, cp.Score)
}

func TestScoreFeature_SmallerCloserPreferred(t *testing.T) {
	cfg := testFootprintConfig()
	small := buildingAt(1, 56.9504, 24.1000, nil)
	large := overpass.Feature{
		Type: "way", ID: 2,
		Tags:     map[string]string{"building": "yes"},
		Geometry: squareAt(56.9510, 24.1000, 0.0008),
	}

	cs := ScoreFeature(small, 56.9500, 24.1000, nil, cfg)
	cl := ScoreFeature(large, 56.9500, 24.1000, nil, cfg)
	assert.Greater(t, cs.Score, cl.Score)
}

func TestRank_Deterministic(t *testing.T) {
	mk := func(id int64, score, area, dist float64) Candidate {
		return Candidate{
			Feature:   overpass.Feature{Type: "way", ID: id},
			Score:     score,
			AreaM2:    area,
			DistanceM: dist,
		}
	}

	cands := []Candidate{
		mk(4, 10, 200, 5),
		mk(3, 10, 100, 9),
		mk(2, 10, 100, 5),
		mk(1, 20, 500, 50),
	}
	Rank(cands)

	got := make([]int64, len(cands))
	for i, c := range cands {
		got[i] = c.Feature.ID
	}
	// Score desc, then area asc, then distance asc.
	assert.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestRank_IDBreaksExactTies(t *testing.T) {
	cands := []Candidate{
		{Feature: overpass.Feature{Type: "way", ID: 9}},
		{Feature: overpass.Feature{Type: "way", ID: 3}},
		{Feature: overpass.Feature{Type: "relation", ID: 5}},
	}
	Rank(cands)

	assert.Equal(t, int64(5), cands[0].Feature.ID, "relation sorts before way")
	assert.Equal(t, int64(3), cands[1].Feature.ID)
	assert.Equal(t, int64(9), cands[2].Feature.ID)
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in     string
		street string
		house  string
	}{
		{"Brīvības iela 10", "brīvības iela", "10"},
		{"Brīvības 10a", "brīvības", "10a"},
		{"Brīvības iela", "brīvības iela", ""},
		{"10", "", "10"},
	}
	for _, tt := range tests {
		street, house := splitAddress(tt.in)
		assert.Equal(t, tt.street, street, tt.in)
		assert.Equal(t, tt.house, house, tt.in)
	}
}
