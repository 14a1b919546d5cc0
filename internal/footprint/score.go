// Package footprint matches resolved coordinates to building footprint
// polygons from the spatial dataset.
package footprint

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/geomutil"
	"github.com/cityatlas/resolver-cli/internal/model"
	"github.com/cityatlas/resolver-cli/pkg/overpass"
)

// Tag classes, in preference order.
const (
	TagClassBuilding = "building"
	TagClassPart     = "building_part"
	TagClassOther    = "other"
)

// Candidate is a spatial feature with its derived scoring signals.
type Candidate struct {
	Feature      overpass.Feature
	Contains     bool
	DistanceM    float64
	AreaM2       float64
	AddressBonus float64
	TagClass     string
	Score        float64
}

// Ref returns the candidate's object reference.
func (c Candidate) Ref() model.OSMRef {
	return model.OSMRef{Type: c.Feature.Type, ID: c.Feature.ID}
}

// Debug returns the audit view of the candidate.
func (c Candidate) Debug() model.CandidateDebug {
	return model.CandidateDebug{
		Ref:          c.Ref(),
		Score:        c.Score,
		Contains:     c.Contains,
		AddressBonus: c.AddressBonus,
		DistanceM:    c.DistanceM,
		AreaM2:       c.AreaM2,
		TagClass:     c.TagClass,
	}
}

// ScoreFeature derives all signals for one feature against the resolved
// point and the record's address variants. Pure function: identical inputs
// always produce the identical candidate.
func ScoreFeature(f overpass.Feature, lat, lon float64, variants []string, cfg config.FootprintConfig) Candidate {
	cLat, cLon := geomutil.Centroid(f.Geometry)

	c := Candidate{
		Feature:      f,
		Contains:     geomutil.ContainsPoint(f.Geometry, lat, lon),
		DistanceM:    geomutil.HaversineM(lat, lon, cLat, cLon),
		AreaM2:       geomutil.AreaM2(f.Geometry),
		AddressBonus: addressBonus(f, variants, cfg),
		TagClass:     tagClass(f),
	}

	// Containment dominates; the address bonus is next; a whole building
	// beats its parts; distance and area only break remaining ties,
	// preferring smaller, closer polygons so a large neighbor on the same
	// block cannot steal the match.
	if c.Contains {
		c.Score += cfg.ContainmentWeight
	}
	c.Score += c.AddressBonus
	if c.TagClass == TagClassBuilding {
		c.Score += cfg.BuildingTagBonus
	}
	c.Score -= c.DistanceM * cfg.DistancePenaltyPerM
	c.Score -= c.AreaM2 * cfg.AreaPenaltyPerM2

	return c
}

func tagClass(f overpass.Feature) string {
	switch {
	case f.IsBuildingPart():
		return TagClassPart
	case f.Tag("building") != "":
		return TagClassBuilding
	default:
		return TagClassOther
	}
}

// addressBonus compares the feature's tagged address against every known
// address variant of the record and returns the best bonus: full when house
// number and street both agree, the house bonus when only the number does.
func addressBonus(f overpass.Feature, variants []string, cfg config.FootprintConfig) float64 {
	tagHouse := normalizeHouseNumber(f.Tag("addr:housenumber"))
	if tagHouse == "" {
		return 0
	}
	tagStreet := strings.ToLower(strings.TrimSpace(f.Tag("addr:street")))

	var best float64
	for _, v := range variants {
		street, house := splitAddress(v)
		if normalizeHouseNumber(house) != tagHouse {
			continue
		}
		bonus := cfg.AddressHouseBonus
		if tagStreet != "" && street != "" && streetsAgree(street, tagStreet) {
			bonus = cfg.AddressFullBonus
		}
		if bonus > best {
			best = bonus
		}
	}
	return best
}

// splitAddress divides an address variant into its street text and house
// number at the first digit-led token.
func splitAddress(v string) (street, house string) {
	tokens := strings.Fields(v)
	for i, tok := range tokens {
		if len(tok) > 0 && unicode.IsDigit([]rune(tok)[0]) {
			return strings.ToLower(strings.Join(tokens[:i], " ")), strings.TrimRight(tok, ",.;")
		}
	}
	return strings.ToLower(v), ""
}

// streetsAgree reports whether either street string contains the other after
// lowercasing. Tagged names often carry the street-type word the variant
// omits, and vice versa.
func streetsAgree(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func normalizeHouseNumber(hn string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(hn)), " ", "")
}

// Rank orders candidates fully deterministically: score descending, then
// area ascending, then distance ascending, then object identifier ascending.
func Rank(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AreaM2 != b.AreaM2 {
			return a.AreaM2 < b.AreaM2
		}
		if a.DistanceM != b.DistanceM {
			return a.DistanceM < b.DistanceM
		}
		if a.Feature.Type != b.Feature.Type {
			return a.Feature.Type < b.Feature.Type
		}
		return a.Feature.ID < b.Feature.ID
	})
}
