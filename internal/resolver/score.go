package resolver

import (
	"strings"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/pkg/nominatim"
)

// maxPlaceRank is the most specific rank Nominatim assigns; lower ranks are
// coarser. Used to turn rank into a small secondary preference.
const maxPlaceRank = 30

// ScoreHit scores a single geocode hit against the query that produced it.
// Pure function of its inputs: identical hits always score identically, which
// keeps record resolution reproducible across cache states.
func ScoreHit(hit nominatim.Hit, query string, w config.GeocodeConfig, bbox config.BBox) float64 {
	var score float64

	switch {
	case hit.Category == "building" || hit.AddressType == "building":
		score += w.BuildingBonus
	case hit.Category == "highway" || hit.AddressType == "road":
		score -= w.RoadPenalty
	}

	if hn := houseNumberOf(query); hn != "" {
		switch {
		case hasHouseNumberToken(hit.DisplayName, hn):
			score += w.HouseNumberBonus
		case strings.Contains(strings.ToLower(hit.DisplayName), strings.ToLower(hn)):
			score += w.HouseNumberBonus / 2
		}
	}

	// Secondary preference for more specific classification ranks.
	if hit.PlaceRank > 0 && hit.PlaceRank <= maxPlaceRank {
		score += float64(hit.PlaceRank) * w.RankStep
	}

	// Geofence: a same-named street in another town must never beat any
	// in-bounds hit, however well it otherwise scores.
	if lat, lon, err := hit.Coordinates(); err != nil || !bbox.Contains(lat, lon) {
		score -= w.GeofencePenalty
	}

	return score
}

// houseNumberOf extracts the house-number token from a query: the first
// whitespace-separated token starting with a digit, with trailing punctuation
// stripped ("10a," → "10a").
func houseNumberOf(query string) string {
	for _, tok := range strings.Fields(query) {
		if startsWithDigit(tok) {
			return strings.TrimRight(tok, ",.;")
		}
	}
	return ""
}

// hasHouseNumberToken reports an exact token-level house-number match in the
// display name.
func hasHouseNumberToken(display, hn string) bool {
	hn = strings.ToLower(hn)
	for _, tok := range strings.FieldsFunc(strings.ToLower(display), func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if tok == hn {
			return true
		}
	}
	return false
}

// isPlainSquare reports whether the hit resolved to a public square or plaza
// rather than a building. Landmark buildings facing a square often geocode to
// the square itself; the resolver then tries a name-assisted query.
func isPlainSquare(hit nominatim.Hit) bool {
	if hit.AddressType == "square" {
		return true
	}
	return hit.Category == "place" && hit.Type == "square"
}

// IsLandmark reports whether a resolved classification suggests a landmark
// or open place rather than an addressed building. The footprint matcher
// extends its search radius for these.
func IsLandmark(category, addressType string) bool {
	switch category {
	case "tourism", "historic", "leisure", "amenity":
		return true
	}
	switch addressType {
	case "square", "place":
		return true
	}
	return false
}
