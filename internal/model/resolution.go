package model

import "encoding/json"

// FootprintStatus is the terminal state of the footprint matcher for a record.
type FootprintStatus string

const (
	StatusMatched           FootprintStatus = "matched"
	StatusMatchedPartsMerge FootprintStatus = "matched_parts_merged"
	StatusAmbiguous         FootprintStatus = "ambiguous"
	StatusNotFound          FootprintStatus = "not_found"
	StatusInvalid           FootprintStatus = "invalid"
	StatusSkippedNoCoords   FootprintStatus = "skipped_no_coordinates"
)

// Confidence is the coarse trust label attached to a footprint resolution.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Strategy tags describing which matching rule produced the geometry.
const (
	StrategyOverrideDirect      = "override_direct"
	StrategyGeocoderBuildingRef = "geocoder_building_ref"
	StrategyContainmentAddress  = "point_containment_with_address"
	StrategyContainment         = "point_containment"
	StrategyAddressMatch        = "address_match"
	StrategyNearestFallback     = "nearest_fallback"
	StrategyAmbiguousTop2       = "ambiguous_top2"
)

// GeocodeResolution is the chosen coordinate and classification for a record.
// Lat/Lon are nil when no confident geocode exists.
type GeocodeResolution struct {
	RecordID     string   `json:"record_id"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	DisplayName  string   `json:"display_name,omitempty"`
	QueryUsed    string   `json:"query_used,omitempty"`
	OSMType      string   `json:"osm_type,omitempty"`
	OSMID        int64    `json:"osm_id,omitempty"`
	Category     string   `json:"category,omitempty"`
	AddressType  string   `json:"address_type,omitempty"`
	QueriesTried []string `json:"queries_tried"`
}

// Resolved reports whether the record has a usable coordinate.
func (g GeocodeResolution) Resolved() bool {
	return g.Lat != nil && g.Lon != nil
}

// CandidateDebug is the audit view of one scored footprint candidate.
type CandidateDebug struct {
	Ref          OSMRef  `json:"ref"`
	Score        float64 `json:"score"`
	Contains     bool    `json:"contains"`
	AddressBonus float64 `json:"address_bonus"`
	DistanceM    float64 `json:"distance_m"`
	AreaM2       float64 `json:"area_m2"`
	TagClass     string  `json:"tag_class"`
}

// FootprintResolution is the footprint matcher's decision for one record.
// Geometry is GeoJSON (polygon or multipolygon) or null.
type FootprintResolution struct {
	RecordID      string           `json:"record_id"`
	Status        FootprintStatus  `json:"status"`
	Strategy      string           `json:"strategy,omitempty"`
	Confidence    Confidence       `json:"confidence,omitempty"`
	ObjectRefs    []OSMRef         `json:"object_refs,omitempty"`
	Geometry      json.RawMessage  `json:"geometry"`
	RadiiTried    []float64        `json:"radii_tried,omitempty"`
	TopCandidates []CandidateDebug `json:"top_candidates,omitempty"`
}
