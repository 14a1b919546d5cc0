package footprint

import (
	"context"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/model"
	"github.com/cityatlas/resolver-cli/internal/resolver"
	"github.com/cityatlas/resolver-cli/pkg/overpass"
)

// Matcher selects a footprint geometry for each resolved record.
type Matcher struct {
	client overpass.Client
	cfg    config.FootprintConfig
}

// New creates a Matcher with the given client and configuration.
func New(client overpass.Client, cfg config.FootprintConfig) *Matcher {
	return &Matcher{client: client, cfg: cfg}
}

// Match runs the per-record state machine: skip without coordinates, manual
// override, trusted geocoder reference, then the radius ladder. Every path
// terminates in one of the FootprintStatus values; absence of geometry is
// always explicit, never fabricated.
func (m *Matcher) Match(ctx context.Context, rec model.Record, geo model.GeocodeResolution, ov *model.Override) model.FootprintResolution {
	log := zap.L().With(zap.String("record", rec.ID))
	res := model.FootprintResolution{RecordID: rec.ID}

	if !geo.Resolved() {
		res.Status = model.StatusSkippedNoCoords
		return res
	}
	lat, lon := *geo.Lat, *geo.Lon
	variants := rec.AddressVariants()

	// Manual override: absolute precedence over any computed match.
	if ov != nil {
		if done := m.matchOverride(ctx, ov, &res, log); done {
			return res
		}
	}

	// Trusted reference: the geocoder already identified a building object;
	// fetching it directly is cheaper and more deterministic than an area
	// search. Same classification the geocode scorer uses: category or
	// addresstype.
	building := geo.Category == "building" || geo.AddressType == "building"
	if building && (geo.OSMType == "way" || geo.OSMType == "relation") {
		if done := m.matchTrustedRef(ctx, geo, lat, lon, variants, &res, log); done {
			return res
		}
	}

	return m.matchLadder(ctx, geo, lat, lon, variants, res, log)
}

// matchOverride fetches the overridden element. Returns true when the state
// machine has reached a terminal state.
func (m *Matcher) matchOverride(ctx context.Context, ov *model.Override, res *model.FootprintResolution, log *zap.Logger) bool {
	f, err := m.client.Element(ctx, ov.OSMType, ov.OSMID)
	if err != nil {
		log.Warn("footprint: override fetch failed, falling back to computed match",
			zap.String("type", ov.OSMType),
			zap.Int64("id", ov.OSMID),
			zap.Error(err),
		)
		return false
	}
	if f == nil || f.Geometry == nil {
		log.Warn("footprint: override element not found",
			zap.String("type", ov.OSMType),
			zap.Int64("id", ov.OSMID),
		)
		return false
	}

	res.Strategy = model.StrategyOverrideDirect
	res.ObjectRefs = []model.OSMRef{{Type: f.Type, ID: f.ID}}

	if err := validateGeometry(f.Geometry, m.cfg); err != nil {
		log.Warn("footprint: override geometry invalid", zap.Error(err))
		res.Status = model.StatusInvalid
		return true
	}

	res.Status = model.StatusMatched
	res.Confidence = model.ConfidenceHigh
	res.Geometry = encodeGeometry(f.Geometry, log)
	return true
}

// matchTrustedRef fetches the geocoder-supplied building object. Not
// terminal on failure: the radius ladder remains as fallback.
func (m *Matcher) matchTrustedRef(ctx context.Context, geo model.GeocodeResolution, lat, lon float64, variants []string, res *model.FootprintResolution, log *zap.Logger) bool {
	f, err := m.client.Element(ctx, geo.OSMType, geo.OSMID)
	if err != nil || f == nil || f.Geometry == nil {
		log.Debug("footprint: trusted ref unavailable, falling back to area search",
			zap.String("type", geo.OSMType),
			zap.Int64("id", geo.OSMID),
			zap.Error(err),
		)
		return false
	}
	if err := validateGeometry(f.Geometry, m.cfg); err != nil {
		log.Debug("footprint: trusted ref geometry invalid, falling back", zap.Error(err))
		return false
	}

	c := ScoreFeature(*f, lat, lon, variants, m.cfg)
	res.Status = model.StatusMatched
	res.Strategy = model.StrategyGeocoderBuildingRef
	res.Confidence = m.confidence(c)
	res.ObjectRefs = []model.OSMRef{c.Ref()}
	res.Geometry = encodeGeometry(f.Geometry, log)
	res.TopCandidates = []model.CandidateDebug{c.Debug()}
	return true
}

// matchLadder searches increasing radii until a radius yields candidates,
// then selects within that radius.
func (m *Matcher) matchLadder(ctx context.Context, geo model.GeocodeResolution, lat, lon float64, variants []string, res model.FootprintResolution, log *zap.Logger) model.FootprintResolution {
	radii := append([]float64(nil), m.cfg.RadiiM...)
	if resolver.IsLandmark(geo.Category, geo.AddressType) && m.cfg.LandmarkRadiusM > 0 {
		radii = append(radii, m.cfg.LandmarkRadiusM)
	}

	for _, radius := range radii {
		res.RadiiTried = append(res.RadiiTried, radius)

		feats, err := m.client.BuildingsAround(ctx, lat, lon, radius)
		if err != nil {
			log.Warn("footprint: area query failed, trying next radius",
				zap.Float64("radius_m", radius),
				zap.Error(err),
			)
			continue
		}

		cands := make([]Candidate, 0, len(feats))
		for _, f := range feats {
			if f.Geometry == nil {
				continue
			}
			cands = append(cands, ScoreFeature(f, lat, lon, variants, m.cfg))
		}
		if len(cands) == 0 {
			log.Debug("footprint: no candidates at radius", zap.Float64("radius_m", radius))
			continue
		}

		return m.selectCandidate(cands, res, log)
	}

	log.Info("footprint: no geometry at any radius",
		zap.Float64s("radii_m", res.RadiiTried),
	)
	res.Status = model.StatusNotFound
	return res
}

// selectCandidate ranks the scored pool and produces the terminal result.
func (m *Matcher) selectCandidate(cands []Candidate, res model.FootprintResolution, log *zap.Logger) model.FootprintResolution {
	Rank(cands)

	// Restrict to the containing subset when one exists.
	pool := cands
	var containing []Candidate
	for _, c := range cands {
		if c.Contains {
			containing = append(containing, c)
		}
	}
	if len(containing) > 0 {
		pool = containing
	}

	winner := pool[0]
	res.TopCandidates = topDebug(pool, m.cfg.TopCandidates)

	// Genuinely uncertain match: two near-equal scores with neither
	// containment nor a strong address signal goes to manual review.
	if len(pool) >= 2 {
		second := pool[1]
		if winner.Score-second.Score < m.cfg.AmbiguityMargin &&
			!winner.Contains && !second.Contains &&
			!m.strongAddress(winner) && !m.strongAddress(second) {
			log.Info("footprint: ambiguous top candidates",
				zap.Float64("score_top", winner.Score),
				zap.Float64("score_second", second.Score),
			)
			res.Status = model.StatusAmbiguous
			res.Strategy = model.StrategyAmbiguousTop2
			res.Confidence = model.ConfidenceLow
			res.ObjectRefs = []model.OSMRef{winner.Ref()}
			res.Geometry = encodeGeometry(winner.Feature.Geometry, log)
			return res
		}
	}

	if err := validateGeometry(winner.Feature.Geometry, m.cfg); err != nil {
		log.Warn("footprint: selected geometry failed validation",
			zap.String("type", winner.Feature.Type),
			zap.Int64("id", winner.Feature.ID),
			zap.Error(err),
		)
		res.Status = model.StatusInvalid
		res.Strategy = m.strategy(winner)
		res.ObjectRefs = []model.OSMRef{winner.Ref()}
		return res
	}

	// A winning sub-part with enough sibling parts nearby means the dataset
	// models one building as disconnected pieces.
	if winner.TagClass == TagClassPart {
		if parts := collectMergeParts(winner, cands, m.cfg); parts != nil {
			merged, refs, err := mergeParts(winner, parts)
			if err == nil {
				// The union must satisfy the same structural and area bounds
				// as any single candidate.
				err = validateGeometry(merged, m.cfg)
			}
			if err != nil {
				log.Warn("footprint: parts merge failed, keeping winner alone", zap.Error(err))
			} else {
				res.Status = model.StatusMatchedPartsMerge
				res.Strategy = m.strategy(winner)
				res.Confidence = m.confidence(winner)
				res.ObjectRefs = refs
				res.Geometry = encodeGeometry(merged, log)
				return res
			}
		}
	}

	res.Status = model.StatusMatched
	res.Strategy = m.strategy(winner)
	res.Confidence = m.confidence(winner)
	res.ObjectRefs = []model.OSMRef{winner.Ref()}
	res.Geometry = encodeGeometry(winner.Feature.Geometry, log)
	return res
}

func (m *Matcher) strongAddress(c Candidate) bool {
	return c.AddressBonus >= m.cfg.StrongAddressThreshold
}

func (m *Matcher) confidence(c Candidate) model.Confidence {
	strong := m.strongAddress(c)
	switch {
	case c.Contains && strong:
		return model.ConfidenceHigh
	case c.Contains || strong:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func (m *Matcher) strategy(c Candidate) string {
	strong := m.strongAddress(c)
	switch {
	case c.Contains && strong:
		return model.StrategyContainmentAddress
	case c.Contains:
		return model.StrategyContainment
	case strong:
		return model.StrategyAddressMatch
	default:
		return model.StrategyNearestFallback
	}
}

func topDebug(pool []Candidate, n int) []model.CandidateDebug {
	if n <= 0 {
		n = 5
	}
	if len(pool) < n {
		n = len(pool)
	}
	out := make([]model.CandidateDebug, 0, n)
	for _, c := range pool[:n] {
		out = append(out, c.Debug())
	}
	return out
}

// encodeGeometry marshals a geometry to GeoJSON for the report. Encoding
// failure degrades to null geometry rather than aborting the record.
func encodeGeometry(g geom.T, log *zap.Logger) []byte {
	data, err := geojson.Marshal(g)
	if err != nil {
		log.Warn("footprint: geojson encode failed", zap.Error(err))
		return nil
	}
	return data
}
