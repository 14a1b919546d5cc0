package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/model"
	"github.com/cityatlas/resolver-cli/pkg/nominatim"
)

// Resolver turns one record into at most one resolved coordinate.
type Resolver struct {
	client  nominatim.Client
	weights config.GeocodeConfig
	city    config.CityConfig
	rules   config.StreetRules
}

// New creates a Resolver with the given client and configuration.
func New(client nominatim.Client, cfg *config.Config) *Resolver {
	return &Resolver{
		client:  client,
		weights: cfg.Geocode,
		city:    cfg.City,
		rules:   cfg.Streets,
	}
}

// scoredHit pairs a hit with its deterministic score and originating query.
type scoredHit struct {
	hit   nominatim.Hit
	score float64
	query string
}

// Resolve geocodes a record. Candidate queries are tried in order; per-query
// failures degrade to a null result for that query only. The best hit across
// all queries wins, ties broken by candidate order so that results never
// depend on cache insertion order.
func (r *Resolver) Resolve(ctx context.Context, rec model.Record) model.GeocodeResolution {
	log := zap.L().With(zap.String("record", rec.ID))

	queries := BuildQueries(rec, r.rules, r.city)
	res := model.GeocodeResolution{RecordID: rec.ID, QueriesTried: queries}
	if len(queries) == 0 {
		log.Warn("geocode: record has no usable address")
		return res
	}

	best := r.bestAcross(ctx, queries, log)

	// A hit on a plain square often means the building's postal address
	// resolves to the square it faces. One name-assisted query competes in
	// the same pool.
	if best != nil && isPlainSquare(best.hit) && rec.Name != "" {
		assisted := rec.Name + ", " + queries[0]
		res.QueriesTried = append(res.QueriesTried, assisted)
		if contender := r.bestForQuery(ctx, assisted, log); contender != nil && contender.score > best.score {
			best = contender
		}
	}

	if best == nil {
		log.Info("geocode: unresolved", zap.Int("queries", len(queries)))
		return res
	}

	lat, lon, err := best.hit.Coordinates()
	if err != nil {
		log.Warn("geocode: winning hit has malformed coordinates", zap.Error(err))
		return res
	}

	res.Lat = &lat
	res.Lon = &lon
	res.DisplayName = best.hit.DisplayName
	res.QueryUsed = best.query
	res.OSMType = best.hit.OSMType
	res.OSMID = best.hit.OSMID
	res.Category = best.hit.Category
	res.AddressType = best.hit.AddressType

	log.Debug("geocode: resolved",
		zap.String("query", best.query),
		zap.Float64("score", best.score),
		zap.String("category", best.hit.Category),
		zap.String("addresstype", best.hit.AddressType),
	)
	return res
}

// bestAcross returns the best-scoring hit over the ordered query list.
// Strictly-greater comparison preserves first-query-wins tie-breaking.
func (r *Resolver) bestAcross(ctx context.Context, queries []string, log *zap.Logger) *scoredHit {
	var best *scoredHit
	for _, q := range queries {
		if sh := r.bestForQuery(ctx, q, log); sh != nil && (best == nil || sh.score > best.score) {
			best = sh
		}
	}
	return best
}

// bestForQuery issues one search and returns its best hit, or nil when the
// query failed or returned nothing. Hit order from the service breaks exact
// score ties within a single query.
func (r *Resolver) bestForQuery(ctx context.Context, query string, log *zap.Logger) *scoredHit {
	hits, err := r.client.Search(ctx, query)
	if err != nil {
		log.Warn("geocode: query failed, degrading to null",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	var best *scoredHit
	for _, h := range hits {
		s := ScoreHit(h, query, r.weights, r.city.BBox)
		if best == nil || s > best.score {
			best = &scoredHit{hit: h, score: s, query: query}
		}
	}
	return best
}
