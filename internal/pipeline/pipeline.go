// Package pipeline runs the sequential record-resolution loop and assembles
// the resolution report.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/footprint"
	"github.com/cityatlas/resolver-cli/internal/model"
	"github.com/cityatlas/resolver-cli/internal/resolver"
)

// Pipeline wires the geocode resolver and footprint matcher over one record
// set. Processing is strictly sequential in input order: both external
// services enforce a fair-use request cadence, and the clients' rate
// limiters pace live calls. There is no parallel fan-out.
type Pipeline struct {
	resolver  *resolver.Resolver
	matcher   *footprint.Matcher
	overrides map[string]model.Override
}

// New creates a Pipeline. overrides may be nil.
func New(r *resolver.Resolver, m *footprint.Matcher, overrides map[string]model.Override) *Pipeline {
	return &Pipeline{resolver: r, matcher: m, overrides: overrides}
}

// Run resolves every record and returns the full report. Per-record
// failures degrade to null stage results; only context cancellation aborts
// the loop.
func (p *Pipeline) Run(ctx context.Context, records []model.Record) (*Report, error) {
	report := NewReport()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := zap.L().With(
			zap.String("record", rec.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(records)),
		)
		log.Info("resolving record", zap.String("name", rec.Name))

		geo := p.resolver.Resolve(ctx, rec)

		var ov *model.Override
		if o, ok := p.overrides[rec.ID]; ok {
			ov = &o
			log.Info("override present",
				zap.String("type", o.OSMType),
				zap.Int64("id", o.OSMID),
			)
		}

		fp := p.matcher.Match(ctx, rec, geo, ov)
		log.Info("record resolved",
			zap.String("status", string(fp.Status)),
			zap.String("strategy", fp.Strategy),
			zap.String("confidence", string(fp.Confidence)),
		)

		report.Add(rec, geo, fp)
	}

	report.Finalize()
	return report, nil
}

// Geocode runs only the geocoding stage over the records, in input order.
func (p *Pipeline) Geocode(ctx context.Context, records []model.Record) ([]model.GeocodeResolution, error) {
	out := make([]model.GeocodeResolution, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.resolver.Resolve(ctx, rec))
	}
	return out, nil
}

// Footprints runs only the footprint stage over records with precomputed
// geocode resolutions.
func (p *Pipeline) Footprints(ctx context.Context, records []model.Record, geocodes []model.GeocodeResolution) (*Report, error) {
	byID := make(map[string]model.GeocodeResolution, len(geocodes))
	for _, g := range geocodes {
		byID[g.RecordID] = g
	}

	report := NewReport()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		geo, ok := byID[rec.ID]
		if !ok {
			geo = model.GeocodeResolution{RecordID: rec.ID}
		}

		var ov *model.Override
		if o, exists := p.overrides[rec.ID]; exists {
			ov = &o
		}

		report.Add(rec, geo, p.matcher.Match(ctx, rec, geo, ov))
	}

	report.Finalize()
	return report, nil
}
