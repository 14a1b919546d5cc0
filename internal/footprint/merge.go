package footprint

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/geomutil"
	"github.com/cityatlas/resolver-cli/internal/model"
)

// collectMergeParts finds the other building parts that belong to the same
// structure as the winning part: parts within the merge distance of the
// winner's centroid whose score sits inside the merge window. The spatial
// dataset models some buildings as disconnected parts; merging reconstructs
// the true footprint. Requires at least two qualifiers besides the winner.
func collectMergeParts(winner Candidate, ranked []Candidate, cfg config.FootprintConfig) []Candidate {
	wLat, wLon := geomutil.Centroid(winner.Feature.Geometry)

	var parts []Candidate
	for _, c := range ranked {
		if c.Ref() == winner.Ref() || c.TagClass != TagClassPart {
			continue
		}
		cLat, cLon := geomutil.Centroid(c.Feature.Geometry)
		if geomutil.HaversineM(wLat, wLon, cLat, cLon) > cfg.MergeDistanceM {
			continue
		}
		if winner.Score-c.Score > cfg.MergeScoreWindow {
			continue
		}
		parts = append(parts, c)
	}

	if len(parts) < 2 {
		return nil
	}
	return parts
}

// mergeParts unions the winner and its qualifying parts into a single
// multipolygon, returning the geometry and every contributing reference in
// ranked order.
func mergeParts(winner Candidate, parts []Candidate) (geom.T, []model.OSMRef, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	refs := make([]model.OSMRef, 0, len(parts)+1)

	for _, c := range append([]Candidate{winner}, parts...) {
		if err := pushPolygons(mp, c.Feature.Geometry); err != nil {
			return nil, nil, eris.Wrapf(err, "footprint: merge %s/%d", c.Feature.Type, c.Feature.ID)
		}
		refs = append(refs, c.Ref())
	}

	return mp, refs, nil
}

func pushPolygons(mp *geom.MultiPolygon, g geom.T) error {
	switch t := g.(type) {
	case *geom.Polygon:
		return mp.Push(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if err := mp.Push(t.Polygon(i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return eris.Errorf("unsupported geometry type %T", g)
	}
}
