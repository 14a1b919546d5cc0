package footprint

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/geomutil"
)

// validateGeometry performs the structural and area-sanity checks a selected
// geometry must pass before it may reach downstream output. A footprint
// smaller than a kiosk or larger than a city block is tag noise, not a
// building.
func validateGeometry(g geom.T, cfg config.FootprintConfig) error {
	if g == nil {
		return eris.New("footprint: nil geometry")
	}

	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 || len(t.LinearRing(0).Coords()) < 4 {
			return eris.New("footprint: degenerate polygon ring")
		}
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return eris.New("footprint: empty multipolygon")
		}
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			if p.NumLinearRings() == 0 || len(p.LinearRing(0).Coords()) < 4 {
				return eris.Errorf("footprint: degenerate ring in multipolygon part %d", i)
			}
		}
	default:
		return eris.Errorf("footprint: unsupported geometry type %T", g)
	}

	area := geomutil.AreaM2(g)
	if cfg.MinAreaM2 > 0 && area < cfg.MinAreaM2 {
		return eris.Errorf("footprint: area %.1f m² below minimum %.1f", area, cfg.MinAreaM2)
	}
	if cfg.MaxAreaM2 > 0 && area > cfg.MaxAreaM2 {
		return eris.Errorf("footprint: area %.1f m² above maximum %.1f", area, cfg.MaxAreaM2)
	}
	return nil
}
