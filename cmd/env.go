package main

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cityatlas/resolver-cli/internal/cache"
	"github.com/cityatlas/resolver-cli/internal/footprint"
	"github.com/cityatlas/resolver-cli/internal/pipeline"
	"github.com/cityatlas/resolver-cli/internal/resilience"
	"github.com/cityatlas/resolver-cli/internal/resolver"
	"github.com/cityatlas/resolver-cli/pkg/nominatim"
	"github.com/cityatlas/resolver-cli/pkg/overpass"
)

// pipelineEnv bundles the shared infrastructure behind every command: the
// response cache, both service clients, and the resolution pipeline.
type pipelineEnv struct {
	Cache    *cache.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initPipeline builds the full resolution pipeline. cachePath overrides the
// configured cache location when non-empty; overridesPath may be empty.
func initPipeline(cachePath, overridesPath string) (*pipelineEnv, error) {
	path := cfg.Cache.Path
	if cachePath != "" {
		path = cachePath
	}

	store, err := cache.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: open cache")
	}

	runID := uuid.NewString()
	store.SetRunID(runID)
	zap.L().Info("pipeline initialized",
		zap.String("run_id", runID),
		zap.String("cache", path),
		zap.String("city", cfg.City.Name),
	)

	retry := resilience.FromConfig(cfg.Retry)

	geocoder := nominatim.New(cfg.Nominatim, store, retry)
	spatial := overpass.New(cfg.Overpass, store, retry)

	overrides, err := loadOverrides(overridesPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	p := pipeline.New(
		resolver.New(geocoder, cfg),
		footprint.New(spatial, cfg.Footprint),
		overrides,
	)

	return &pipelineEnv{Cache: store, Pipeline: p}, nil
}
