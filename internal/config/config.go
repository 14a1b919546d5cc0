// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	City      CityConfig      `yaml:"city" mapstructure:"city"`
	Streets   StreetRules     `yaml:"streets" mapstructure:"streets"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Footprint FootprintConfig `yaml:"footprint" mapstructure:"footprint"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BBox is a geographic bounding box in WGS84 degrees.
type BBox struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// Contains reports whether the point falls inside the box (edges inclusive).
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// CityConfig pins the pipeline to one target city. The bounding box is the
// geofence for geocode hits; name and country ground every generated query.
type CityConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Country string `yaml:"country" mapstructure:"country"`
	BBox    BBox   `yaml:"bbox" mapstructure:"bbox"`
}

// StreetRules is the tunable rule table for the colloquial street-name
// rewrite. A lone name ending in one of Suffixes (and not in ExcludeSuffixes)
// that carries no word from StreetWords gets InsertWord inserted before the
// house number, to recover matches against alt-name tagging conventions.
type StreetRules struct {
	Suffixes        []string `yaml:"suffixes" mapstructure:"suffixes"`
	ExcludeSuffixes []string `yaml:"exclude_suffixes" mapstructure:"exclude_suffixes"`
	StreetWords     []string `yaml:"street_words" mapstructure:"street_words"`
	InsertWord      string   `yaml:"insert_word" mapstructure:"insert_word"`
}

// NominatimConfig configures the geocoding service client.
type NominatimConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	ResultLimit int     `yaml:"result_limit" mapstructure:"result_limit"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OverpassConfig configures the spatial query service client.
type OverpassConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueryTimeout int     `yaml:"query_timeout" mapstructure:"query_timeout"`
}

// CacheConfig configures the response cache database.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RetryConfig configures the shared retry/backoff policy.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// GeocodeConfig holds the hit-scoring weights for the geocode resolver.
type GeocodeConfig struct {
	BuildingBonus    float64 `yaml:"building_bonus" mapstructure:"building_bonus"`
	RoadPenalty      float64 `yaml:"road_penalty" mapstructure:"road_penalty"`
	HouseNumberBonus float64 `yaml:"house_number_bonus" mapstructure:"house_number_bonus"`
	RankStep         float64 `yaml:"rank_step" mapstructure:"rank_step"`
	GeofencePenalty  float64 `yaml:"geofence_penalty" mapstructure:"geofence_penalty"`
}

// FootprintConfig holds the radius ladder and candidate-scoring weights for
// the footprint matcher.
type FootprintConfig struct {
	RadiiM          []float64 `yaml:"radii_m" mapstructure:"radii_m"`
	LandmarkRadiusM float64   `yaml:"landmark_radius_m" mapstructure:"landmark_radius_m"`

	ContainmentWeight   float64 `yaml:"containment_weight" mapstructure:"containment_weight"`
	AddressFullBonus    float64 `yaml:"address_full_bonus" mapstructure:"address_full_bonus"`
	AddressHouseBonus   float64 `yaml:"address_house_bonus" mapstructure:"address_house_bonus"`
	BuildingTagBonus    float64 `yaml:"building_tag_bonus" mapstructure:"building_tag_bonus"`
	DistancePenaltyPerM float64 `yaml:"distance_penalty_per_m" mapstructure:"distance_penalty_per_m"`
	AreaPenaltyPerM2    float64 `yaml:"area_penalty_per_m2" mapstructure:"area_penalty_per_m2"`

	StrongAddressThreshold float64 `yaml:"strong_address_threshold" mapstructure:"strong_address_threshold"`
	AmbiguityMargin        float64 `yaml:"ambiguity_margin" mapstructure:"ambiguity_margin"`

	MergeDistanceM   float64 `yaml:"merge_distance_m" mapstructure:"merge_distance_m"`
	MergeScoreWindow float64 `yaml:"merge_score_window" mapstructure:"merge_score_window"`

	MinAreaM2     float64 `yaml:"min_area_m2" mapstructure:"min_area_m2"`
	MaxAreaM2     float64 `yaml:"max_area_m2" mapstructure:"max_area_m2"`
	TopCandidates int     `yaml:"top_candidates" mapstructure:"top_candidates"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("city.name", "Rīga")
	v.SetDefault("city.country", "Latvija")
	v.SetDefault("city.bbox.min_lat", 56.87)
	v.SetDefault("city.bbox.min_lon", 23.93)
	v.SetDefault("city.bbox.max_lat", 57.09)
	v.SetDefault("city.bbox.max_lon", 24.33)

	v.SetDefault("streets.suffixes", []string{"as", "es", "a", "u"})
	v.SetDefault("streets.exclude_suffixes", []string{"ums", "ība", "šana"})
	v.SetDefault("streets.street_words", []string{"iela", "bulvāris", "gatve", "prospekts", "laukums", "dambis", "aleja", "šoseja", "krastmala", "ceļš"})
	v.SetDefault("streets.insert_word", "iela")

	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "cityatlas-resolver-cli/1.0 (map data pipeline)")
	v.SetDefault("nominatim.result_limit", 5)
	v.SetDefault("nominatim.rate_per_sec", 1.0)
	v.SetDefault("nominatim.timeout_secs", 30)

	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.rate_per_sec", 0.5)
	v.SetDefault("overpass.timeout_secs", 60)
	v.SetDefault("overpass.query_timeout", 25)

	v.SetDefault("cache.path", "resolver-cache.db")

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("geocode.building_bonus", 30.0)
	v.SetDefault("geocode.road_penalty", 15.0)
	v.SetDefault("geocode.house_number_bonus", 10.0)
	v.SetDefault("geocode.rank_step", 0.1)
	v.SetDefault("geocode.geofence_penalty", 1000.0)

	v.SetDefault("footprint.radii_m", []float64{80, 120, 160, 200})
	v.SetDefault("footprint.landmark_radius_m", 300.0)
	v.SetDefault("footprint.containment_weight", 100.0)
	v.SetDefault("footprint.address_full_bonus", 40.0)
	v.SetDefault("footprint.address_house_bonus", 25.0)
	v.SetDefault("footprint.building_tag_bonus", 5.0)
	v.SetDefault("footprint.distance_penalty_per_m", 0.05)
	v.SetDefault("footprint.area_penalty_per_m2", 0.0002)
	v.SetDefault("footprint.strong_address_threshold", 25.0)
	v.SetDefault("footprint.ambiguity_margin", 3.0)
	v.SetDefault("footprint.merge_distance_m", 50.0)
	v.SetDefault("footprint.merge_score_window", 10.0)
	v.SetDefault("footprint.min_area_m2", 10.0)
	v.SetDefault("footprint.max_area_m2", 200000.0)
	v.SetDefault("footprint.top_candidates", 5)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
