// Package config loads the application configuration from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config is the complete application configuration.
type Config struct {
	Log        LogConfig        `json:"log" yaml:"log"`
	API        APIConfig        `json:"api" yaml:"api"`
	Routing    RoutingConfig    `json:"routing" yaml:"routing"`
	Geocoding  GeocodingConfig  `json:"geocoding" yaml:"geocoding"`
	Navigation NavigationConfig `json:"navigation" yaml:"navigation"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// APIConfig holds GraphHopper API access settings.
type APIConfig struct {
	Address string `json:"address" yaml:"address" validate:"required,url"`
	Key     string `json:"key" yaml:"key" validate:"required"`
	Locale  string `json:"locale" yaml:"locale"`
}

// RoutingConfig holds route request defaults.
type RoutingConfig struct {
	Profile              string `json:"profile" yaml:"profile"`
	MaxAlternativeRoutes int    `json:"maxAlternativeRoutes" yaml:"maxAlternativeRoutes" validate:"min=1,max=4"`
}

// GeocodingConfig holds address search settings.
type GeocodingConfig struct {
	Provider string        `json:"provider" yaml:"provider"`
	CacheTTL time.Duration `json:"cacheTtl" yaml:"cacheTtl"`
}

// NavigationConfig holds turn-by-turn navigation settings.
type NavigationConfig struct {
	// Fake replaces real GPS input with a simulator that replays the
	// active route.
	Fake bool `json:"fake" yaml:"fake"`
	// TickInterval is how often the simulator emits a position.
	TickInterval time.Duration `json:"tickInterval" yaml:"tickInterval"`
}

// Load reads the YAML file at path, applies environment variable
// overrides (TURNNAV_API_KEY overrides api.key and so on) and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s not found", filepath.Clean(path))
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read config %s failed", path)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "TURNNAV_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, "TURNNAV_")
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		API: APIConfig{
			Address: "https://graphhopper.com/api/1",
			Locale:  "en",
		},
		Routing: RoutingConfig{
			Profile:              "car",
			MaxAlternativeRoutes: 3,
		},
		Geocoding: GeocodingConfig{
			Provider: "default",
			CacheTTL: 10 * time.Minute,
		},
		Navigation: NavigationConfig{
			TickInterval: 3 * time.Second,
		},
	}
}
