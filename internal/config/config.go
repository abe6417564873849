// Package config loads and validates the gateway configuration.
//
// Loading order, lowest to highest priority: defaults in code, a YAML
// file, then environment variables. The resulting Config is injected at
// construction time; traffic classes, max-age tables and container
// limits are configuration, not runtime state, and never change after
// process start.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the gateway.
type Config struct {
	Server     Server     `yaml:"server"`
	Store      Store      `yaml:"store"`
	Version    Version    `yaml:"version"`
	Containers Containers `yaml:"containers"`
	Staleness  Staleness  `yaml:"staleness"`
	Routing    Routing    `yaml:"routing"`
	Refresh    Refresh    `yaml:"refresh"`
	Fetch      Fetch      `yaml:"fetch"`
	Baseline   Baseline   `yaml:"baseline"`
	Logging    Logging    `yaml:"logging"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr            string   `yaml:"addr" validate:"required"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Store selects and configures the storage backend.
type Store struct {
	Backend string `yaml:"backend" validate:"oneof=memory leveldb"`
	Path    string `yaml:"path"`
}

// Version names the live cache generation. Container names are
// "<prefix>-<tag>-<logical>", e.g. "nimbus-v1.0.1-static".
type Version struct {
	Prefix string `yaml:"prefix" validate:"required"`
	Tag    string `yaml:"tag" validate:"required"`
}

// Containers bounds the per-class containers. The static container is
// deliberately unbounded: static assets are a small, finite set replaced
// wholesale on version activation.
type Containers struct {
	DynamicMaxEntries int `yaml:"dynamic_max_entries" validate:"gte=1"`
	APIMaxEntries     int `yaml:"api_max_entries" validate:"gte=1"`
}

// Staleness holds the per-class max ages. Zero disables staleness
// tracking for the class.
type Staleness struct {
	API             Duration `yaml:"api"`
	ExternalWeather Duration `yaml:"external_weather"`
	Dynamic         Duration `yaml:"dynamic"`
}

// Routing is the static traffic-class table.
type Routing struct {
	APIPrefixes        []string `yaml:"api_prefixes"`
	ExternalHosts      []string `yaml:"external_hosts"`
	StaticDestinations []string `yaml:"static_destinations"`
}

// Refresh configures the background refresh scheduler.
type Refresh struct {
	Enabled         bool     `yaml:"enabled"`
	Interval        Duration `yaml:"interval"`
	TrackedPatterns []string `yaml:"tracked_patterns"`
}

// Fetch configures origin fetches.
type Fetch struct {
	Timeout Duration `yaml:"timeout"`
	Breaker Breaker  `yaml:"breaker"`
}

// Breaker configures the circuit breaker guarding the origin.
type Breaker struct {
	MaxRequests      uint32   `yaml:"max_requests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold float64  `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32   `yaml:"min_requests"`
}

// Baseline describes what the lifecycle manager seeds at install time.
type Baseline struct {
	PrecacheURLs       []string `yaml:"precache_urls"`
	OfflineURL         string   `yaml:"offline_url" validate:"required"`
	OfflineBody        string   `yaml:"offline_body"`
	OfflineContentType string   `yaml:"offline_content_type"`
}

// Logging configures zap.
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8380",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Store: Store{
			Backend: "leveldb",
			Path:    "./data/cache",
		},
		Version: Version{
			Prefix: "nimbus",
			Tag:    "v1.0.0",
		},
		Containers: Containers{
			DynamicMaxEntries: 50,
			APIMaxEntries:     100,
		},
		Staleness: Staleness{
			API:             Duration(time.Hour),
			ExternalWeather: Duration(30 * time.Minute),
			Dynamic:         Duration(24 * time.Hour),
		},
		Routing: Routing{
			APIPrefixes:        []string{"/api/"},
			ExternalHosts:      []string{"api.open-meteo.com", "geocoding-api.open-meteo.com"},
			StaticDestinations: []string{"script", "style", "image", "font"},
		},
		Refresh: Refresh{
			Enabled:         true,
			Interval:        Duration(15 * time.Minute),
			TrackedPatterns: []string{"*forecast*", "*current-conditions*"},
		},
		Fetch: Fetch{
			Timeout: Duration(30 * time.Second),
			Breaker: Breaker{
				MaxRequests:      5,
				Interval:         Duration(30 * time.Second),
				Timeout:          Duration(60 * time.Second),
				FailureThreshold: 0.8,
				MinRequests:      5,
			},
		},
		Baseline: Baseline{
			OfflineURL:         "app:///offline",
			OfflineBody:        "<!doctype html><title>Offline</title><h1>You are offline</h1>",
			OfflineContentType: "text/html; charset=utf-8",
		},
		Logging: Logging{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and environment variable overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment applies environment variables, the highest-priority
// configuration source.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("NIMBUS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NIMBUS_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("NIMBUS_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("NIMBUS_VERSION_TAG"); v != "" {
		c.Version.Tag = v
	}
	if v := os.Getenv("NIMBUS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NIMBUS_REFRESH_ENABLED"); v != "" {
		c.Refresh.Enabled = v == "true"
	}
}

// Validate checks struct tags plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Backend == "leveldb" && c.Store.Path == "" {
		return fmt.Errorf("invalid configuration: store.path is required for the leveldb backend")
	}
	if c.Refresh.Enabled && c.Refresh.Interval.Std() <= 0 {
		return fmt.Errorf("invalid configuration: refresh.interval must be positive when refresh is enabled")
	}
	if c.Fetch.Timeout.Std() <= 0 {
		return fmt.Errorf("invalid configuration: fetch.timeout must be positive")
	}
	return nil
}
