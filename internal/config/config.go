// Package config loads process configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/adapters/process"
	"github.com/aretw0/venueflow/pkg/reporter"
	"github.com/aretw0/venueflow/pkg/venue"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the configuration of the venueflow process.
type Config struct {
	BaseURL        string `yaml:"base_url" env:"VENUEFLOW_BASE_URL"`
	LogLevel       string `yaml:"log_level" env:"VENUEFLOW_LOG_LEVEL"`
	LogJSON        bool   `yaml:"log_json" env:"VENUEFLOW_LOG_JSON"`
	MaxErrorLength int    `yaml:"max_error_length" env:"VENUEFLOW_MAX_ERROR_LENGTH"`
	HTTPAddr       string `yaml:"http_addr" env:"VENUEFLOW_HTTP_ADDR"`
	Metrics        bool   `yaml:"metrics" env:"VENUEFLOW_METRICS"`

	// OTLPEndpoint enables tracing when set, e.g. "http://localhost:4318".
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"VENUEFLOW_OTLP_ENDPOINT"`

	Store Store       `yaml:"store" envPrefix:"VENUEFLOW_STORE_"`
	Names venue.Names `yaml:"names" envPrefix:"VENUEFLOW_NAMES_"`
	Hooks Hooks       `yaml:"hooks" envPrefix:"VENUEFLOW_HOOKS_"`
}

// Hooks are the external programs that receive notifications and matching
// runs. Unset hooks are only logged.
type Hooks struct {
	Dir    string          `yaml:"dir" env:"DIR"`
	Notify process.Command `yaml:"notify" envPrefix:"NOTIFY_"`
	Solve  process.Command `yaml:"solve" envPrefix:"SOLVE_"`
}

// Store selects and configures the repository.
type Store struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Path    string `yaml:"path" env:"PATH"`
	Redis   Redis  `yaml:"redis" envPrefix:"REDIS_"`
}

// Redis configures the Redis backend and the distributed lock.
type Redis struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:       "info",
		MaxErrorLength: reporter.DefaultMaxErrorLength,
		HTTPAddr:       ":8080",
		Metrics:        true,
		Store: Store{
			Backend: BackendMemory,
			Path:    "venueflow.db",
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "venueflow:",
			},
		},
		Names: venue.DefaultNames(),
	}
}

// Load reads path, if not empty, over the defaults and then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	case BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.MaxErrorLength <= 0 {
		errs = append(errs, fmt.Errorf("max_error_length must be positive, got %d", c.MaxErrorLength))
	}
	if err := c.Hooks.Notify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hooks.notify: %w", err))
	}
	if err := c.Hooks.Solve.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hooks.solve: %w", err))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWriter(os.Stderr, level, c.LogJSON)
}
