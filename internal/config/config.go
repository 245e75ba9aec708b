// Package config loads the effectrun process configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config is the complete process configuration.
type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Messaging MessagingConfig `yaml:"messaging" json:"messaging"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

type AppConfig struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
	Version     string `yaml:"version" json:"version"`
}

type HTTPConfig struct {
	Addr            string   `yaml:"addr" json:"addr"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	StaticDir       string   `yaml:"static_dir" json:"static_dir,omitempty"`
	CorsOrigins     []string `yaml:"cors_origins" json:"cors_origins,omitempty"`
}

// DatabaseConfig selects the repository backend. Driver is memdb or
// postgres; DSN is only read for postgres.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	DSN      string `yaml:"dsn" json:"dsn,omitempty"`
	MinConns int32  `yaml:"min_conns" json:"min_conns,omitempty"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns,omitempty"`
}

// CacheConfig selects the cache backend: ristretto or otter.
type CacheConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	MaxEntries int64  `yaml:"max_entries" json:"max_entries"`
	DefaultTTL string `yaml:"default_ttl" json:"default_ttl"`
}

type MessagingConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Topics         []string `yaml:"topics" json:"topics,omitempty"`
	ConsumeTimeout string   `yaml:"consume_timeout" json:"consume_timeout"`
}

type StorageConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Secret     string `yaml:"secret" json:"secret,omitempty"`
	Issuer     string `yaml:"issuer" json:"issuer"`
	AccessTTL  string `yaml:"access_ttl" json:"access_ttl"`
	RefreshTTL string `yaml:"refresh_ttl" json:"refresh_ttl"`
	BcryptCost int    `yaml:"bcrypt_cost" json:"bcrypt_cost,omitempty"`
}

type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, console
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Title:   "effectrun",
			Version: "dev",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Driver:   "memdb",
			MinConns: 1,
			MaxConns: 10,
		},
		Cache: CacheConfig{
			Backend:    "ristretto",
			MaxEntries: 10_000,
			DefaultTTL: "5m",
		},
		Messaging: MessagingConfig{
			Enabled:        true,
			Topics:         []string{"chat"},
			ConsumeTimeout: "5s",
		},
		Storage: StorageConfig{Enabled: true},
		Auth: AuthConfig{
			Issuer:     "effectrun",
			AccessTTL:  "15m",
			RefreshTTL: "168h",
		},
		Metrics: MetricsConfig{
			Enabled:     true,
			ServiceName: "effectrun",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path as JSON when it ends in .json and as YAML otherwise,
// over the defaults, then applies environment overrides. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("EFFECTRUN_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
		c.Database.Driver = "postgres"
	}
	if secret := os.Getenv("EFFECTRUN_AUTH_SECRET"); secret != "" {
		c.Auth.Secret = secret
		c.Auth.Enabled = true
	}
	if addr := os.Getenv("EFFECTRUN_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if level := os.Getenv("EFFECTRUN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

var (
	ValidDrivers       = []string{"memdb", "postgres"}
	ValidCacheBackends = []string{"ristretto", "otter"}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(ValidDrivers, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("invalid database driver: %q (valid: %v)", c.Database.Driver, ValidDrivers))
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn not configured (set EFFECTRUN_DATABASE_DSN)"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
	}
	if !slices.Contains(ValidCacheBackends, c.Cache.Backend) {
		errs = append(errs, fmt.Errorf("invalid cache backend: %q (valid: %v)", c.Cache.Backend, ValidCacheBackends))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries))
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth secret not configured (set EFFECTRUN_AUTH_SECRET)"))
	}
	for name, value := range map[string]string{
		"http.shutdown_timeout":     c.HTTP.ShutdownTimeout,
		"cache.default_ttl":         c.Cache.DefaultTTL,
		"messaging.consume_timeout": c.Messaging.ConsumeTimeout,
		"auth.access_ttl":           c.Auth.AccessTTL,
		"auth.refresh_ttl":          c.Auth.RefreshTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid duration %s: %w", name, err))
		}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ShutdownTimeout returns the HTTP shutdown timeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.HTTP.ShutdownTimeout, 10*time.Second)
}

// CacheTTL returns the default cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return duration(c.Cache.DefaultTTL, 5*time.Minute)
}

// ConsumeTimeout returns the default consume timeout as a duration.
func (c *Config) ConsumeTimeout() time.Duration {
	return duration(c.Messaging.ConsumeTimeout, 5*time.Second)
}

func (c *Config) AccessTTL() time.Duration {
	return duration(c.Auth.AccessTTL, 15*time.Minute)
}

func (c *Config) RefreshTTL() time.Duration {
	return duration(c.Auth.RefreshTTL, 7*24*time.Hour)
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
