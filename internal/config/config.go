package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/NMJL-Companion/internal/cache"
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
)

// Config represents the application configuration.
type Config struct {
	// API server configuration
	Server ServerConfig `toml:"server"`

	// Engine scan settings
	Engine EngineConfig `toml:"engine"`

	// Memoization cache configuration
	Cache CacheConfig `toml:"cache"`

	// Catalog store configuration
	Storage StorageConfig `toml:"storage"`

	// Pattern catalog source
	Catalog CatalogConfig `toml:"catalog"`

	// Event bridge configuration
	Events EventsConfig `toml:"events"`

	// Scoring constants for every engine stage
	Policy engine.Policies `toml:"policy"`

	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig contains API server settings.
type ServerConfig struct {
	Port           int      `toml:"port"`            // Listen port
	CORSOrigins    []string `toml:"cors_origins"`    // Allowed browser origins
	RateLimit      float64  `toml:"rate_limit"`      // Requests per second per client (0 = unlimited)
	RateBurst      int      `toml:"rate_burst"`      // Burst allowance
	RequestTimeout string   `toml:"request_timeout"` // e.g. "30s"
	Debug          bool     `toml:"debug"`           // Mount /debug/statsviz
}

// EngineConfig contains scan settings.
type EngineConfig struct {
	ScanTimeout   string `toml:"scan_timeout"`   // Live session scan timeout (e.g. "5s")
	SlowThreshold string `toml:"slow_threshold"` // Scans slower than this are logged
}

// CacheConfig contains memoization settings.
type CacheConfig struct {
	Enabled bool        `toml:"enabled"`  // Enable caching
	MaxCost int64       `toml:"max_cost"` // Bytes of encoded reports kept in memory
	TTL     string      `toml:"ttl"`      // Cache TTL (e.g., "1h"; "0s" = no expiry)
	Redis   RedisConfig `toml:"redis"`    // Optional shared layer
}

// RedisConfig contains the shared cache layer settings.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// StorageConfig contains the sqlite catalog store settings.
type StorageConfig struct {
	Path string `toml:"path"` // Empty disables the store
}

// CatalogConfig selects the pattern catalog.
type CatalogConfig struct {
	Path string `toml:"path"` // JSON or YAML file; empty uses the store, then the built-in card
}

// EventsConfig contains event bridge settings.
type EventsConfig struct {
	NATS NATSConfig `toml:"nats"`
}

// NATSConfig contains NATS bridge settings.
type NATSConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Subject       string `toml:"subject"`
	MaxReconnects int    `toml:"max_reconnects"`
	ReconnectWait string `toml:"reconnect_wait"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"` // debug, info, warn or error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cacheDefaults := cache.DefaultConfig()
	redisDefaults := cache.DefaultRedisConfig()
	natsDefaults := events.DefaultNATSConfig()
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:      20,
			RateBurst:      40,
			RequestTimeout: "30s",
		},
		Engine: EngineConfig{
			ScanTimeout:   "5s",
			SlowThreshold: engine.DefaultSlowScanThreshold.String(),
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxCost: cacheDefaults.MaxCost,
			TTL:     cacheDefaults.TTL.String(),
			Redis: RedisConfig{
				Addr:   redisDefaults.Addr,
				Prefix: redisDefaults.Prefix,
			},
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				URL:           natsDefaults.URL,
				Subject:       natsDefaults.Subject,
				MaxReconnects: natsDefaults.MaxReconnects,
				ReconnectWait: natsDefaults.ReconnectWait.String(),
			},
		},
		Policy:  engine.DefaultPolicies(),
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultPath returns ~/.nmjl-companion/config.toml, creating the directory.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".nmjl-companion")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load reads the configuration at path over the defaults, so a file only
// needs the keys it changes. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("rate limit and burst cannot be negative"))
	}
	for name, value := range map[string]string{
		"server.request_timeout":     c.Server.RequestTimeout,
		"engine.scan_timeout":        c.Engine.ScanTimeout,
		"engine.slow_threshold":      c.Engine.SlowThreshold,
		"cache.ttl":                  c.Cache.TTL,
		"events.nats.reconnect_wait": c.Events.NATS.ReconnectWait,
	} {
		if d, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, value, err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative: %s", name, value))
		}
	}
	if c.Cache.Enabled && c.Cache.MaxCost <= 0 {
		errs = append(errs, fmt.Errorf("cache max cost must be positive: %d", c.Cache.MaxCost))
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr is required when redis is enabled"))
	}
	if c.Events.NATS.Enabled && (c.Events.NATS.URL == "" || c.Events.NATS.Subject == "") {
		errs = append(errs, errors.New("events.nats url and subject are required when nats is enabled"))
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}

	return errors.Join(errs...)
}

// Environment variables that override file settings.
const (
	EnvPort      = "NMJL_PORT"
	EnvLogLevel  = "NMJL_LOG_LEVEL"
	EnvRedisAddr = "NMJL_REDIS_ADDR"
	EnvNATSURL   = "NMJL_NATS_URL"
	EnvDBPath    = "NMJL_DB_PATH"
)

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from NMJL_* variables. Setting a redis address
// or NATS url also enables that layer.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.Events.NATS.URL = v
		c.Events.NATS.Enabled = true
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	return nil
}

// RequestTimeout returns the API request timeout.
func (c *Config) RequestTimeout() time.Duration { return mustDuration(c.Server.RequestTimeout) }

// ScanTimeout returns the live session scan timeout.
func (c *Config) ScanTimeout() time.Duration { return mustDuration(c.Engine.ScanTimeout) }

// SlowThreshold returns the slow scan log threshold.
func (c *Config) SlowThreshold() time.Duration { return mustDuration(c.Engine.SlowThreshold) }

// CacheOptions converts the cache section for cache.Open.
func (c *Config) CacheOptions() cache.Config {
	redisDefaults := cache.DefaultRedisConfig()
	return cache.Config{
		Enabled: c.Cache.Enabled,
		MaxCost: c.Cache.MaxCost,
		TTL:     mustDuration(c.Cache.TTL),
		Redis: cache.RedisConfig{
			Enabled:     c.Cache.Redis.Enabled,
			Addr:        c.Cache.Redis.Addr,
			Password:    c.Cache.Redis.Password,
			DB:          c.Cache.Redis.DB,
			Prefix:      c.Cache.Redis.Prefix,
			DialTimeout: redisDefaults.DialTimeout,
		},
	}
}

// NATSOptions converts the NATS section for events.ConnectNATS.
func (c *Config) NATSOptions() events.NATSConfig {
	n := c.Events.NATS
	return events.NATSConfig{
		Enabled:       n.Enabled,
		URL:           n.URL,
		Subject:       n.Subject,
		MaxReconnects: n.MaxReconnects,
		ReconnectWait: mustDuration(n.ReconnectWait),
	}
}

// mustDuration parses a validated duration; invalid text means zero.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
