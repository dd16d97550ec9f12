// Package cache provides the byte-oriented memoization stores the analysis
// engine uses: an in-process ristretto cache, an optional redis layer and a
// tiered store that fronts the second with the first.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
)

// Store is a key/value cache for encoded analysis results. Entries are
// immutable once written; a Set for an existing key replaces the value.
// Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	// Clear drops every entry the store owns.
	Clear(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Stats tracks cache performance.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Sets   uint64 `json:"sets"`
	Errors uint64 `json:"errors"`
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type counters struct {
	hits, misses, sets, errors atomic.Uint64
}

func (c *counters) lookup(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
	}
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.errors.Store(0)
}

// Config selects and sizes the stores.
type Config struct {
	Enabled bool
	MaxCost int64
	TTL     time.Duration
	Redis   RedisConfig
}

// DefaultConfig is a 64 MiB in-process cache with a one hour TTL and no redis.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		MaxCost: 64 << 20,
		TTL:     time.Hour,
		Redis:   DefaultRedisConfig(),
	}
}

// Validate checks the sizes.
func (c Config) Validate() error {
	var errs []error
	if c.MaxCost <= 0 {
		errs = append(errs, fmt.Errorf("cache max_cost must be positive, got %d", c.MaxCost))
	}
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl must not be negative, got %s", c.TTL))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("cache redis addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// Open builds the store described by cfg. It returns a nil Store when caching
// is disabled.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.Or(logger).With("component", "cache")

	mem, err := NewMemoryStore(cfg.MaxCost, cfg.TTL)
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		logger.Debug("memory cache ready", "max_cost", cfg.MaxCost, "ttl", cfg.TTL)
		return mem, nil
	}

	remote, err := NewRedisStore(ctx, cfg.Redis, cfg.TTL, logger)
	if err != nil {
		// The engine still works without the shared layer.
		logger.Warn("redis cache unavailable, using memory only", "addr", cfg.Redis.Addr, "err", err)
		return mem, nil
	}
	logger.Info("tiered cache ready", "redis", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	return NewTiered(mem, remote), nil
}
