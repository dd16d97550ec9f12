package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
)

// RedisConfig configures the shared cache layer.
type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// DefaultRedisConfig points at a local server and leaves the layer off.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		Prefix:      "nmjl:analysis:",
		DialTimeout: 2 * time.Second,
	}
}

// RedisStore keeps entries in redis under a key prefix, so several engine
// processes can share results.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *log.Logger
	stats  counters
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration, logger *log.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix, ttl, logger), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes ownership
// and closes it on Close.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string, ttl time.Duration, logger *log.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.Or(logger).With("component", "redis-cache"),
	}
}

// Get treats any redis error as a miss.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		r.stats.lookup(false)
		return nil, false
	case err != nil:
		r.stats.errors.Add(1)
		r.stats.lookup(false)
		r.logger.Debug("redis get failed", "key", key, "err", err)
		return nil, false
	}
	r.stats.lookup(true)
	return data, true
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	r.stats.sets.Add(1)
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := r.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				r.stats.errors.Add(1)
				return fmt.Errorf("redis clear: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (r *RedisStore) Stats() Stats { return r.stats.snapshot() }

func (r *RedisStore) Close() error { return r.client.Close() }
