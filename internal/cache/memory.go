package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryStore is an in-process cache bounded by total value size. Writes are
// buffered, so a Get straight after a Set may miss; call Wait to flush.
type MemoryStore struct {
	cache *ristretto.Cache
	ttl   time.Duration
	stats counters
}

// NewMemoryStore creates a store holding at most maxCost bytes of values.
// A zero ttl keeps entries until evicted.
func NewMemoryStore(maxCost int64, ttl time.Duration) (*MemoryStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: max(maxCost/64, 1e4),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{cache: c, ttl: ttl}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	v, found := m.cache.Get(key)
	data, ok := v.([]byte)
	ok = found && ok
	m.stats.lookup(ok)
	return data, ok
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.stats.sets.Add(1)
	// A rejected write is not an error: the admission policy decided the
	// entry was not worth keeping.
	m.cache.SetWithTTL(key, value, int64(len(value))+int64(len(key)), m.ttl)
	return nil
}

// Wait blocks until buffered writes are applied.
func (m *MemoryStore) Wait() { m.cache.Wait() }

func (m *MemoryStore) Clear(context.Context) error {
	m.cache.Clear()
	return nil
}

func (m *MemoryStore) Stats() Stats { return m.stats.snapshot() }

// ResetStats zeroes the counters without touching entries.
func (m *MemoryStore) ResetStats() { m.stats.reset() }

func (m *MemoryStore) Close() error {
	m.cache.Close()
	return nil
}
