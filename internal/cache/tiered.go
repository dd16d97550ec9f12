package cache

import (
	"context"
	"errors"
)

// Tiered checks a local store before a shared one and copies shared hits
// into the local store.
type Tiered struct {
	local  Store
	remote Store
	stats  counters
}

// NewTiered fronts remote with local.
func NewTiered(local, remote Store) *Tiered {
	return &Tiered{local: local, remote: remote}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		t.stats.lookup(true)
		return v, true
	}
	v, ok := t.remote.Get(ctx, key)
	t.stats.lookup(ok)
	if ok {
		_ = t.local.Set(ctx, key, v)
	}
	return v, ok
}

// Set writes both layers; a remote failure is returned after the local write.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	t.stats.sets.Add(1)
	if err := t.local.Set(ctx, key, value); err != nil {
		t.stats.errors.Add(1)
		return err
	}
	if err := t.remote.Set(ctx, key, value); err != nil {
		t.stats.errors.Add(1)
		return err
	}
	return nil
}

func (t *Tiered) Clear(ctx context.Context) error {
	return errors.Join(t.local.Clear(ctx), t.remote.Clear(ctx))
}

// Stats reports lookups at the tiered level; a hit in either layer counts once.
func (t *Tiered) Stats() Stats { return t.stats.snapshot() }

// Layers returns the per-layer statistics.
func (t *Tiered) Layers() (local, remote Stats) {
	return t.local.Stats(), t.remote.Stats()
}

func (t *Tiered) Close() error {
	return errors.Join(t.local.Close(), t.remote.Close())
}
