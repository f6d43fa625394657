package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Collection keeps a JSON array of T under a single key. Every mutation
// writes the whole array back; a failed write leaves the cached copy as it
// was.
type Collection[T any] struct {
	store Store
	key   string
	mu    sync.RWMutex
	items []T
}

// LoadCollection reads key from store. A missing key yields an empty
// collection.
func LoadCollection[T any](ctx context.Context, store Store, key string) (*Collection[T], error) {
	c := &Collection[T]{store: store, key: key}
	data, ok, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if ok && len(data) > 0 {
		if err := json.Unmarshal(data, &c.items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return c, nil
}

// Read calls fn with the current items under a read lock. fn must not retain
// or modify the slice.
func (c *Collection[T]) Read(fn func(items []T)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.items)
}

// Write passes a copy of the items to fn and persists what it returns. If fn
// returns an error nothing is written.
func (c *Collection[T]) Write(ctx context.Context, fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(append([]T(nil), c.items...))
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Save(ctx, c.key, data); err != nil {
		return err
	}
	c.items = next
	return nil
}
