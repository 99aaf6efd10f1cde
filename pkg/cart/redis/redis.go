// Package redis implements a redis-backed cart persistence strategy.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"foodhub/pkg/cart"
)

// Storage writes the full cart snapshot under one namespace key per
// visitor. Concurrent writers (multiple tabs) simply overwrite each
// other; last writer wins.
type Storage struct {
	client *redis.Client
	key    string
}

// New returns a storage bound to the given key, e.g. "foodhub:cart:<id>".
func New(client *redis.Client, key string) *Storage {
	return &Storage{client: client, key: key}
}

// Save serializes and stores the snapshot. No expiry: the cart lives
// until cleared.
func (s *Storage) Save(ctx context.Context, snap cart.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Load fetches and deserializes the snapshot, reporting false when the
// key does not exist.
func (s *Storage) Load(ctx context.Context) (cart.Snapshot, bool, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return cart.Snapshot{}, false, nil
	}
	if err != nil {
		return cart.Snapshot{}, false, fmt.Errorf("get %s: %w", s.key, err)
	}
	var snap cart.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return cart.Snapshot{}, false, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	return snap, true, nil
}
