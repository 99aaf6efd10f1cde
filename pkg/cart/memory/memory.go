// Package memory implements an in-memory cart persistence strategy.
package memory

import (
	"context"
	"sync"

	"foodhub/pkg/cart"
)

// Storage keeps the snapshot in process memory. Useful for tests and
// single-node development.
type Storage struct {
	mu   sync.RWMutex
	snap cart.Snapshot
	ok   bool
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{}
}

// Save stores a copy of the snapshot.
func (s *Storage) Save(ctx context.Context, snap cart.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = cart.Snapshot{Items: append([]cart.Line(nil), snap.Items...)}
	s.ok = true
	return nil
}

// Load returns the last saved snapshot, reporting false before any Save.
func (s *Storage) Load(ctx context.Context) (cart.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return cart.Snapshot{}, false, nil
	}
	return cart.Snapshot{Items: append([]cart.Line(nil), s.snap.Items...)}, true, nil
}
