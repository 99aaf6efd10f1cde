// Package postgres implements a PostgreSQL-backed cart persistence
// strategy.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"foodhub/pkg/cart"
)

// Storage keeps one snapshot row per namespace key. The caller must
// ensure the carts table exists:
// CREATE TABLE IF NOT EXISTS carts (key TEXT PRIMARY KEY, snapshot JSONB NOT NULL);
type Storage struct {
	db  *sql.DB
	key string
}

// New returns a storage bound to the given namespace key.
func New(db *sql.DB, key string) *Storage {
	return &Storage{db: db, key: key}
}

// Save upserts the serialized snapshot.
func (s *Storage) Save(ctx context.Context, snap cart.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO carts (key, snapshot) VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET snapshot=$2",
		s.key, b)
	if err != nil {
		return fmt.Errorf("upsert cart %s: %w", s.key, err)
	}
	return nil
}

// Load reads the snapshot row, reporting false when none exists.
func (s *Storage) Load(ctx context.Context) (cart.Snapshot, bool, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM carts WHERE key=$1", s.key).Scan(&b)
	if err == sql.ErrNoRows {
		return cart.Snapshot{}, false, nil
	}
	if err != nil {
		return cart.Snapshot{}, false, fmt.Errorf("select cart %s: %w", s.key, err)
	}
	var snap cart.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return cart.Snapshot{}, false, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	return snap, true, nil
}
