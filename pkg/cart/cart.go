// Package cart maintains the single source of truth for what a visitor
// intends to order, persisted across page loads through a pluggable
// storage strategy.
package cart

import (
	"context"
	"sync"

	"foodhub/pkg/logger"
)

// Line is one aggregated cart entry, keyed by meal id. Name, price and
// image are a snapshot taken when the meal was first added.
type Line struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Quantity int     `json:"quantity"`
}

// Meal is the add-time input for a line.
type Meal struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// Snapshot is the full serialized cart state.
type Snapshot struct {
	Items []Line `json:"items"`
}

// Persistence stores the cart snapshot between sessions. Load reports
// false when no snapshot exists yet.
type Persistence interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
}

// Listener is notified with the new snapshot after every mutation.
type Listener func(Snapshot)

// Store holds the cart lines and keeps the persistence layer in sync.
// All operations are safe for concurrent use. Mutations never fail from
// the caller's perspective: a persistence write error is logged and the
// in-memory state stays authoritative for the rest of the session.
type Store struct {
	persistence Persistence
	log         *logger.Logger

	mu        sync.Mutex
	items     []Line
	listeners map[int]Listener
	nextID    int
}

// New builds a store rehydrated from persistence. A missing snapshot, or
// a load error, starts the cart empty.
func New(ctx context.Context, p Persistence, log *logger.Logger) *Store {
	s := &Store{
		persistence: p,
		log:         log,
		listeners:   make(map[int]Listener),
	}
	snap, ok, err := p.Load(ctx)
	if err != nil {
		if log != nil {
			log.Error(ctx, "load cart snapshot", "error", err)
		}
		return s
	}
	if ok {
		s.items = append(s.items, snap.Items...)
	}
	return s
}

// Subscribe registers fn to run after every mutation. The returned
// function unsubscribes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// AddItem merges the meal into the cart: an existing line has its
// quantity incremented and keeps its original snapshot fields, otherwise
// a new line with quantity 1 is appended.
func (s *Store) AddItem(ctx context.Context, meal Meal) {
	s.mutate(ctx, func() {
		for i := range s.items {
			if s.items[i].ID == meal.ID {
				s.items[i].Quantity++
				return
			}
		}
		s.items = append(s.items, Line{
			ID:       meal.ID,
			Name:     meal.Name,
			Price:    meal.Price,
			ImageURL: meal.ImageURL,
			Quantity: 1,
		})
	})
}

// RemoveItem deletes the line with the given id. Removing an absent id
// is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) {
	s.mutate(ctx, func() {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items = append(s.items[:i], s.items[i+1:]...)
				return
			}
		}
	})
}

// UpdateQuantity sets the line's quantity, floored at 1. The line is
// never removed through this path; use RemoveItem for that. An absent id
// is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	s.mutate(ctx, func() {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items[i].Quantity = quantity
				return
			}
		}
	})
}

// Clear empties the cart. Called after a successful order placement.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func() {
		s.items = nil
	})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.items...)
}

// ItemCount is the sum of all line quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.items {
		n += l.Quantity
	}
	return n
}

// Total is the sum of price times quantity over all lines.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := 0.0
	for _, l := range s.items {
		t += l.Price * float64(l.Quantity)
	}
	return t
}

// Snapshot returns the current serializable state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Items: s.Items()}
}

// mutate applies fn under the lock, persists the result and notifies
// listeners. Listeners run outside the lock so they may read the store.
func (s *Store) mutate(ctx context.Context, fn func()) {
	s.mu.Lock()
	fn()
	snap := Snapshot{Items: append([]Line(nil), s.items...)}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if err := s.persistence.Save(ctx, snap); err != nil && s.log != nil {
		s.log.Error(ctx, "persist cart snapshot", "error", err)
	}
	for _, l := range listeners {
		l(snap)
	}
}
