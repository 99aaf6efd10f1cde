package cart_test

import (
	"context"
	"errors"
	"testing"

	"foodhub/pkg/cart"
	"foodhub/pkg/cart/memory"
)

func newStore(t *testing.T) (*cart.Store, *memory.Storage) {
	t.Helper()
	p := memory.New()
	return cart.New(context.Background(), p, nil), p
}

func TestAddItemAggregatesByID(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	meal := cart.Meal{ID: "m1", Name: "Pad Thai", Price: 11.5, ImageURL: "/img/pad-thai.jpg"}
	for i := 0; i < 3; i++ {
		s.AddItem(ctx, meal)
	}

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", items[0].Quantity)
	}
}

func TestAddItemKeepsFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Pad Thai", Price: 11.5})
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Pad Thai Deluxe", Price: 14.0})

	items := s.Items()
	if items[0].Name != "Pad Thai" || items[0].Price != 11.5 {
		t.Fatalf("snapshot overwritten: %+v", items[0])
	}
	if items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", items[0].Quantity)
	}
}

func TestUpdateQuantityFloorsAtOne(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})

	for _, q := range []int{0, -1, -100} {
		s.UpdateQuantity(ctx, "m1", q)
		items := s.Items()
		if len(items) != 1 {
			t.Fatalf("quantity %d removed the line", q)
		}
		if items[0].Quantity != 1 {
			t.Fatalf("quantity %d: expected floor 1, got %d", q, items[0].Quantity)
		}
	}

	s.UpdateQuantity(ctx, "m1", 7)
	if got := s.Items()[0].Quantity; got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestUpdateQuantityAbsentIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})

	s.UpdateQuantity(ctx, "missing", 5)
	if n := len(s.Items()); n != 1 {
		t.Fatalf("expected 1 line, got %d", n)
	}
}

func TestRemoveItemIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})
	s.AddItem(ctx, cart.Meal{ID: "m2", Name: "Gyoza", Price: 5})

	s.RemoveItem(ctx, "m1")
	s.RemoveItem(ctx, "m1")

	if n := len(s.Items()); n != 1 {
		t.Fatalf("expected 1 line, got %d", n)
	}
	if s.ItemCount() != 1 {
		t.Fatalf("expected count 1, got %d", s.ItemCount())
	}
	if s.Total() != 5 {
		t.Fatalf("expected total 5, got %v", s.Total())
	}
}

func TestCountAndTotalInvariant(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	check := func(step string) {
		t.Helper()
		count, total := 0, 0.0
		for _, l := range s.Items() {
			count += l.Quantity
			total += l.Price * float64(l.Quantity)
		}
		if s.ItemCount() != count {
			t.Fatalf("%s: count %d, want %d", step, s.ItemCount(), count)
		}
		if s.Total() != total {
			t.Fatalf("%s: total %v, want %v", step, s.Total(), total)
		}
	}

	s.AddItem(ctx, cart.Meal{ID: "a", Name: "A", Price: 3.5})
	check("add a")
	s.AddItem(ctx, cart.Meal{ID: "b", Name: "B", Price: 2})
	check("add b")
	s.AddItem(ctx, cart.Meal{ID: "a", Name: "A", Price: 3.5})
	check("add a again")
	s.UpdateQuantity(ctx, "b", 4)
	check("update b")
	s.UpdateQuantity(ctx, "a", -2)
	check("floor a")
	s.RemoveItem(ctx, "b")
	check("remove b")
	s.RemoveItem(ctx, "b")
	check("remove b again")
	s.Clear(ctx)
	check("clear")
	if s.ItemCount() != 0 || s.Total() != 0 {
		t.Fatalf("expected empty cart, count=%d total=%v", s.ItemCount(), s.Total())
	}
}

func TestClearAlwaysEmpties(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.AddItem(ctx, cart.Meal{ID: "a", Name: "A", Price: 3})
	s.AddItem(ctx, cart.Meal{ID: "b", Name: "B", Price: 4})

	s.Clear(ctx)
	if n := len(s.Items()); n != 0 {
		t.Fatalf("expected empty, got %d lines", n)
	}
	s.Clear(ctx)
	if n := len(s.Items()); n != 0 {
		t.Fatalf("expected empty after second clear, got %d lines", n)
	}
}

func TestRehydratesFromPersistence(t *testing.T) {
	ctx := context.Background()
	p := memory.New()

	s := cart.New(ctx, p, nil)
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})
	s.UpdateQuantity(ctx, "m1", 2)

	reloaded := cart.New(ctx, p, nil)
	items := reloaded.Items()
	if len(items) != 1 || items[0].Quantity != 2 || items[0].Name != "Ramen" {
		t.Fatalf("unexpected rehydrated state: %+v", items)
	}
}

type failingPersistence struct{}

func (failingPersistence) Save(ctx context.Context, snap cart.Snapshot) error {
	return errors.New("quota exceeded")
}

func (failingPersistence) Load(ctx context.Context) (cart.Snapshot, bool, error) {
	return cart.Snapshot{}, false, nil
}

func TestWriteFailureKeepsMemoryAuthoritative(t *testing.T) {
	ctx := context.Background()
	s := cart.New(ctx, failingPersistence{}, nil)

	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})
	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})

	items := s.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("state rolled back on persistence failure: %+v", items)
	}
}

func TestSubscribeNotifiesOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var got []cart.Snapshot
	unsubscribe := s.Subscribe(func(snap cart.Snapshot) {
		got = append(got, snap)
	})

	s.AddItem(ctx, cart.Meal{ID: "m1", Name: "Ramen", Price: 9})
	s.UpdateQuantity(ctx, "m1", 3)
	s.RemoveItem(ctx, "m1")
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	if got[1].Items[0].Quantity != 3 {
		t.Fatalf("notification carries stale state: %+v", got[1])
	}

	unsubscribe()
	s.Clear(ctx)
	if len(got) != 3 {
		t.Fatalf("listener notified after unsubscribe")
	}
}
