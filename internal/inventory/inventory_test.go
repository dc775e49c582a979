package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/waretrace/waretrace/internal/inventory"
)

var ctx = context.Background()

func TestNewStateCatalog_rejectsDuplicates(t *testing.T) {
	_, err := inventory.NewStateCatalog([]inventory.ItemState{
		{ID: "a", Name: "Available"},
		{ID: "b", Name: "available"},
	})
	if err == nil {
		t.Error("duplicate names (case-insensitive) should be rejected")
	}

	_, err = inventory.NewStateCatalog([]inventory.ItemState{
		{ID: "a", Name: "Available"},
		{ID: "a", Name: "Assigned"},
	})
	if err == nil {
		t.Error("duplicate ids should be rejected")
	}
}

func TestStateCatalog_ByName(t *testing.T) {
	c, err := inventory.NewStateCatalog(inventory.DefaultStates())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Available", "available", "AVAILABLE", "  Available  "} {
		st, ok := c.ByName(name)
		if !ok {
			t.Errorf("ByName(%q): not found", name)
			continue
		}
		if st.ID != inventory.StateAvailable {
			t.Errorf("ByName(%q): got id %q", name, st.ID)
		}
	}

	if _, ok := c.ByName("No Such State"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestStateCatalog_ByID(t *testing.T) {
	c, err := inventory.NewStateCatalog(inventory.DefaultStates())
	if err != nil {
		t.Fatal(err)
	}

	st, ok := c.ByID(inventory.StateWaitingTC)
	if !ok || st.Name != "Waiting T&C" {
		t.Errorf("ByID(waiting-tc): got %+v, ok=%v", st, ok)
	}
	if _, ok := c.ByID("bogus"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestMemory_itemLifecycle(t *testing.T) {
	m := inventory.NewMemory()
	m.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})

	it, err := m.GetItem(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if it.Quantity != 5 {
		t.Errorf("quantity: got %v, want 5", it.Quantity)
	}

	if err := m.SetItemState(ctx, "item-1", inventory.StateReserved); err != nil {
		t.Fatal(err)
	}
	if err := m.SetItemQuantity(ctx, "item-1", 3); err != nil {
		t.Fatal(err)
	}

	it, _ = m.GetItem(ctx, "item-1")
	if it.StateID == nil || *it.StateID != inventory.StateReserved {
		t.Errorf("state: got %v, want reserved", it.StateID)
	}
	if it.Quantity != 3 {
		t.Errorf("quantity: got %v, want 3", it.Quantity)
	}
}

func TestMemory_counters(t *testing.T) {
	m := inventory.NewMemory()
	m.PutItem(&inventory.Item{ID: "item-1"})

	if n, err := m.IncrementScanCount(ctx, "item-1"); err != nil || n != 1 {
		t.Errorf("first scan: got %d, %v", n, err)
	}
	if n, err := m.IncrementScanCount(ctx, "item-1"); err != nil || n != 2 {
		t.Errorf("second scan: got %d, %v", n, err)
	}
	if n, err := m.AddLabelCount(ctx, "item-1", 3); err != nil || n != 3 {
		t.Errorf("label count: got %d, %v", n, err)
	}
}

func TestMemory_missingItem(t *testing.T) {
	m := inventory.NewMemory()

	if _, err := m.GetItem(ctx, "nope"); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.SetItemState(ctx, "nope", inventory.StateAvailable); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_usernames(t *testing.T) {
	m := inventory.NewMemory()
	m.PutUser("u1", "dock.lead")

	name, err := m.Username(ctx, "u1")
	if err != nil || name != "dock.lead" {
		t.Errorf("Username: got %q, %v", name, err)
	}

	if _, err := m.Username(ctx, "ghost"); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}
