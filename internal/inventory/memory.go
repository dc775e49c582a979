package inventory

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory item and user store for testing and development.
// It satisfies the same consumer interfaces as *Repository.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*Item
	users map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*Item),
		users: make(map[string]string),
	}
}

// PutItem adds or replaces an item.
func (m *Memory) PutItem(it *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	it.UpdatedAt = time.Now().UTC()
	cp := *it
	m.items[it.ID] = &cp
}

// PutUser registers a user id → username mapping.
func (m *Memory) PutUser(id, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = username
}

// GetItem retrieves an item by id.
func (m *Memory) GetItem(_ context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// SetItemState writes the item's state reference back.
func (m *Memory) SetItemState(_ context.Context, id, stateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	s := stateID
	it.StateID = &s
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// SetItemQuantity writes the item's quantity back.
func (m *Memory) SetItemQuantity(_ context.Context, id string, quantity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	it.Quantity = quantity
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementScanCount bumps the item's scan counter and returns the new value.
func (m *Memory) IncrementScanCount(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, ErrNotFound
	}
	it.ScanCount++
	return it.ScanCount, nil
}

// AddLabelCount bumps the item's label counter by n and returns the new value.
func (m *Memory) AddLabelCount(_ context.Context, id string, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, ErrNotFound
	}
	it.LabelCount += n
	return it.LabelCount, nil
}

// Username resolves a user id to a display name.
func (m *Memory) Username(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}
