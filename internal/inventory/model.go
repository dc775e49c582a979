// Package inventory is the ledger's edge onto the warehouse inventory
// subsystem. The ledger does not own items; it reads their identity,
// quantity, and state, and writes back only the state reference and the
// scan/label counters it is asked to track. Everything else about items
// (lots, cartons, material types, CRUD) lives outside this repository.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an item or user does not exist.
var ErrNotFound = errors.New("inventory record not found")

// Item is the minimal view of an inventory item the ledger consumes.
type Item struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Quantity   float64   `json:"quantity"`
	StateID    *string   `json:"state_id"`
	ScanCount  int       `json:"scan_count"`
	LabelCount int       `json:"label_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is the minimal view of an acting user, used only to resolve
// display names in ledger history output.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ItemState is one entry in the item-state catalog.
type ItemState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Well-known state identifiers. The catalog is a closed enumeration built
// once at startup; services resolve names through it instead of querying
// a catalog table per request.
const (
	StateAvailable      = "available"
	StateAssigned       = "assigned"
	StateReserved       = "reserved"
	StateAssignedWorker = "assigned-worker"
	StateInProgress     = "in-progress"
	StateWaitingTC      = "waiting-tc"
	StateCompleted      = "completed"
	StateConsumed       = "consumed"
)

// DefaultStates returns the built-in state catalog entries. Deployments
// that keep the catalog in the database seed it from this list.
func DefaultStates() []ItemState {
	return []ItemState{
		{ID: StateAvailable, Name: "Available"},
		{ID: StateAssigned, Name: "Assigned"},
		{ID: StateReserved, Name: "Reserved"},
		{ID: StateAssignedWorker, Name: "Assigned to Worker"},
		{ID: StateInProgress, Name: "In Progress"},
		{ID: StateWaitingTC, Name: "Waiting T&C"},
		{ID: StateCompleted, Name: "Completed"},
		{ID: StateConsumed, Name: "Consumed"},
	}
}

// StateCatalog maps item-state names to identifiers and back. It is
// immutable after construction, so it is safe for concurrent use.
type StateCatalog struct {
	byName map[string]ItemState
	byID   map[string]ItemState
}

// NewStateCatalog builds a catalog from the given states. Name matching
// is case-insensitive. Duplicate names or ids are rejected.
func NewStateCatalog(states []ItemState) (*StateCatalog, error) {
	c := &StateCatalog{
		byName: make(map[string]ItemState, len(states)),
		byID:   make(map[string]ItemState, len(states)),
	}
	for _, s := range states {
		key := strings.ToLower(s.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate state name %q", s.Name)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate state id %q", s.ID)
		}
		c.byName[key] = s
		c.byID[s.ID] = s
	}
	return c, nil
}

// ByName resolves a state by its display name, case-insensitively.
func (c *StateCatalog) ByName(name string) (ItemState, bool) {
	s, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ByID resolves a state by its identifier.
func (c *StateCatalog) ByID(id string) (ItemState, bool) {
	s, ok := c.byID[id]
	return s, ok
}
