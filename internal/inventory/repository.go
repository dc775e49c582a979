package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides item and user access against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const itemColumns = "id, label, quantity, state_id, scan_count, label_count, created_at, updated_at"

// GetItem retrieves an item by id.
func (r *Repository) GetItem(ctx context.Context, id string) (*Item, error) {
	it := &Item{}
	err := r.db.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = $1", id,
	).Scan(&it.ID, &it.Label, &it.Quantity, &it.StateID, &it.ScanCount, &it.LabelCount, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// CreateItem inserts an item row. Used by fixtures and the dev seed path;
// production item CRUD belongs to the inventory subsystem proper.
func (r *Repository) CreateItem(ctx context.Context, it *Item) error {
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	_, err := r.db.Exec(ctx,
		`INSERT INTO items (id, label, quantity, state_id, scan_count, label_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.ID, it.Label, it.Quantity, it.StateID, it.ScanCount, it.LabelCount, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create item %s: %w", it.ID, err)
	}
	return nil
}

// SetItemState writes the item's state reference back.
func (r *Repository) SetItemState(ctx context.Context, id, stateID string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE items SET state_id = $2, updated_at = now() WHERE id = $1", id, stateID)
	if err != nil {
		return fmt.Errorf("set state for item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetItemQuantity writes the item's quantity back.
func (r *Repository) SetItemQuantity(ctx context.Context, id string, quantity float64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE items SET quantity = $2, updated_at = now() WHERE id = $1", id, quantity)
	if err != nil {
		return fmt.Errorf("set quantity for item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementScanCount bumps the item's scan counter and returns the new value.
func (r *Repository) IncrementScanCount(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		"UPDATE items SET scan_count = scan_count + 1, updated_at = now() WHERE id = $1 RETURNING scan_count", id,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment scan count for item %s: %w", id, err)
	}
	return n, nil
}

// AddLabelCount bumps the item's label counter by n and returns the new value.
func (r *Repository) AddLabelCount(ctx context.Context, id string, n int) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"UPDATE items SET label_count = label_count + $2, updated_at = now() WHERE id = $1 RETURNING label_count", id, n,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("add label count for item %s: %w", id, err)
	}
	return count, nil
}

// Username resolves a user id to a display name.
func (r *Repository) Username(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, "SELECT username FROM users WHERE id = $1", userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return name, nil
}

// LoadStates reads the item-state catalog rows. An empty table is not an
// error; callers fall back to DefaultStates.
func (r *Repository) LoadStates(ctx context.Context) ([]ItemState, error) {
	rows, err := r.db.Query(ctx, "SELECT id, state_name FROM item_state_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load item states: %w", err)
	}
	defer rows.Close()

	var states []ItemState
	for rows.Next() {
		var s ItemState
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan item state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}
