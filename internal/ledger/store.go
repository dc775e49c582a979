package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence interface for the ledger. Both MemoryStore and
// PostgresStore implement it.
//
// Methods returning a single record return ErrNotFound (possibly wrapped)
// when nothing matches. InsertTransaction assigns Seq, a monotonically
// increasing insertion sequence used to break creation-timestamp ties when
// ordering an item's history.
type Store interface {
	// WithinTx runs fn inside one unit of work. Every store call made with
	// the context passed to fn joins that unit; if fn returns an error the
	// whole unit rolls back, leaving no partial transaction, block update,
	// or snapshot behind.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	FirstBlock(ctx context.Context) (*Block, error)
	LatestBlock(ctx context.Context) (*Block, error)
	BlockByID(ctx context.Context, id uuid.UUID) (*Block, error)
	BlockByNumber(ctx context.Context, number int64) (*Block, error)
	ListBlocks(ctx context.Context, limit, offset int) ([]*Block, error)
	CountBlocks(ctx context.Context) (int, error)
	InsertBlock(ctx context.Context, b *Block) error
	// UpdateBlockHash persists a recomputed hash, Merkle root, and
	// transaction count. No other block field is ever updated.
	UpdateBlockHash(ctx context.Context, b *Block) error

	InsertTransaction(ctx context.Context, t *Transaction) error
	TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// TransactionsByBlock returns a block's transactions in append order.
	TransactionsByBlock(ctx context.Context, blockID uuid.UUID) ([]*Transaction, error)
	// TransactionsByItem returns an item's transactions ordered by
	// creation timestamp ascending (insertion sequence breaking ties).
	TransactionsByItem(ctx context.Context, itemID string) ([]*Transaction, error)
	LatestTransactionByItem(ctx context.Context, itemID string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error)
	CountTransactions(ctx context.Context) (int, error)

	InsertSnapshot(ctx context.Context, s *Snapshot) error
	ActiveSnapshot(ctx context.Context, itemID string) (*Snapshot, error)
	// DeactivateSnapshots retires every active snapshot for the item and
	// reports how many were retired.
	DeactivateSnapshots(ctx context.Context, itemID string) (int, error)
	SnapshotByTransaction(ctx context.Context, itemID string, txID uuid.UUID) (*Snapshot, error)
}
