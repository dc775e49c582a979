package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to
// serialise concurrent units of work across server instances. The value
// is arbitrary but must be consistent everywhere the ledger is written.
const advisoryLockKey = int64(7_214_860_911)

// PostgresStore persists the ledger to a PostgreSQL database. It
// implements the Store interface.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txCtxKey struct{}

// q returns the transaction bound to ctx by WithinTx, or the pool.
func (p *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.pool
}

// WithinTx implements Store. It opens one database transaction, takes the
// ledger advisory lock (released automatically at commit or rollback, so
// concurrent appends from any process are serialised), and binds the
// transaction to the context passed to fn.
func (p *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

const blockColumns = "id, block_number, block_hash, previous_hash, transaction_count, merkle_root, created_at"

func scanBlock(row pgx.Row) (*Block, error) {
	b := &Block{}
	err := row.Scan(&b.ID, &b.Number, &b.Hash, &b.PreviousHash, &b.TransactionCount, &b.MerkleRoot, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan block: %w", err)
	}
	return b, nil
}

// FirstBlock implements Store.
func (p *PostgresStore) FirstBlock(ctx context.Context) (*Block, error) {
	return scanBlock(p.q(ctx).QueryRow(ctx,
		"SELECT "+blockColumns+" FROM ledger_blocks ORDER BY block_number ASC LIMIT 1"))
}

// LatestBlock implements Store.
func (p *PostgresStore) LatestBlock(ctx context.Context) (*Block, error) {
	return scanBlock(p.q(ctx).QueryRow(ctx,
		"SELECT "+blockColumns+" FROM ledger_blocks ORDER BY block_number DESC LIMIT 1"))
}

// BlockByID implements Store.
func (p *PostgresStore) BlockByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	return scanBlock(p.q(ctx).QueryRow(ctx,
		"SELECT "+blockColumns+" FROM ledger_blocks WHERE id = $1", id))
}

// BlockByNumber implements Store.
func (p *PostgresStore) BlockByNumber(ctx context.Context, number int64) (*Block, error) {
	return scanBlock(p.q(ctx).QueryRow(ctx,
		"SELECT "+blockColumns+" FROM ledger_blocks WHERE block_number = $1", number))
}

// ListBlocks implements Store.
func (p *PostgresStore) ListBlocks(ctx context.Context, limit, offset int) ([]*Block, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.q(ctx).Query(ctx,
		"SELECT "+blockColumns+" FROM ledger_blocks ORDER BY block_number ASC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		if err := rows.Scan(&b.ID, &b.Number, &b.Hash, &b.PreviousHash, &b.TransactionCount, &b.MerkleRoot, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// CountBlocks implements Store.
func (p *PostgresStore) CountBlocks(ctx context.Context) (int, error) {
	var n int
	if err := p.q(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM ledger_blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count blocks: %w", err)
	}
	return n, nil
}

// InsertBlock implements Store.
func (p *PostgresStore) InsertBlock(ctx context.Context, b *Block) error {
	_, err := p.q(ctx).Exec(ctx,
		`INSERT INTO ledger_blocks (id, block_number, block_hash, previous_hash, transaction_count, merkle_root, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Number, b.Hash, b.PreviousHash, b.TransactionCount, b.MerkleRoot, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert block %d: %w", b.Number, err)
	}
	return nil
}

// UpdateBlockHash implements Store.
func (p *PostgresStore) UpdateBlockHash(ctx context.Context, b *Block) error {
	tag, err := p.q(ctx).Exec(ctx,
		`UPDATE ledger_blocks SET block_hash = $2, merkle_root = $3, transaction_count = $4 WHERE id = $1`,
		b.ID, b.Hash, b.MerkleRoot, b.TransactionCount,
	)
	if err != nil {
		return fmt.Errorf("update block hash %d: %w", b.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const txColumns = `id, seq, tx_hash, item_id, user_id, tx_type,
	old_quantity, new_quantity, old_state_id, new_state_id,
	old_location, new_location, block_id, payload, created_at`

func scanTx(row pgx.Row) (*Transaction, error) {
	t := &Transaction{}
	err := row.Scan(
		&t.ID, &t.Seq, &t.Hash, &t.ItemID, &t.UserID, &t.Type,
		&t.OldQuantity, &t.NewQuantity, &t.OldStateID, &t.NewStateID,
		&t.OldLocation, &t.NewLocation, &t.BlockID, &t.Payload, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func (p *PostgresStore) queryTxs(ctx context.Context, sql string, args ...any) ([]*Transaction, error) {
	rows, err := p.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(
			&t.ID, &t.Seq, &t.Hash, &t.ItemID, &t.UserID, &t.Type,
			&t.OldQuantity, &t.NewQuantity, &t.OldStateID, &t.NewStateID,
			&t.OldLocation, &t.NewLocation, &t.BlockID, &t.Payload, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// InsertTransaction implements Store.
func (p *PostgresStore) InsertTransaction(ctx context.Context, t *Transaction) error {
	err := p.q(ctx).QueryRow(ctx,
		`INSERT INTO ledger_transactions (
			id, tx_hash, item_id, user_id, tx_type,
			old_quantity, new_quantity, old_state_id, new_state_id,
			old_location, new_location, block_id, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`,
		t.ID, t.Hash, t.ItemID, t.UserID, t.Type,
		t.OldQuantity, t.NewQuantity, t.OldStateID, t.NewStateID,
		t.OldLocation, t.NewLocation, t.BlockID, t.Payload, t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

// TransactionByID implements Store.
func (p *PostgresStore) TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTx(p.q(ctx).QueryRow(ctx,
		"SELECT "+txColumns+" FROM ledger_transactions WHERE id = $1", id))
}

// TransactionsByBlock implements Store.
func (p *PostgresStore) TransactionsByBlock(ctx context.Context, blockID uuid.UUID) ([]*Transaction, error) {
	return p.queryTxs(ctx,
		"SELECT "+txColumns+" FROM ledger_transactions WHERE block_id = $1 ORDER BY seq ASC", blockID)
}

// TransactionsByItem implements Store.
func (p *PostgresStore) TransactionsByItem(ctx context.Context, itemID string) ([]*Transaction, error) {
	return p.queryTxs(ctx,
		"SELECT "+txColumns+" FROM ledger_transactions WHERE item_id = $1 ORDER BY created_at ASC, seq ASC", itemID)
}

// LatestTransactionByItem implements Store.
func (p *PostgresStore) LatestTransactionByItem(ctx context.Context, itemID string) (*Transaction, error) {
	return scanTx(p.q(ctx).QueryRow(ctx,
		"SELECT "+txColumns+" FROM ledger_transactions WHERE item_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1", itemID))
}

// ListTransactions implements Store. Results are newest first.
func (p *PostgresStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return p.queryTxs(ctx,
		`SELECT `+txColumns+` FROM ledger_transactions
		 WHERE ($1 = '' OR item_id = $1)
		   AND ($2 = '' OR tx_type = $2)
		 ORDER BY seq DESC
		 LIMIT $3`,
		f.ItemID, string(f.Type), limit)
}

// CountTransactions implements Store.
func (p *PostgresStore) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := p.q(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM ledger_transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

const snapColumns = "id, item_id, transaction_id, quantity, state_id, location, active, created_at"

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	s := &Snapshot{}
	err := row.Scan(&s.ID, &s.ItemID, &s.TransactionID, &s.Quantity, &s.StateID, &s.Location, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return s, nil
}

// InsertSnapshot implements Store.
func (p *PostgresStore) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	_, err := p.q(ctx).Exec(ctx,
		`INSERT INTO ledger_item_states (id, item_id, transaction_id, quantity, state_id, location, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.ItemID, s.TransactionID, s.Quantity, s.StateID, s.Location, s.Active, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot for item %s: %w", s.ItemID, err)
	}
	return nil
}

// ActiveSnapshot implements Store.
func (p *PostgresStore) ActiveSnapshot(ctx context.Context, itemID string) (*Snapshot, error) {
	return scanSnapshot(p.q(ctx).QueryRow(ctx,
		"SELECT "+snapColumns+" FROM ledger_item_states WHERE item_id = $1 AND active ORDER BY created_at DESC LIMIT 1", itemID))
}

// DeactivateSnapshots implements Store.
func (p *PostgresStore) DeactivateSnapshots(ctx context.Context, itemID string) (int, error) {
	tag, err := p.q(ctx).Exec(ctx,
		"UPDATE ledger_item_states SET active = FALSE WHERE item_id = $1 AND active", itemID)
	if err != nil {
		return 0, fmt.Errorf("deactivate snapshots for item %s: %w", itemID, err)
	}
	return int(tag.RowsAffected()), nil
}

// SnapshotByTransaction implements Store.
func (p *PostgresStore) SnapshotByTransaction(ctx context.Context, itemID string, txID uuid.UUID) (*Snapshot, error) {
	return scanSnapshot(p.q(ctx).QueryRow(ctx,
		"SELECT "+snapColumns+" FROM ledger_item_states WHERE item_id = $1 AND transaction_id = $2", itemID, txID))
}
