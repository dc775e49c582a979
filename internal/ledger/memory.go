package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for testing and for single-process deployments that do
// not require durable persistence across restarts.
type MemoryStore struct {
	// txMu serialises units of work; mu guards the data itself.
	txMu sync.Mutex
	mu   sync.RWMutex

	blocks []*Block      // ordered by block number
	txs    []*Transaction // insertion order
	snaps  []*Snapshot
	seq    int64
}

// NewMemoryStore creates an empty MemoryStore. The genesis block is not
// created here; that is the Service's job, so memory and Postgres deployments
// bootstrap identically.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// WithinTx implements Store. MemoryStore has no real transactions, so it
// journals by copying all state up front and restoring the copy if fn
// fails. Units of work are serialised, which is also what gives the
// service its strict block-capacity guarantee on this backend.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	savedBlocks := cloneBlocks(m.blocks)
	savedTxs := cloneTransactions(m.txs)
	savedSnaps := cloneSnapshots(m.snaps)
	savedSeq := m.seq
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.blocks = savedBlocks
		m.txs = savedTxs
		m.snaps = savedSnaps
		m.seq = savedSeq
		m.mu.Unlock()
		return err
	}
	return nil
}

func cloneBlocks(in []*Block) []*Block {
	out := make([]*Block, len(in))
	for i, b := range in {
		cp := *b
		out[i] = &cp
	}
	return out
}

func cloneTransactions(in []*Transaction) []*Transaction {
	out := make([]*Transaction, len(in))
	for i, t := range in {
		cp := *t
		out[i] = &cp
	}
	return out
}

func cloneSnapshots(in []*Snapshot) []*Snapshot {
	out := make([]*Snapshot, len(in))
	for i, s := range in {
		cp := *s
		out[i] = &cp
	}
	return out
}

// FirstBlock implements Store.
func (m *MemoryStore) FirstBlock(_ context.Context) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.blocks) == 0 {
		return nil, ErrNotFound
	}
	cp := *m.blocks[0]
	return &cp, nil
}

// LatestBlock implements Store.
func (m *MemoryStore) LatestBlock(_ context.Context) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.blocks) == 0 {
		return nil, ErrNotFound
	}
	cp := *m.blocks[len(m.blocks)-1]
	return &cp, nil
}

// BlockByID implements Store.
func (m *MemoryStore) BlockByID(_ context.Context, id uuid.UUID) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.blocks {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// BlockByNumber implements Store.
func (m *MemoryStore) BlockByNumber(_ context.Context, number int64) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.blocks {
		if b.Number == number {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListBlocks implements Store. Blocks are returned in ascending number order.
func (m *MemoryStore) ListBlocks(_ context.Context, limit, offset int) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset < 0 || offset >= len(m.blocks) {
		return nil, nil
	}
	end := len(m.blocks)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return cloneBlocks(m.blocks[offset:end]), nil
}

// CountBlocks implements Store.
func (m *MemoryStore) CountBlocks(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks), nil
}

// InsertBlock implements Store.
func (m *MemoryStore) InsertBlock(_ context.Context, b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.blocks = append(m.blocks, &cp)
	sort.Slice(m.blocks, func(i, j int) bool { return m.blocks[i].Number < m.blocks[j].Number })
	return nil
}

// UpdateBlockHash implements Store.
func (m *MemoryStore) UpdateBlockHash(_ context.Context, b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.blocks {
		if stored.ID == b.ID {
			stored.Hash = b.Hash
			stored.MerkleRoot = b.MerkleRoot
			stored.TransactionCount = b.TransactionCount
			return nil
		}
	}
	return ErrNotFound
}

// InsertTransaction implements Store.
func (m *MemoryStore) InsertTransaction(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.Seq = m.seq
	cp := *t
	m.txs = append(m.txs, &cp)
	return nil
}

// TransactionByID implements Store.
func (m *MemoryStore) TransactionByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.txs {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// TransactionsByBlock implements Store.
func (m *MemoryStore) TransactionsByBlock(_ context.Context, blockID uuid.UUID) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Transaction
	for _, t := range m.txs {
		if t.BlockID == blockID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// TransactionsByItem implements Store.
func (m *MemoryStore) TransactionsByItem(_ context.Context, itemID string) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Transaction
	for _, t := range m.txs {
		if t.ItemID == itemID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// LatestTransactionByItem implements Store.
func (m *MemoryStore) LatestTransactionByItem(ctx context.Context, itemID string) (*Transaction, error) {
	all, err := m.TransactionsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[len(all)-1], nil
}

// ListTransactions implements Store. Results are newest first.
func (m *MemoryStore) ListTransactions(_ context.Context, f TransactionFilter) ([]*Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		t := m.txs[i]
		if f.ItemID != "" && t.ItemID != f.ItemID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// CountTransactions implements Store.
func (m *MemoryStore) CountTransactions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs), nil
}

// InsertSnapshot implements Store.
func (m *MemoryStore) InsertSnapshot(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.snaps = append(m.snaps, &cp)
	return nil
}

// ActiveSnapshot implements Store.
func (m *MemoryStore) ActiveSnapshot(_ context.Context, itemID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if m.snaps[i].ItemID == itemID && m.snaps[i].Active {
			cp := *m.snaps[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// DeactivateSnapshots implements Store.
func (m *MemoryStore) DeactivateSnapshots(_ context.Context, itemID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.snaps {
		if s.ItemID == itemID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

// SnapshotByTransaction implements Store.
func (m *MemoryStore) SnapshotByTransaction(_ context.Context, itemID string, txID uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snaps {
		if s.ItemID == itemID && s.TransactionID == txID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
