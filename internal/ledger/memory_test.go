package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/waretrace/waretrace/internal/ledger"
)

func TestMemoryStore_WithinTxRollsBackOnError(t *testing.T) {
	store := ledger.NewMemoryStore()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(c context.Context) error {
		if err := store.InsertBlock(c, &ledger.Block{
			ID:           uuid.New(),
			Number:       0,
			Hash:         ledger.GenesisBlockHash(),
			PreviousHash: ledger.ZeroHash,
			MerkleRoot:   ledger.ZeroHash,
			CreatedAt:    time.Now(),
		}); err != nil {
			return err
		}
		if err := store.InsertTransaction(c, &ledger.Transaction{
			ID:        uuid.New(),
			Hash:      "h",
			ItemID:    "item-1",
			Type:      ledger.TxCreate,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fn error back, got %v", err)
	}

	if _, err := store.FirstBlock(ctx); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("block survived a rolled-back unit of work: %v", err)
	}
	n, err := store.CountTransactions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no transactions after rollback, got %d", n)
	}
}

func TestMemoryStore_WithinTxCommitsOnSuccess(t *testing.T) {
	store := ledger.NewMemoryStore()

	err := store.WithinTx(ctx, func(c context.Context) error {
		return store.InsertBlock(c, &ledger.Block{
			ID:           uuid.New(),
			Number:       0,
			Hash:         ledger.GenesisBlockHash(),
			PreviousHash: ledger.ZeroHash,
			MerkleRoot:   ledger.ZeroHash,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.FirstBlock(ctx); err != nil {
		t.Errorf("committed block not found: %v", err)
	}
}

func TestMemoryStore_returnsCopies(t *testing.T) {
	store := ledger.NewMemoryStore()
	blk := &ledger.Block{
		ID:           uuid.New(),
		Number:       0,
		Hash:         ledger.GenesisBlockHash(),
		PreviousHash: ledger.ZeroHash,
		MerkleRoot:   ledger.ZeroHash,
		CreatedAt:    time.Now(),
	}
	if err := store.InsertBlock(ctx, blk); err != nil {
		t.Fatal(err)
	}

	got, err := store.LatestBlock(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got.Hash = "mutated"

	again, err := store.LatestBlock(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.Hash != ledger.GenesisBlockHash() {
		t.Error("mutating a returned block leaked into the store")
	}
}
