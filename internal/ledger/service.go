package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waretrace/waretrace/internal/inventory"
	"go.uber.org/zap"
)

// DefaultMaxTransactionsPerBlock is the block capacity used when the
// configuration does not override it.
const DefaultMaxTransactionsPerBlock = 10

// ItemStore is the ledger's view of the inventory subsystem.
// *inventory.Repository and *inventory.Memory satisfy it. The ledger reads
// item identity and quantity, and writes back only the state reference and
// the scan/label counters.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*inventory.Item, error)
	SetItemState(ctx context.Context, id, stateID string) error
	IncrementScanCount(ctx context.Context, id string) (int, error)
	AddLabelCount(ctx context.Context, id string, n int) (int, error)
}

// UserResolver resolves an acting user id to a display name for history
// output. *inventory.Repository and *inventory.Memory satisfy it.
type UserResolver interface {
	Username(ctx context.Context, userID string) (string, error)
}

// Config holds service configuration.
type Config struct {
	// MaxTransactionsPerBlock caps how many transactions a block holds
	// before appends roll over to a new block. Defaults to
	// DefaultMaxTransactionsPerBlock when zero.
	MaxTransactionsPerBlock int
}

// Service orchestrates the ledger: block lifecycle, transaction hashing
// and insertion, snapshot maintenance, and history queries. It is the
// component the rest of the application calls.
type Service struct {
	store  Store
	items  ItemStore
	states *inventory.StateCatalog
	users  UserResolver // nil = ids only in history output

	// mu serialises all appends in-process; PostgresStore additionally
	// holds an advisory lock per unit of work, so the block capacity
	// check cannot race across server instances either.
	mu sync.Mutex

	cfg    Config
	logger *zap.Logger

	onAppend func(txType string) // nil = no metrics
	onBlock  func()
}

// NewService creates a new ledger Service.
func NewService(store Store, items ItemStore, states *inventory.StateCatalog, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxTransactionsPerBlock <= 0 {
		cfg.MaxTransactionsPerBlock = DefaultMaxTransactionsPerBlock
	}
	return &Service{
		store:  store,
		items:  items,
		states: states,
		cfg:    cfg,
		logger: logger,
	}
}

// SetUserResolver configures user display-name resolution for history output.
func (s *Service) SetUserResolver(users UserResolver) { s.users = users }

// SetMetricsHooks configures optional callbacks invoked after a
// transaction append and after a block creation.
func (s *Service) SetMetricsHooks(onAppend func(txType string), onBlock func()) {
	s.onAppend = onAppend
	s.onBlock = onBlock
}

// now returns the current UTC time truncated to microseconds. Postgres
// timestamptz stores microsecond precision; anything finer would make a
// reloaded block re-hash differently than it was written.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ── Block lifecycle ──────────────────────────────────────────────────────

// CreateGenesisBlock creates block 0 if the chain is empty and returns the
// first block either way. Idempotent; safe to call at every startup.
func (s *Service) CreateGenesisBlock(ctx context.Context) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var genesis *Block
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		first, err := s.store.FirstBlock(ctx)
		if err == nil {
			genesis = first
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		genesis = newGenesisBlock()
		if err := s.store.InsertBlock(ctx, genesis); err != nil {
			return err
		}
		s.logger.Info("genesis block created", zap.String("hash", genesis.Hash))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create genesis block: %w", err)
	}
	return genesis, nil
}

func newGenesisBlock() *Block {
	return &Block{
		ID:           uuid.New(),
		Number:       0,
		Hash:         GenesisBlockHash(),
		PreviousHash: ZeroHash,
		MerkleRoot:   ZeroHash,
		CreatedAt:    now(),
	}
}

// currentBlock returns the highest-numbered block, creating genesis when
// the chain is empty and rolling over to a fresh block when the current
// one is full. Must run inside a unit of work under s.mu.
func (s *Service) currentBlock(ctx context.Context) (*Block, error) {
	latest, err := s.store.LatestBlock(ctx)
	if errors.Is(err, ErrNotFound) {
		genesis := newGenesisBlock()
		if err := s.store.InsertBlock(ctx, genesis); err != nil {
			return nil, err
		}
		return genesis, nil
	}
	if err != nil {
		return nil, err
	}
	if latest.TransactionCount >= s.cfg.MaxTransactionsPerBlock {
		return s.newBlock(ctx, latest)
	}
	return latest, nil
}

// newBlock allocates the next block, chaining it to prev. The initial hash
// covers zero transactions and is recomputed as transactions land.
func (s *Service) newBlock(ctx context.Context, prev *Block) (*Block, error) {
	b := &Block{
		ID:           uuid.New(),
		Number:       prev.Number + 1,
		PreviousHash: prev.Hash,
		MerkleRoot:   MerkleRoot(nil),
		CreatedAt:    now(),
	}
	hash, err := BlockHash(b)
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	if err := s.store.InsertBlock(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Debug("block rolled over",
		zap.Int64("block_number", b.Number),
		zap.String("previous_hash", b.PreviousHash),
	)
	if s.onBlock != nil {
		s.onBlock()
	}
	return b, nil
}

// updateBlockHash reloads b's transactions and recomputes its Merkle root,
// transaction count, and hash. Called every time a transaction is added to
// b; the block hash is never set any other way.
func (s *Service) updateBlockHash(ctx context.Context, b *Block) error {
	txs, err := s.store.TransactionsByBlock(ctx, b.ID)
	if err != nil {
		return err
	}
	payloads := make([]string, len(txs))
	for i, t := range txs {
		payloads[i] = t.Payload
	}
	b.MerkleRoot = MerkleRoot(payloads)
	b.TransactionCount = len(txs)
	hash, err := BlockHash(b)
	if err != nil {
		return err
	}
	b.Hash = hash
	return s.store.UpdateBlockHash(ctx, b)
}

// ── Transaction append ───────────────────────────────────────────────────

// appendTransaction is the single choke point every recording operation
// goes through. It places t in the current (or freshly rolled) block,
// recomputes that block's hash, and refreshes the item's state snapshot.
// Must run inside a unit of work under s.mu.
func (s *Service) appendTransaction(ctx context.Context, t *Transaction) (*Block, error) {
	blk, err := s.currentBlock(ctx)
	if err != nil {
		return nil, err
	}
	t.BlockID = blk.ID
	if err := s.store.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	if err := s.updateBlockHash(ctx, blk); err != nil {
		return nil, err
	}
	if err := s.updateItemState(ctx, t); err != nil {
		return nil, err
	}
	if s.onAppend != nil {
		s.onAppend(string(t.Type))
	}
	return blk, nil
}

// updateItemState retires the item's active snapshot and inserts a new one
// carrying t's new quantity, state, and location. Runs in the same unit of
// work as the transaction insert, so a failed append leaves no orphaned
// snapshot.
func (s *Service) updateItemState(ctx context.Context, t *Transaction) error {
	if _, err := s.store.DeactivateSnapshots(ctx, t.ItemID); err != nil {
		return err
	}
	return s.store.InsertSnapshot(ctx, &Snapshot{
		ID:            uuid.New(),
		ItemID:        t.ItemID,
		TransactionID: t.ID,
		Quantity:      t.NewQuantity,
		StateID:       t.NewStateID,
		Location:      t.NewLocation,
		Active:        true,
		CreatedAt:     now(),
	})
}

// txValues carries the before/after fields a recording operation populates.
type txValues struct {
	oldQty, newQty float64
	oldState       *string
	newState       *string
	oldLoc, newLoc *string
}

// buildTransaction assembles a Transaction: fresh id and timestamp, the
// canonical salted payload, and its hash.
func buildTransaction(typ TransactionType, itemID, userID string, data map[string]any, v txValues) (*Transaction, error) {
	id := uuid.New()
	ts := now()
	payload, err := SaltedPayload(data, id.String(), ts)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		ID:          id,
		Hash:        sha256Hex(payload),
		ItemID:      itemID,
		UserID:      userID,
		Type:        typ,
		OldQuantity: v.oldQty,
		NewQuantity: v.newQty,
		OldStateID:  v.oldState,
		NewStateID:  v.newState,
		OldLocation: v.oldLoc,
		NewLocation: v.newLoc,
		Payload:     string(payload),
		CreatedAt:   ts,
	}, nil
}

// getItem reads an item, translating the inventory sentinel so callers can
// test errors.Is(err, ErrNotFound) against this package alone.
func (s *Service) getItem(ctx context.Context, itemID string) (*inventory.Item, error) {
	it, err := s.items.GetItem(ctx, itemID)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// resolveState looks names up in the catalog, trying each in order.
func (s *Service) resolveState(names ...string) (inventory.ItemState, error) {
	for _, name := range names {
		if st, ok := s.states.ByName(name); ok {
			return st, nil
		}
	}
	return inventory.ItemState{}, fmt.Errorf("%w: %q", ErrInvalidState, strings.Join(names, ", "))
}

func stateRef(st inventory.ItemState) *string {
	id := st.ID
	return &id
}

// ── Recording operations ─────────────────────────────────────────────────

// RecordItemCreation records an item entering the inventory. The item's
// state reference is set to "Available".
func (s *Service) RecordItemCreation(ctx context.Context, itemID string, quantity float64, userID string) (*Transaction, error) {
	available, err := s.resolveState("Available")
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"item_id":          itemID,
		"transaction_type": string(TxCreate),
		"old_quantity":     0,
		"new_quantity":     quantity,
		"old_state":        nil,
		"new_state":        available.ID,
		"old_location":     nil,
		"new_location":     nil,
		"user_id":          userID,
	}
	t, err := buildTransaction(TxCreate, itemID, userID, data, txValues{
		newQty:   quantity,
		newState: stateRef(available),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.appendTransaction(ctx, t)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record item creation: %w", err)
	}

	if err := s.items.SetItemState(ctx, itemID, available.ID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
		return nil, fmt.Errorf("write back item state: %w", err)
	}

	s.logger.Debug("item creation recorded",
		zap.String("item_id", itemID),
		zap.String("tx", t.ID.String()),
	)
	return t, nil
}

// RecordItemSplit records the division of splitQuantity units off
// parentItemID into childItemID, leaving remainingQuantity on the parent.
// Three kinds of transactions are written, in strict order: a SPLIT on the
// parent, an INHERIT replay of the parent's entire history (including the
// SPLIT just written) onto the child, and finally a CREATE_BY_SPLIT on the
// child. The ordering gives the child a complete provenance chain back
// through the parent's full lifecycle.
//
// Splitting an item that itself inherited history replays the inherited
// transactions too, so deep split chains cost O(depth × history length)
// transactions. Splits are rare relative to reads; the cost is accepted
// rather than capped.
func (s *Service) RecordItemSplit(ctx context.Context, parentItemID, childItemID string, splitQuantity, remainingQuantity float64, userID string) ([]*Transaction, error) {
	if splitQuantity <= 0 || remainingQuantity < 0 {
		return nil, fmt.Errorf("invalid split quantities: split %v, remaining %v", splitQuantity, remainingQuantity)
	}
	parent, err := s.getItem(ctx, parentItemID)
	if err != nil {
		return nil, err
	}

	base := map[string]any{
		"parent_item_id":     parentItemID,
		"child_item_id":      childItemID,
		"split_quantity":     splitQuantity,
		"remaining_quantity": remainingQuantity,
		"user_id":            userID,
		"split_from":         parentItemID,
	}

	parentData := make(map[string]any, len(base)+3)
	for k, v := range base {
		parentData[k] = v
	}
	parentData["transaction_type"] = string(TxSplit)
	parentData["target_item"] = parentItemID
	parentData["split_to"] = childItemID

	// Quantity before this split: the parent row may already reflect the
	// post-split value, so reconstruct it from the remainder.
	parentTx, err := buildTransaction(TxSplit, parentItemID, userID, parentData, txValues{
		oldQty:   remainingQuantity + splitQuantity,
		newQty:   remainingQuantity,
		oldState: parent.StateID,
		newState: parent.StateID,
	})
	if err != nil {
		return nil, err
	}

	childData := make(map[string]any, len(base)+3)
	for k, v := range base {
		childData[k] = v
	}
	childData["transaction_type"] = string(TxCreateBySplit)
	childData["target_item"] = childItemID
	childData["inherited_from"] = parentItemID

	var recorded []*Transaction
	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.appendTransaction(ctx, parentTx); err != nil {
			return err
		}
		recorded = append(recorded, parentTx)

		inherited, err := s.inheritHistory(ctx, parentItemID, childItemID, userID)
		if err != nil {
			return err
		}
		recorded = append(recorded, inherited...)

		childTx, err := buildTransaction(TxCreateBySplit, childItemID, userID, childData, txValues{
			newQty:   splitQuantity,
			oldState: nil,
			newState: parent.StateID,
		})
		if err != nil {
			return err
		}
		if _, err := s.appendTransaction(ctx, childTx); err != nil {
			return err
		}
		recorded = append(recorded, childTx)
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record item split: %w", err)
	}

	if parent.StateID != nil {
		if err := s.items.SetItemState(ctx, childItemID, *parent.StateID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
			return nil, fmt.Errorf("write back child item state: %w", err)
		}
	}

	s.logger.Info("item split recorded",
		zap.String("parent", parentItemID),
		zap.String("child", childItemID),
		zap.Int("transactions", len(recorded)),
	)
	return recorded, nil
}

// inheritHistory replays the parent's full transaction history (which at
// this point includes the just-written SPLIT) as INHERIT transactions on
// the child, in original chronological order. Each synthesised transaction
// goes through the normal append path, so it gets its own hash, block
// placement, and snapshot update on the child; the child's CREATE_BY_SPLIT
// immediately afterwards supersedes the last inherited snapshot.
func (s *Service) inheritHistory(ctx context.Context, parentItemID, childItemID, userID string) ([]*Transaction, error) {
	parentTxs, err := s.store.TransactionsByItem(ctx, parentItemID)
	if err != nil {
		return nil, err
	}

	inherited := make([]*Transaction, 0, len(parentTxs))
	for _, src := range parentTxs {
		data := map[string]any{
			"inherited_from":            parentItemID,
			"original_transaction_id":   src.ID.String(),
			"original_transaction_hash": src.Hash,
			"original_transaction_type": string(src.Type),
			"original_timestamp":        src.CreatedAt.Format(time.RFC3339Nano),
			"inheritance_reason":        "ITEM_SPLIT",
		}
		t, err := buildTransaction(TxInherit, childItemID, userID, data, txValues{
			oldQty:   src.OldQuantity,
			newQty:   src.NewQuantity,
			oldState: src.OldStateID,
			newState: src.NewStateID,
			oldLoc:   src.OldLocation,
			newLoc:   src.NewLocation,
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.appendTransaction(ctx, t); err != nil {
			return nil, err
		}
		inherited = append(inherited, t)
	}
	return inherited, nil
}

// RecordItemAssignment records an item being bound to a task. The target
// state resolves through the documented fallback chain: "Assigned" first,
// then "Reserved".
func (s *Service) RecordItemAssignment(ctx context.Context, itemID, taskID, userID string) (*Transaction, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	assigned, err := s.resolveState("Assigned", "Reserved")
	if err != nil {
		return nil, err
	}

	newLoc := "task-" + taskID
	data := map[string]any{
		"item_id":          itemID,
		"task_id":          taskID,
		"transaction_type": string(TxAssign),
		"user_id":          userID,
	}
	t, err := buildTransaction(TxAssign, itemID, userID, data, txValues{
		oldQty:   item.Quantity,
		newQty:   item.Quantity,
		oldState: item.StateID,
		newState: stateRef(assigned),
		newLoc:   &newLoc,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.appendTransaction(ctx, t)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record item assignment: %w", err)
	}

	if err := s.items.SetItemState(ctx, itemID, assigned.ID); err != nil {
		return nil, fmt.Errorf("write back item state: %w", err)
	}
	return t, nil
}

// RecordItemTaskRemoval records an item being unbound from a task. When
// oldStateID/newStateID are nil the service derives them: no remaining
// task ids means "Available", otherwise "Assigned".
func (s *Service) RecordItemTaskRemoval(ctx context.Context, itemID, taskID string, oldTaskIDs, newTaskIDs []string, userID string, oldStateID, newStateID *string) (*Transaction, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if oldStateID == nil {
		oldStateID = item.StateID
	}
	if newStateID == nil {
		var target inventory.ItemState
		if len(newTaskIDs) == 0 {
			target, err = s.resolveState("Available")
		} else {
			target, err = s.resolveState("Assigned", "Reserved")
		}
		if err != nil {
			return nil, err
		}
		newStateID = stateRef(target)
	}

	oldLoc := taskListLocation(oldTaskIDs)
	newLoc := taskListLocation(newTaskIDs)

	data := map[string]any{
		"item_id":          itemID,
		"task_id":          taskID,
		"transaction_type": string(TxTaskRemoval),
		"old_task_ids":     oldTaskIDs,
		"new_task_ids":     newTaskIDs,
		"user_id":          userID,
		"quantity":         item.Quantity,
	}
	t, err := buildTransaction(TxTaskRemoval, itemID, userID, data, txValues{
		oldQty:   item.Quantity,
		newQty:   item.Quantity,
		oldState: oldStateID,
		newState: newStateID,
		oldLoc:   oldLoc,
		newLoc:   newLoc,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.appendTransaction(ctx, t)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record task removal: %w", err)
	}

	if err := s.items.SetItemState(ctx, itemID, *newStateID); err != nil {
		return nil, fmt.Errorf("write back item state: %w", err)
	}
	return t, nil
}

// taskListLocation renders remaining task bindings as a location string,
// or nil when there are none.
func taskListLocation(taskIDs []string) *string {
	if len(taskIDs) == 0 {
		return nil
	}
	loc := "Tasks: " + strings.Join(taskIDs, ", ")
	return &loc
}

// RecordItemScan records a verification scan. Quantity, state, and
// location are unchanged; only the item's scan counter increments, and
// that counter lives on the inventory row, not in the ledger.
func (s *Service) RecordItemScan(ctx context.Context, itemID, userID string) (*Transaction, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	scanCount, err := s.items.IncrementScanCount(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("increment scan count: %w", err)
	}

	loc := s.currentLocation(ctx, itemID)
	data := map[string]any{
		"item_id":          itemID,
		"transaction_type": string(TxScan),
		"user_id":          userID,
		"scan_count":       scanCount,
	}
	t, err := buildTransaction(TxScan, itemID, userID, data, txValues{
		oldQty:   item.Quantity,
		newQty:   item.Quantity,
		oldState: item.StateID,
		newState: item.StateID,
		oldLoc:   loc,
		newLoc:   loc,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.appendTransaction(ctx, t)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record item scan: %w", err)
	}
	return t, nil
}

// RecordLabelPrint records a single label issuance. No quantity, state, or
// location change; the label counter before/after rides in the payload for
// audit.
func (s *Service) RecordLabelPrint(ctx context.Context, itemID, userID string) (*Transaction, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	after, err := s.items.AddLabelCount(ctx, itemID, 1)
	if err != nil {
		return nil, fmt.Errorf("increment label count: %w", err)
	}

	t, err := s.labelPrintTransaction(ctx, TxPrintLabel, item, userID, after-1, after)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.appendTransaction(ctx, t)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("record label print: %w", err)
	}
	return t, nil
}

func (s *Service) labelPrintTransaction(ctx context.Context, typ TransactionType, item *inventory.Item, userID string, before, after int) (*Transaction, error) {
	loc := s.currentLocation(ctx, item.ID)
	data := map[string]any{
		"item_id":            item.ID,
		"transaction_type":   string(typ),
		"user_id":            userID,
		"label_count_before": before,
		"label_count_after":  after,
	}
	return buildTransaction(typ, item.ID, userID, data, txValues{
		oldQty:   item.Quantity,
		newQty:   item.Quantity,
		oldState: item.StateID,
		newState: item.StateID,
		oldLoc:   loc,
		newLoc:   loc,
	})
}

// RecordBulkLabelPrint records one BULK_PRINT_LABEL transaction per item,
// committing once at the end. A missing item is captured as a per-item
// error and does not abort the rest of the batch; callers must inspect the
// returned error list even when err is nil.
func (s *Service) RecordBulkLabelPrint(ctx context.Context, itemIDs []string, userID string) ([]*Transaction, []BatchError, error) {
	type prepared struct {
		item *inventory.Item
		tx   *Transaction
	}
	var (
		batch     []prepared
		batchErrs []BatchError
	)
	for _, id := range itemIDs {
		item, err := s.getItem(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				batchErrs = append(batchErrs, BatchError{ItemID: id, Reason: "item not found"})
				continue
			}
			return nil, nil, err
		}
		t, err := s.labelPrintTransaction(ctx, TxBulkPrintLabel, item, userID, item.LabelCount, item.LabelCount+1)
		if err != nil {
			return nil, nil, err
		}
		batch = append(batch, prepared{item: item, tx: t})
	}

	s.mu.Lock()
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		for _, p := range batch {
			if _, err := s.appendTransaction(ctx, p.tx); err != nil {
				return err
			}
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("record bulk label print: %w", err)
	}

	// Counter write-back happens after the ledger commit; the authoritative
	// audit values are in the transaction payloads.
	txs := make([]*Transaction, 0, len(batch))
	for _, p := range batch {
		if _, err := s.items.AddLabelCount(ctx, p.item.ID, 1); err != nil && !errors.Is(err, inventory.ErrNotFound) {
			return nil, nil, fmt.Errorf("increment label count: %w", err)
		}
		txs = append(txs, p.tx)
	}
	return txs, batchErrs, nil
}

// taskStateSuffixes maps task state names to the location suffix recorded
// on bulk state changes. Unmapped names fall back to "unknown" rather than
// failing the batch; whether that masks typos or is graceful degradation
// is an open product question, so the behaviour is preserved as-is.
var taskStateSuffixes = map[string]string{
	"Assigned to Worker": "assigned-worker",
	"In Progress":        "in-progress",
	"Waiting T&C":        "waiting-tc",
	"Completed":          "completed",
}

func taskStateSuffix(name string) string {
	if s, ok := taskStateSuffixes[name]; ok {
		return s
	}
	return "unknown"
}

// RecordTaskStateChanges applies a task-driven state transition to every
// item in itemIDs. The target item state resolves once by name; each item
// is then processed independently, with failures captured per item rather
// than aborting the batch. All appends share one final commit, so an
// overall error means the entire batch rolled back, including items that
// would otherwise have been reported as updated.
func (s *Service) RecordTaskStateChanges(ctx context.Context, taskID string, itemIDs []string, userID, targetStateName string) ([]StateChangeResult, []BatchError, error) {
	target, err := s.resolveState(targetStateName)
	if err != nil {
		return nil, nil, err
	}
	newLoc := fmt.Sprintf("task-%s-%s", taskID, taskStateSuffix(targetStateName))

	var (
		results   []StateChangeResult
		batchErrs []BatchError
	)
	s.mu.Lock()
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range itemIDs {
			item, err := s.getItem(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					batchErrs = append(batchErrs, BatchError{ItemID: id, Reason: "item not found"})
					continue
				}
				return err
			}

			var oldLoc *string
			if snap, err := s.store.ActiveSnapshot(ctx, id); err == nil {
				oldLoc = snap.Location
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}

			data := map[string]any{
				"item_id":          id,
				"task_id":          taskID,
				"transaction_type": string(TxTaskStateChange),
				"target_state":     targetStateName,
				"user_id":          userID,
			}
			t, err := buildTransaction(TxTaskStateChange, id, userID, data, txValues{
				oldQty:   item.Quantity,
				newQty:   item.Quantity,
				oldState: item.StateID,
				newState: stateRef(target),
				oldLoc:   oldLoc,
				newLoc:   &newLoc,
			})
			if err != nil {
				return err
			}
			if _, err := s.appendTransaction(ctx, t); err != nil {
				return err
			}
			results = append(results, StateChangeResult{
				ItemID:        id,
				OldStateID:    item.StateID,
				NewStateID:    target.ID,
				NewLocation:   newLoc,
				TransactionID: t.ID,
			})
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("record task state changes: %w", err)
	}

	for _, r := range results {
		if err := s.items.SetItemState(ctx, r.ItemID, r.NewStateID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
			return nil, nil, fmt.Errorf("write back item state: %w", err)
		}
	}

	s.logger.Info("task state changes recorded",
		zap.String("task_id", taskID),
		zap.String("target_state", targetStateName),
		zap.Int("updated", len(results)),
		zap.Int("errors", len(batchErrs)),
	)
	return results, batchErrs, nil
}

// currentLocation reads the item's active snapshot location, or nil when
// the item has no ledger history yet.
func (s *Service) currentLocation(ctx context.Context, itemID string) *string {
	snap, err := s.store.ActiveSnapshot(ctx, itemID)
	if err != nil {
		return nil
	}
	return snap.Location
}
