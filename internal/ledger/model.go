package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates the event kinds the ledger records.
type TransactionType string

const (
	// TxCreate — an item entered the inventory.
	TxCreate TransactionType = "CREATE"
	// TxSplit — recorded on a parent item when part of its quantity is
	// divided off into a new child item.
	TxSplit TransactionType = "SPLIT"
	// TxCreateBySplit — recorded on the child item produced by a split.
	TxCreateBySplit TransactionType = "CREATE_BY_SPLIT"
	// TxInherit — synthetic replay of a parent item's historical
	// transaction onto a split-off child, tagged with provenance.
	TxInherit TransactionType = "INHERIT"
	// TxAssign — item bound to a task.
	TxAssign TransactionType = "ASSIGN"
	// TxTaskRemoval — item unbound from a task.
	TxTaskRemoval TransactionType = "TASK_REMOVAL"
	// TxScan — verification scan; no value change.
	TxScan TransactionType = "SCAN"
	// TxPrintLabel — label issuance; no value change.
	TxPrintLabel TransactionType = "PRINT_LABEL"
	// TxBulkPrintLabel — label issuance via the bulk path.
	TxBulkPrintLabel TransactionType = "BULK_PRINT_LABEL"
	// TxTaskStateChange — bulk state transition driven by a task's own
	// state machine advancing.
	TxTaskStateChange TransactionType = "TASK_STATE_CHANGE"
)

// Block is an ordered container of up to MaxTransactionsPerBlock
// transactions, chained to its predecessor by hash. Blocks are never
// mutated except by appending transactions (which recomputes Hash,
// MerkleRoot, and TransactionCount) and never deleted.
type Block struct {
	ID               uuid.UUID `json:"id"`
	Number           int64     `json:"block_number"`
	Hash             string    `json:"block_hash"`
	PreviousHash     string    `json:"previous_hash"`
	TransactionCount int       `json:"transaction_count"`
	MerkleRoot       string    `json:"merkle_root"`
	CreatedAt        time.Time `json:"created_at"`
}

// Transaction is one immutable record of a single state change to one
// inventory item. Once written it is never updated or deleted.
//
// Payload holds the exact canonical JSON bytes the Hash was computed over
// (including the id/timestamp salt), so Hash == SHA-256(Payload) is an
// invariant Verify can check without re-deriving field encodings.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Seq         int64           `json:"-"`
	Hash        string          `json:"transaction_hash"`
	ItemID      string          `json:"item_id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"transaction_type"`
	OldQuantity float64         `json:"old_quantity"`
	NewQuantity float64         `json:"new_quantity"`
	OldStateID  *string         `json:"old_state_id"`
	NewStateID  *string         `json:"new_state_id"`
	OldLocation *string         `json:"old_location"`
	NewLocation *string         `json:"new_location"`
	BlockID     uuid.UUID       `json:"block_id"`
	Payload     string          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Snapshot is the materialised current state of an item, produced as a
// side effect of every transaction append. At most one snapshot per item
// is active at a time; superseded snapshots are retired (Active=false)
// but never deleted, keeping historical state addressable by the
// transaction that produced it.
type Snapshot struct {
	ID            uuid.UUID `json:"id"`
	ItemID        string    `json:"item_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Quantity      float64   `json:"quantity"`
	StateID       *string   `json:"state_id"`
	Location      *string   `json:"location"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryEntry is one transaction in an item's history with the acting
// user resolved to a display name where a resolver is configured.
type HistoryEntry struct {
	Transaction *Transaction `json:"transaction"`
	Username    string       `json:"username,omitempty"`
}

// StateView is the answer to "what is this item right now".
type StateView struct {
	ItemID          string    `json:"item_id"`
	Quantity        float64   `json:"quantity"`
	StateID         *string   `json:"state_id"`
	Location        *string   `json:"location"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	TransactionHash string    `json:"transaction_hash"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StateAtBlock is a point-in-time state lookup result: the snapshot an
// exact transaction produced, joined to that transaction's block.
type StateAtBlock struct {
	ItemID      string       `json:"item_id"`
	Quantity    float64      `json:"quantity"`
	StateID     *string      `json:"state_id"`
	Location    *string      `json:"location"`
	Active      bool         `json:"active"`
	Transaction *Transaction `json:"transaction"`
	Block       *Block       `json:"block"`
}

// StateChangeResult reports one successfully processed item in a bulk
// task state change.
type StateChangeResult struct {
	ItemID        string    `json:"item_id"`
	OldStateID    *string   `json:"old_state_id"`
	NewStateID    string    `json:"new_state_id"`
	NewLocation   string    `json:"new_location"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// BatchError reports one failed item in a bulk operation. The rest of the
// batch is unaffected by it.
type BatchError struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Overview summarises the chain: lengths and the current tip.
type Overview struct {
	Blocks       int    `json:"blocks"`
	Transactions int    `json:"transactions"`
	TipNumber    int64  `json:"tip_number"`
	TipHash      string `json:"tip_hash"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter";
// Limit defaults to 50 when unset.
type TransactionFilter struct {
	ItemID string
	Type   TransactionType
	Limit  int
}
