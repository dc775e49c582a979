package ledger

import "errors"

// ErrNotFound is returned when a referenced block, transaction, snapshot,
// or item does not exist. Recording operations that read an item first
// fail fast with this rather than writing a transaction with zeroed fields.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when a named item state cannot be resolved
// from the state catalog. This is a configuration error, not a transient
// fault; the operation fails rather than writing a null state reference,
// except where a documented fallback chain applies.
var ErrInvalidState = errors.New("unknown item state")

// ErrChainBroken is returned by Verify when the stored chain does not
// match its recomputed hashes or linkage.
var ErrChainBroken = errors.New("ledger chain integrity violation")
