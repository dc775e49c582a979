package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ZeroHash is the 64-zero sentinel used as the genesis block's previous
// hash and as the Merkle root of a block that has never held transactions.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// genesisSeed is the fixed input for the genesis block hash.
const genesisSeed = "genesis"

// sha256Hex returns the hex-encoded SHA-256 digest of data.
func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// GenesisBlockHash returns the well-known hash of an empty genesis block.
func GenesisBlockHash() string {
	return sha256Hex([]byte(genesisSeed))
}

// CanonicalJSON encodes data with stable key ordering and compact
// separators. encoding/json sorts map keys, so marshalling a map is
// canonical by construction. Payloads hashed by the ledger must always go
// through this function so recomputed hashes are bit-for-bit stable.
func CanonicalJSON(data map[string]any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalise payload: %w", err)
	}
	return b, nil
}

// SaltedPayload returns the canonical encoding of data with the transaction
// id and timestamp injected. The salt guarantees distinct hashes for
// structurally identical events (two scans of the same item, say).
// data is not modified. txID and ts are skipped when zero-valued.
func SaltedPayload(data map[string]any, txID string, ts time.Time) ([]byte, error) {
	salted := make(map[string]any, len(data)+2)
	for k, v := range data {
		salted[k] = v
	}
	if txID != "" {
		salted["transaction_id"] = txID
	}
	if !ts.IsZero() {
		salted["timestamp"] = ts.UTC().Format(time.RFC3339Nano)
	}
	return CanonicalJSON(salted)
}

// TransactionHash computes the hex SHA-256 digest of the canonical,
// id-and-timestamp-salted encoding of data. Pure and deterministic:
// identical inputs (including the injected salt) always produce the same
// digest.
func TransactionHash(data map[string]any, txID string, ts time.Time) (string, error) {
	payload, err := SaltedPayload(data, txID, ts)
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

// MerkleRoot builds a binary Merkle tree over the given canonical payloads
// and returns the root digest. The leaf for each payload is its SHA-256;
// adjacent digests are then pairwise combined (hex concatenation, hashed
// as ASCII) until one remains. When a level has an odd count its last
// digest is duplicated to pair with itself — this tie-break is part of the
// format and must not change. An empty input yields SHA-256 of the empty
// string, distinguishing "empty block" from the uninitialised ZeroHash.
func MerkleRoot(payloads []string) string {
	if len(payloads) == 0 {
		return sha256Hex(nil)
	}

	hashes := make([]string, len(payloads))
	for i, p := range payloads {
		hashes[i] = sha256Hex([]byte(p))
	}

	for len(hashes) > 1 {
		if len(hashes)%2 != 0 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}
		next := make([]string, 0, len(hashes)/2)
		for i := 0; i < len(hashes); i += 2 {
			next = append(next, sha256Hex([]byte(hashes[i]+hashes[i+1])))
		}
		hashes = next
	}
	return hashes[0]
}

// blockHashPayload is the canonical structure a block hash is computed over.
func blockHashPayload(b *Block) map[string]any {
	return map[string]any{
		"block_number":      b.Number,
		"timestamp":         b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":     b.PreviousHash,
		"merkle_root":       b.MerkleRoot,
		"transaction_count": b.TransactionCount,
	}
}

// BlockHash computes the hash of b from its metadata and Merkle root.
// The block's stored hash is never set independently of this function.
func BlockHash(b *Block) (string, error) {
	payload, err := CanonicalJSON(blockHashPayload(b))
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}
