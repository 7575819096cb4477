// Package ledger defines the value types shared by the bank, coordinator
// and client packages so that domain code and wire contracts agree on
// representation without importing each other.
package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Money is a non-negative amount in minor units (cents, paisa, ...).
type Money int64

// TxID is a client-assigned, globally unique transaction identifier.
// It is carried on the wire as the 32-character hex encoding of its 16
// bytes (see String and ParseTxID).
type TxID [16]byte

// NewTxID allocates a fresh 128-bit random identifier.
func NewTxID() TxID {
	var id TxID
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

func (t TxID) String() string {
	return hex.EncodeToString(t[:])
}

// ParseTxID decodes the hex form produced by String.
func ParseTxID(s string) (TxID, error) {
	var id TxID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("ledger: malformed txid %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("ledger: txid %q has %d bytes, want %d", s, len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// RandomHex is used where a collaborator (e.g. a registry lease token)
// needs an opaque random handle but not a full TxID.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Direction records which side of a settled transfer a history entry
// belongs to, from the perspective of the bank that owns the account.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// TxStatus is the terminal outcome recorded against a txid, either at a
// Bank Participant (per-account transaction record) or at the
// Coordinator (idempotency registry entry).
type TxStatus string

const (
	TxCommitted TxStatus = "committed"
	TxAborted   TxStatus = "aborted"
)
