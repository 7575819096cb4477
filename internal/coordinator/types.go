// Package coordinator implements the Coordinator (spec.md §4.1): the
// idempotency registry, two-phase commit orchestration across two Bank
// Participants, and the durable log that survives a coordinator crash.
package coordinator

import (
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// State is a coordinator transaction entry's position in spec.md §4.1's
// state machine: ∅ -> in-flight -> {committed, aborted}.
type State string

const (
	StateInFlight  State = "in-flight"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// Entry is the CO's idempotency registry record for one txid — spec.md
// §3's "Coordinator transaction entry".
type Entry struct {
	TxID      ledger.TxID
	State     State
	SrcBank   string
	SrcUser   string
	DstBank   string
	DstUser   string
	Amount    ledger.Money
	StartedAt time.Time
	Reason    string // set when State == StateAborted, e.g. "prepare_failed: insufficient_funds"
}

// outcome reasons surfaced to the client, per spec.md §7's taxonomy.
const (
	ReasonUnauthorized   = "unauthorized"
	ReasonUnknownBank    = "unknown_bank"
	ReasonAuthFailed     = "auth_failed"
	ReasonBankUnavailable = "bank_unavailable"
	ReasonTimeout        = "timeout"
	ReasonUnavailable    = "unavailable"
	ReasonInternal       = "internal"
)
