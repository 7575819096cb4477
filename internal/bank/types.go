// Package bank implements the Bank Participant (spec.md §4.2): account
// ownership, balance holds, and the Prepare/Commit/Abort protocol the
// Coordinator drives.
package bank

import (
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// HoldKind distinguishes a tentative reservation (debit) from a pending
// obligation (credit) — spec.md §3's Account hold.
type HoldKind string

const (
	HoldDebit  HoldKind = "debit"
	HoldCredit HoldKind = "credit"
)

// Hold is a live reservation against one account for one txid.
type Hold struct {
	TxID             ledger.TxID
	Kind             HoldKind
	Amount           ledger.Money
	Deadline         time.Time
	CounterpartyBank string
	CounterpartyUser string
}

// TxRecord is an immutable entry appended to a user's history on
// commit — spec.md §3's Transaction record.
type TxRecord struct {
	TxID             ledger.TxID
	CounterpartyBank string
	CounterpartyUser string
	Direction        ledger.Direction
	Amount           ledger.Money
	Timestamp        time.Time
	Status           ledger.TxStatus
}

// User is one BP-owned account: spec.md §3's User record.
type User struct {
	Username     string
	PasswordHash string
	Balance      ledger.Money
	History      []TxRecord
}

// outcome codes mirror spec.md §7's error taxonomy for this component.
const (
	ErrUnknownUser      = "unknown_user"
	ErrBadPassword      = "bad_password"
	ErrInsufficientFund = "insufficient_funds"
	ErrDuplicateTxn     = "duplicate_txid"
	ErrConflictingHold  = "conflicting_hold"
	ErrUnknownTxn       = "unknown_txid"
	ErrNotPrepared      = "not_prepared"
)
