package bank

import (
	"fmt"
	"sync"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// account serializes every operation against one user's balance and
// holds behind a single mutex — spec.md §5: "operations ... are
// linearized by a per-account lock."
type account struct {
	mu    sync.Mutex
	user  User
	holds map[ledger.TxID]*Hold
}

func newAccount(u User) *account {
	return &account{user: u, holds: make(map[ledger.TxID]*Hold)}
}

func (a *account) liveDebitHoldTotal() ledger.Money {
	var total ledger.Money
	for _, h := range a.holds {
		if h.Kind == HoldDebit {
			total += h.Amount
		}
	}
	return total
}

// prepareDebit implements spec.md §4.2's Prepare(debit) algorithm.
// Caller must hold a.mu.
func (a *account) prepareDebit(txid ledger.TxID, amount ledger.Money, counterpartyBank, counterpartyUser string, holdTTL time.Duration) (status, reason string) {
	if h, ok := a.holds[txid]; ok {
		if h.Kind != HoldDebit {
			return "rejected", ErrConflictingHold
		}
		return "prepared", ErrDuplicateTxn // idempotent retry, spec.md §4.2
	}

	for _, h := range a.holds {
		if h.Kind == HoldDebit {
			return "rejected", ErrConflictingHold
		}
	}

	if a.user.Balance-a.liveDebitHoldTotal() < amount {
		return "rejected", ErrInsufficientFund
	}

	a.holds[txid] = &Hold{
		TxID:             txid,
		Kind:             HoldDebit,
		Amount:           amount,
		Deadline:         time.Now().Add(holdTTL),
		CounterpartyBank: counterpartyBank,
		CounterpartyUser: counterpartyUser,
	}
	return "prepared", ""
}

// prepareCredit implements spec.md §4.2's Prepare(credit) algorithm:
// same idempotency rule, no balance check. Caller must hold a.mu.
func (a *account) prepareCredit(txid ledger.TxID, amount ledger.Money, counterpartyBank, counterpartyUser string, holdTTL time.Duration) (status, reason string) {
	if _, ok := a.holds[txid]; ok {
		return "prepared", ErrDuplicateTxn // idempotent retry, spec.md §4.2
	}

	a.holds[txid] = &Hold{
		TxID:             txid,
		Kind:             HoldCredit,
		Amount:           amount,
		Deadline:         time.Now().Add(holdTTL),
		CounterpartyBank: counterpartyBank,
		CounterpartyUser: counterpartyUser,
	}
	return "prepared", ""
}

// commit applies the hold's delta and appends history. Caller must hold
// a.mu. The completed-txid idempotency check happens before this, in
// Participant.commitAccount.
func (a *account) commit(txid ledger.TxID, now time.Time) (status, reason string, rec *TxRecord) {
	h, ok := a.holds[txid]
	if !ok {
		return "", ErrUnknownTxn, nil
	}
	if now.After(h.Deadline) {
		delete(a.holds, txid)
		return "", ErrNotPrepared, nil
	}

	direction := ledger.DirectionReceived
	switch h.Kind {
	case HoldDebit:
		a.user.Balance -= h.Amount
		direction = ledger.DirectionSent
	case HoldCredit:
		a.user.Balance += h.Amount
		direction = ledger.DirectionReceived
	}

	entry := TxRecord{
		TxID:             txid,
		CounterpartyBank: h.CounterpartyBank,
		CounterpartyUser: h.CounterpartyUser,
		Direction:        direction,
		Amount:           h.Amount,
		Timestamp:        now,
		Status:           ledger.TxCommitted,
	}
	a.user.History = append(a.user.History, entry)
	delete(a.holds, txid)
	return "ok", "", &entry
}

// abort removes any live hold for txid without touching balance. Always
// succeeds, per spec.md §4.2.
func (a *account) abort(txid ledger.TxID) {
	delete(a.holds, txid)
}

// sweepExpired removes holds past their deadline, equivalent to an
// implicit abort (spec.md §4.2 "Hold expiry").
func (a *account) sweepExpired(now time.Time) {
	for id, h := range a.holds {
		if now.After(h.Deadline) {
			delete(a.holds, id)
		}
	}
}

func (a *account) checkInvariant() error {
	if a.user.Balance < 0 {
		return fmt.Errorf("bank: account %s has negative balance %d", a.user.Username, a.user.Balance)
	}
	if a.user.Balance < a.liveDebitHoldTotal() {
		return fmt.Errorf("bank: account %s balance %d below live debit holds %d", a.user.Username, a.user.Balance, a.liveDebitHoldTotal())
	}
	return nil
}
