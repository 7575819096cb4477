package bank

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// Config bounds the behavior spec.md §6's configuration table assigns
// to the Bank Participant.
type Config struct {
	Name           string
	HoldTTL        time.Duration // default 2*TIMEOUT2PC, enforced by the coordinator's TIMEOUT2PC choice
	StateFilePath  string
	CredentialFile string
	SweepInterval  time.Duration
}

// Participant owns a set of accounts (spec.md §3's User records) and
// the hold/commit/abort machinery of spec.md §4.2. It is the domain
// object bankpb's service.go adapts into the RPC surface.
type Participant struct {
	cfg Config

	mu       sync.RWMutex // guards accounts map membership only; per-account ops use account.mu
	accounts map[string]*account

	completedMu sync.Mutex
	completed   map[ledger.TxID]struct{}

	stopSweep chan struct{}
}

func NewParticipant(cfg Config) *Participant {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Second
	}
	p := &Participant{
		cfg:       cfg,
		accounts:  make(map[string]*account),
		completed: make(map[ledger.TxID]struct{}),
		stopSweep: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

func (p *Participant) sweepLoop() {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweepAll()
		}
	}
}

func (p *Participant) sweepAll() {
	p.mu.RLock()
	accounts := make([]*account, 0, len(p.accounts))
	for _, a := range p.accounts {
		accounts = append(accounts, a)
	}
	p.mu.RUnlock()

	now := time.Now()
	for _, a := range accounts {
		a.mu.Lock()
		a.sweepExpired(now)
		a.mu.Unlock()
	}
}

// Stop halts the background hold-expiry sweep. Call before Save on
// graceful shutdown.
func (p *Participant) Stop() {
	close(p.stopSweep)
}

func (p *Participant) lookup(username string) (*account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.accounts[username]
	return a, ok
}

func (p *Participant) isCompleted(txid ledger.TxID) bool {
	p.completedMu.Lock()
	defer p.completedMu.Unlock()
	_, ok := p.completed[txid]
	return ok
}

func (p *Participant) markCompleted(txid ledger.TxID) {
	p.completedMu.Lock()
	p.completed[txid] = struct{}{}
	p.completedMu.Unlock()
}

// Authenticate verifies a plaintext password against the stored bcrypt
// hash — spec.md §4.2's Authenticate.
func (p *Participant) Authenticate(username, password string) (ok bool, errCode string) {
	a, found := p.lookup(username)
	if !found {
		return false, ErrUnknownUser
	}
	a.mu.Lock()
	hash := a.user.PasswordHash
	a.mu.Unlock()

	if !comparePassword(hash, password) {
		return false, ErrBadPassword
	}
	return true, ""
}

// PrepareDebit is the entry point service.go calls for a debit prepare.
func (p *Participant) PrepareDebit(username string, txid ledger.TxID, amount ledger.Money, counterpartyBank, counterpartyUser string) (status, errCode string) {
	a, found := p.lookup(username)
	if !found {
		log.Printf("bank[%s]: PrepareDebit for unknown user %s, txn %s", p.cfg.Name, username, txid)
		return "rejected", ErrUnknownUser
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	status, reason := a.prepareDebit(txid, amount, counterpartyBank, counterpartyUser, p.cfg.HoldTTL)
	log.Printf("bank[%s]: PrepareDebit user=%s txn=%s amount=%d -> %s %s", p.cfg.Name, username, txid, amount, status, reason)
	return status, reason
}

// PrepareCredit is the entry point service.go calls for a credit
// prepare.
func (p *Participant) PrepareCredit(username string, txid ledger.TxID, amount ledger.Money, counterpartyBank, counterpartyUser string) (status, errCode string) {
	a, found := p.lookup(username)
	if !found {
		log.Printf("bank[%s]: PrepareCredit for unknown user %s, txn %s", p.cfg.Name, username, txid)
		return "rejected", ErrUnknownUser
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	status, reason := a.prepareCredit(txid, amount, counterpartyBank, counterpartyUser, p.cfg.HoldTTL)
	log.Printf("bank[%s]: PrepareCredit user=%s txn=%s amount=%d -> %s %s", p.cfg.Name, username, txid, amount, status, reason)
	return status, reason
}

// commitAccount commits the live hold for txid on username's account.
// A txid already in the completed set returns "ok" without touching any
// balance. The coordinator always names the username the commit is for,
// so CommitDebit and CommitCredit share this one path.
func (p *Participant) commitAccount(username string, txid ledger.TxID) (status, errCode string) {
	if p.isCompleted(txid) {
		return "ok", "" // spec.md §4.2: retried commit of an already-applied txid is idempotent
	}

	a, found := p.lookup(username)
	if !found {
		return "", ErrUnknownTxn
	}

	a.mu.Lock()
	status, reason, _ := a.commit(txid, time.Now())
	a.mu.Unlock()

	if status == "ok" {
		p.markCompleted(txid)
	} else if reason == ErrNotPrepared {
		log.Printf("bank[%s]: ALARM commit for txn %s arrived after hold expiry (user=%s)", p.cfg.Name, txid, username)
	}
	return status, reason
}

func (p *Participant) CommitDebit(username string, txid ledger.TxID) (status, errCode string) {
	return p.commitAccount(username, txid)
}

func (p *Participant) CommitCredit(username string, txid ledger.TxID) (status, errCode string) {
	return p.commitAccount(username, txid)
}

func (p *Participant) abortAccount(username string, txid ledger.TxID) {
	a, found := p.lookup(username)
	if !found {
		return
	}
	a.mu.Lock()
	a.abort(txid)
	a.mu.Unlock()
}

func (p *Participant) AbortDebit(username string, txid ledger.TxID) {
	p.abortAccount(username, txid)
}

func (p *Participant) AbortCredit(username string, txid ledger.TxID) {
	p.abortAccount(username, txid)
}

func (p *Participant) Balance(username string) (ledger.Money, error) {
	a, found := p.lookup(username)
	if !found {
		return 0, errors.New(ErrUnknownUser)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Balance, nil
}

func (p *Participant) History(username string) ([]TxRecord, error) {
	a, found := p.lookup(username)
	if !found {
		return nil, errors.New(ErrUnknownUser)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TxRecord, len(a.user.History))
	copy(out, a.user.History)
	return out, nil
}

// CheckInvariants walks every account and verifies spec.md §8's
// non-negativity and hold-safety invariants; used by tests.
func (p *Participant) CheckInvariants() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.accounts {
		a.mu.Lock()
		err := a.checkInvariant()
		a.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// TotalBalance sums every account's balance; used by conservation tests.
func (p *Participant) TotalBalance() ledger.Money {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total ledger.Money
	for _, a := range p.accounts {
		a.mu.Lock()
		total += a.user.Balance
		a.mu.Unlock()
	}
	return total
}
