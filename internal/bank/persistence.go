package bank

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// credentialRecord is the bootstrap credential file's per-user shape:
// plaintext passwords in, bcrypt hashes out. Operators seed this file
// once; Participant never writes it back.
type credentialRecord struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Balance  ledger.Money `json:"balance"`
}

// LoadCredentials bootstraps the account table from a plaintext seed
// file the first time a BP starts (spec.md §6's CREDENTIAL_FILE),
// hashing each password with bcrypt before it ever reaches memory.
func (p *Participant) LoadCredentials(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bank: load credentials: %w", err)
	}

	var records []credentialRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("bank: parse credentials %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range records {
		if _, exists := p.accounts[r.Username]; exists {
			continue
		}
		hash, err := hashPassword(r.Password)
		if err != nil {
			return fmt.Errorf("bank: hash password for %s: %w", r.Username, err)
		}
		p.accounts[r.Username] = newAccount(User{
			Username:     r.Username,
			PasswordHash: hash,
			Balance:      r.Balance,
		})
	}
	return nil
}

// persistedState is the on-disk shape of STATE_FILE: account balances,
// hashes, and history, plus the completed-txid set a restarted BP needs
// to keep commit idempotent across a crash (spec.md §4.2's "Idempotent
// commit" note).
type persistedState struct {
	Users          map[string]persistedUser `json:"users"`
	CompletedTxIDs []string                 `json:"completed_txids"`
}

type persistedUser struct {
	PasswordHash string       `json:"password_hash"`
	Balance      ledger.Money `json:"balance"`
	History      []TxRecord   `json:"history"`
}

// Load restores account and completed-txid state from the BP's state
// file, if one exists. A missing file is not an error: a fresh BP
// loads credentials instead via LoadCredentials.
func (p *Participant) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bank: load state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("bank: parse state %s: %w", path, err)
	}

	p.mu.Lock()
	for username, u := range state.Users {
		p.accounts[username] = newAccount(User{
			Username:     username,
			PasswordHash: u.PasswordHash,
			Balance:      u.Balance,
			History:      u.History,
		})
	}
	p.mu.Unlock()

	p.completedMu.Lock()
	for _, s := range state.CompletedTxIDs {
		txid, err := ledger.ParseTxID(s)
		if err != nil {
			continue
		}
		p.completed[txid] = struct{}{}
	}
	p.completedMu.Unlock()

	return nil
}

// Save snapshots the account table and completed-txid set to the BP's
// state file. Holds are never persisted: a crash mid-hold is recovered
// by hold expiry, not by replay, per spec.md §4.2's hold-TTL design.
func (p *Participant) Save(path string) error {
	state := persistedState{Users: make(map[string]persistedUser)}

	p.mu.RLock()
	for username, a := range p.accounts {
		a.mu.Lock()
		state.Users[username] = persistedUser{
			PasswordHash: a.user.PasswordHash,
			Balance:      a.user.Balance,
			History:      append([]TxRecord(nil), a.user.History...),
		}
		a.mu.Unlock()
	}
	p.mu.RUnlock()

	p.completedMu.Lock()
	for txid := range p.completed {
		state.CompletedTxIDs = append(state.CompletedTxIDs, txid.String())
	}
	p.completedMu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("bank: marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("bank: write state: %w", err)
	}
	return os.Rename(tmp, path)
}
