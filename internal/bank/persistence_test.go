package bank

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentialsHashesPasswords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	data, err := json.Marshal([]credentialRecord{
		{Username: "alice", Password: "hunter2", Balance: 100},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	p := newTestParticipant(t, time.Second)
	require.NoError(t, p.LoadCredentials(path))

	ok, _ := p.Authenticate("alice", "hunter2")
	require.True(t, ok)

	a, found := p.lookup("alice")
	require.True(t, found)
	require.NotEqual(t, "hunter2", a.user.PasswordHash, "password must be hashed, not stored in plaintext")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "bankA.state.json")

	p := newTestParticipant(t, time.Second)
	seedUser(t, p, "alice", 100)
	txid := ledger.NewTxID()
	_, _ = p.PrepareDebit("alice", txid, 30, "bankB", "bob")
	_, _ = p.CommitDebit("alice", txid)

	require.NoError(t, p.Save(statePath))

	p2 := newTestParticipant(t, time.Second)
	require.NoError(t, p2.Load(statePath))

	balance, err := p2.Balance("alice")
	require.NoError(t, err)
	require.Equal(t, ledger.Money(70), balance)

	require.True(t, p2.isCompleted(txid), "completed txids must survive a restart")

	status, _ := p2.CommitDebit("alice", txid)
	require.Equal(t, "ok", status, "a retried commit after restart must stay idempotent")

	balance, err = p2.Balance("alice")
	require.NoError(t, err)
	require.Equal(t, ledger.Money(70), balance)
}

func TestLoadMissingStateFileIsNotAnError(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	err := p.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
}
