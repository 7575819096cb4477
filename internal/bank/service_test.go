package bank

import (
	"context"
	"testing"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/stretchr/testify/require"
)

func TestServicePrepareAndCommitDebit(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	seedUser(t, p, "alice", 100)
	svc := NewService(p)
	ctx := context.Background()

	txid := ledger.NewTxID()
	prepResp, err := svc.PrepareDebit(ctx, &bankpb.PrepareRequest{
		TxID: txid.String(), Username: "alice", Amount: 30,
		CounterpartyBank: "bankB", CounterpartyUser: "bob",
	})
	require.NoError(t, err)
	require.Equal(t, "prepared", prepResp.Status)

	commitResp, err := svc.CommitDebit(ctx, &bankpb.TxnRequest{TxID: txid.String(), Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, "ok", commitResp.Status)

	balResp, err := svc.Balance(ctx, &bankpb.BalanceRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, int64(70), balResp.Amount)
}

func TestServiceBalanceUnknownUser(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	svc := NewService(p)

	resp, err := svc.Balance(context.Background(), &bankpb.BalanceRequest{Username: "ghost"})
	require.NoError(t, err)
	require.Equal(t, ErrUnknownUser, resp.Error)
}

func TestServiceHistoryReflectsCommits(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	seedUser(t, p, "alice", 100)
	svc := NewService(p)
	ctx := context.Background()

	txid := ledger.NewTxID()
	_, _ = svc.PrepareDebit(ctx, &bankpb.PrepareRequest{TxID: txid.String(), Username: "alice", Amount: 30, CounterpartyBank: "bankB", CounterpartyUser: "bob"})
	_, _ = svc.CommitDebit(ctx, &bankpb.TxnRequest{TxID: txid.String(), Username: "alice"})

	histResp, err := svc.History(ctx, &bankpb.HistoryRequest{Username: "alice"})
	require.NoError(t, err)
	require.Len(t, histResp.Entries, 1)
	require.Equal(t, txid.String(), histResp.Entries[0].TxID)
	require.Equal(t, "sent", histResp.Entries[0].Direction)
}

func TestServiceAbortDebitIsAlwaysOK(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	svc := NewService(p)

	resp, err := svc.AbortDebit(context.Background(), &bankpb.TxnRequest{TxID: ledger.NewTxID().String(), Username: "nobody"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
}

func TestServiceAbortMalformedTxidIsStillOK(t *testing.T) {
	p := newTestParticipant(t, time.Second)
	svc := NewService(p)

	resp, err := svc.AbortDebit(context.Background(), &bankpb.TxnRequest{TxID: "not-hex", Username: "nobody"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
}
