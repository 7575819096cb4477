package coordinator

import (
	"context"
	"testing"

	"github.com/interbank-gateway/atomicpay/internal/coordpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/stretchr/testify/require"
)

func TestServiceTransferRejectsMismatchedSubject(t *testing.T) {
	srcBank, dstBank := newFakeBank(), newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})
	c := newTestCoordinator(t, regClient)
	svc := NewService(c)

	tok, errCode := c.Login(context.Background(), "alpha", "alice", "hunter2")
	require.Empty(t, errCode)

	resp, err := svc.Transfer(context.Background(), &coordpb.TransferRequest{
		Token: tok, TxID: ledger.NewTxID().String(),
		SrcBank: "alpha", SrcUser: "mallory", // token was minted for alice, not mallory
		DstBank: "beta", DstUser: "bob", AmountMinorUnits: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "error", resp.Status)
	require.Equal(t, ReasonUnauthorized, resp.Error)

	require.Empty(t, srcBank.commitDebit)
	require.Empty(t, dstBank.commitCredit)
}

func TestServiceTransferRejectsUnknownBank(t *testing.T) {
	srcBank := newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{"alpha": startBank(t, srcBank)})
	c := newTestCoordinator(t, regClient)
	svc := NewService(c)

	tok, errCode := c.Login(context.Background(), "alpha", "alice", "hunter2")
	require.Empty(t, errCode)

	resp, err := svc.Transfer(context.Background(), &coordpb.TransferRequest{
		Token: tok, TxID: ledger.NewTxID().String(),
		SrcBank: "alpha", SrcUser: "alice",
		DstBank: "ghost-bank", DstUser: "bob", AmountMinorUnits: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "error", resp.Status)
	require.Equal(t, ReasonUnknownBank, resp.Error)
}

func TestServiceTransferHappyPath(t *testing.T) {
	srcBank, dstBank := newFakeBank(), newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})
	c := newTestCoordinator(t, regClient)
	svc := NewService(c)

	tok, errCode := c.Login(context.Background(), "alpha", "alice", "hunter2")
	require.Empty(t, errCode)

	resp, err := svc.Transfer(context.Background(), &coordpb.TransferRequest{
		Token: tok, TxID: ledger.NewTxID().String(),
		SrcBank: "alpha", SrcUser: "alice",
		DstBank: "beta", DstUser: "bob", AmountMinorUnits: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "committed", resp.Status)
}

func TestServicePingAlwaysOK(t *testing.T) {
	regClient, _ := startRegistryWithBanks(t, map[string]string{})
	c := newTestCoordinator(t, regClient)
	svc := NewService(c)

	resp, err := svc.Ping(context.Background(), &coordpb.PingRequest{})
	require.NoError(t, err)
	require.True(t, resp.OK)
}

func TestServiceBalanceRejectsBadToken(t *testing.T) {
	regClient, _ := startRegistryWithBanks(t, map[string]string{})
	c := newTestCoordinator(t, regClient)
	svc := NewService(c)

	resp, err := svc.Balance(context.Background(), &coordpb.BalanceRequest{Token: "not-a-real-token"})
	require.NoError(t, err)
	require.Equal(t, ReasonUnauthorized, resp.Error)
}
