package coordinator

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/registry"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// fakeBank is a scriptable bankpb.Server stand-in for exercising the
// coordinator's 2PC orchestration without a real Participant.
type fakeBank struct {
	prepareDebit  func(*bankpb.PrepareRequest) (*bankpb.PrepareResponse, error)
	prepareCredit func(*bankpb.PrepareRequest) (*bankpb.PrepareResponse, error)
	commitDebit   chan *bankpb.TxnRequest
	commitCredit  chan *bankpb.TxnRequest
	abortDebit    chan *bankpb.TxnRequest
	abortCredit   chan *bankpb.TxnRequest
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		commitDebit:  make(chan *bankpb.TxnRequest, 8),
		commitCredit: make(chan *bankpb.TxnRequest, 8),
		abortDebit:   make(chan *bankpb.TxnRequest, 8),
		abortCredit:  make(chan *bankpb.TxnRequest, 8),
	}
}

func (f *fakeBank) Authenticate(context.Context, *bankpb.AuthenticateRequest) (*bankpb.AuthenticateResponse, error) {
	return &bankpb.AuthenticateResponse{OK: true}, nil
}

func (f *fakeBank) PrepareDebit(_ context.Context, req *bankpb.PrepareRequest) (*bankpb.PrepareResponse, error) {
	if f.prepareDebit != nil {
		return f.prepareDebit(req)
	}
	return &bankpb.PrepareResponse{Status: "prepared"}, nil
}

func (f *fakeBank) PrepareCredit(_ context.Context, req *bankpb.PrepareRequest) (*bankpb.PrepareResponse, error) {
	if f.prepareCredit != nil {
		return f.prepareCredit(req)
	}
	return &bankpb.PrepareResponse{Status: "prepared"}, nil
}

func (f *fakeBank) CommitDebit(_ context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	f.commitDebit <- req
	return &bankpb.TxnResponse{Status: "ok"}, nil
}

func (f *fakeBank) CommitCredit(_ context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	f.commitCredit <- req
	return &bankpb.TxnResponse{Status: "ok"}, nil
}

func (f *fakeBank) AbortDebit(_ context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	f.abortDebit <- req
	return &bankpb.TxnResponse{Status: "ok"}, nil
}

func (f *fakeBank) AbortCredit(_ context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	f.abortCredit <- req
	return &bankpb.TxnResponse{Status: "ok"}, nil
}

func (f *fakeBank) Balance(context.Context, *bankpb.BalanceRequest) (*bankpb.BalanceResponse, error) {
	return &bankpb.BalanceResponse{Amount: 0}, nil
}

func (f *fakeBank) History(context.Context, *bankpb.HistoryRequest) (*bankpb.HistoryResponse, error) {
	return &bankpb.HistoryResponse{}, nil
}

// startBank serves a fakeBank over a real localhost listener and
// returns its address.
func startBank(t *testing.T, impl bankpb.Server) string {
	t.Helper()
	server, err := rpcx.NewServer(nil)
	require.NoError(t, err)
	server.RegisterService(&bankpb.ServiceDesc, impl)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(lis)
	t.Cleanup(server.Stop)
	return lis.Addr().String()
}

// startRegistryWithBanks serves a real registry.Registry preloaded with
// name -> address entries, returning a *registry.Client for it.
func startRegistryWithBanks(t *testing.T, banks map[string]string) (*registry.Client, *grpc.ClientConn) {
	t.Helper()
	reg := registry.NewRegistry()
	server, err := rpcx.NewServer(nil)
	require.NoError(t, err)
	server.RegisterService(&registry.ServiceDesc, reg)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	client, conn, err := registry.Dial(lis.Addr().String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	for name, addr := range banks {
		_, err := client.Register(ctx, &registry.RegisterRequest{
			Name: registry.BankRegistryName(name), Address: addr, LeaseSeconds: 60,
		})
		require.NoError(t, err)
	}
	return client, conn
}

func newTestCoordinator(t *testing.T, regClient *registry.Client) *Coordinator {
	t.Helper()
	cfg := RuntimeConfig{
		DurableLogPath: filepath.Join(t.TempDir(), "coordinator.log.jsonl"),
		SigningKey:     []byte("test-signing-key"),
		Timeout2PC:     2 * time.Second,
		TokenTTL:       time.Hour,
		CommitRetryCap: 100 * time.Millisecond,
	}
	c, err := New(cfg, regClient, nil)
	require.NoError(t, err)
	return c
}

func TestTransferHappyPathCommits(t *testing.T) {
	srcBank, dstBank := newFakeBank(), newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})
	c := newTestCoordinator(t, regClient)

	result := c.Transfer(context.Background(), TransferParams{
		TxID: ledger.NewTxID(), SrcBank: "alpha", SrcUser: "alice",
		DstBank: "beta", DstUser: "bob", Amount: 500,
	})
	require.Equal(t, "committed", result.Status)

	require.Eventually(t, func() bool {
		return len(srcBank.commitDebit) == 1 && len(dstBank.commitCredit) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestTransferAbortsWhenSourcePrepareFails(t *testing.T) {
	srcBank := newFakeBank()
	srcBank.prepareDebit = func(*bankpb.PrepareRequest) (*bankpb.PrepareResponse, error) {
		return &bankpb.PrepareResponse{Status: "rejected", Reason: "insufficient_funds"}, nil
	}
	dstBank := newFakeBank()

	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})
	c := newTestCoordinator(t, regClient)

	result := c.Transfer(context.Background(), TransferParams{
		TxID: ledger.NewTxID(), SrcBank: "alpha", SrcUser: "alice",
		DstBank: "beta", DstUser: "bob", Amount: 500,
	})
	require.Equal(t, "aborted", result.Status)
	require.Contains(t, result.Reason, "insufficient_funds")

	require.Eventually(t, func() bool {
		return len(dstBank.abortCredit) == 1
	}, time.Second, 10*time.Millisecond)
	require.Len(t, srcBank.abortDebit, 0) // src never prepared, nothing to compensate
}

func TestTransferIsIdempotentOnRetry(t *testing.T) {
	srcBank, dstBank := newFakeBank(), newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})
	c := newTestCoordinator(t, regClient)

	txid := ledger.NewTxID()
	params := TransferParams{
		TxID: txid, SrcBank: "alpha", SrcUser: "alice",
		DstBank: "beta", DstUser: "bob", Amount: 500,
	}

	first := c.Transfer(context.Background(), params)
	require.Equal(t, "committed", first.Status)

	second := c.Transfer(context.Background(), params)
	require.Equal(t, "committed", second.Status)

	require.Eventually(t, func() bool { return len(srcBank.commitDebit) >= 1 }, time.Second, 10*time.Millisecond)
	// the second call must not trigger a fresh prepare phase
	require.Equal(t, 1, len(srcBank.commitDebit))
}

func TestSweepInFlightAbortsOrphanedEntryOnRestart(t *testing.T) {
	srcBank, dstBank := newFakeBank(), newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{
		"alpha": startBank(t, srcBank),
		"beta":  startBank(t, dstBank),
	})

	logPath := filepath.Join(t.TempDir(), "coordinator.log.jsonl")
	dl := newDurableLog(logPath)
	txid := ledger.NewTxID()
	require.NoError(t, dl.append(&Entry{
		TxID: txid, State: StateInFlight,
		SrcBank: "alpha", SrcUser: "alice", DstBank: "beta", DstUser: "bob",
		Amount: 500, StartedAt: time.Now(),
	}))

	cfg := RuntimeConfig{
		DurableLogPath: logPath,
		SigningKey:     []byte("test-signing-key"),
		Timeout2PC:     2 * time.Second,
		TokenTTL:       time.Hour,
		CommitRetryCap: 100 * time.Millisecond,
	}
	c, err := New(cfg, regClient, nil)
	require.NoError(t, err)

	c.mu.Lock()
	entry := c.entries[txid]
	c.mu.Unlock()
	require.NotNil(t, entry)
	require.Equal(t, StateAborted, entry.State)

	require.Eventually(t, func() bool {
		return len(srcBank.abortDebit) == 1 && len(dstBank.abortCredit) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLoginMintsTokenBoundToSubject(t *testing.T) {
	bank := newFakeBank()
	regClient, _ := startRegistryWithBanks(t, map[string]string{"alpha": startBank(t, bank)})
	c := newTestCoordinator(t, regClient)

	tok, errCode := c.Login(context.Background(), "alpha", "alice", "hunter2")
	require.Empty(t, errCode)
	require.NotEmpty(t, tok)

	subject, err := c.Authorize(tok)
	require.NoError(t, err)
	require.Equal(t, "alpha", subject.Bank)
	require.Equal(t, "alice", subject.Username)
}
