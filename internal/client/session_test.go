package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/coordpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"github.com/stretchr/testify/require"
)

// fakeCoordinator is a scriptable coordpb.Server used to drive Session
// through the offline-queue and re-auth paths without a real CO.
type fakeCoordinator struct {
	mu        sync.Mutex
	reachable bool
	transfer  func(*coordpb.TransferRequest) (*coordpb.TransferResponse, error)
	loginCalls int
}

func (f *fakeCoordinator) setReachable(v bool) {
	f.mu.Lock()
	f.reachable = v
	f.mu.Unlock()
}

func (f *fakeCoordinator) Login(context.Context, *coordpb.LoginRequest) (*coordpb.LoginResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	return &coordpb.LoginResponse{Token: "tok"}, nil
}

func (f *fakeCoordinator) Transfer(_ context.Context, req *coordpb.TransferRequest) (*coordpb.TransferResponse, error) {
	if f.transfer != nil {
		return f.transfer(req)
	}
	return &coordpb.TransferResponse{Status: "committed"}, nil
}

func (f *fakeCoordinator) Balance(context.Context, *coordpb.BalanceRequest) (*coordpb.BalanceResponse, error) {
	return &coordpb.BalanceResponse{Amount: 100}, nil
}

func (f *fakeCoordinator) History(context.Context, *coordpb.HistoryRequest) (*coordpb.HistoryResponse, error) {
	return &coordpb.HistoryResponse{}, nil
}

func (f *fakeCoordinator) Ping(context.Context, *coordpb.PingRequest) (*coordpb.PingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &coordpb.PingResponse{OK: f.reachable}, nil
}

func startCoordinator(t *testing.T, impl coordpb.Server) string {
	t.Helper()
	server, err := rpcx.NewServer(nil)
	require.NoError(t, err)
	server.RegisterService(&coordpb.ServiceDesc, impl)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(lis)
	t.Cleanup(server.Stop)
	return lis.Addr().String()
}

func dialTestSession(t *testing.T, addr string, authPrompt func() (string, string, string)) *Session {
	t.Helper()
	sess, err := Dial(addr, nil, authPrompt)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func TestTransferCommitsWhenCoordinatorReachable(t *testing.T) {
	fc := &fakeCoordinator{reachable: true}
	sess := dialTestSession(t, startCoordinator(t, fc), nil)
	require.NoError(t, sess.Login(context.Background(), "alpha", "alice", "pw"))

	outcome := sess.Transfer(context.Background(), "beta", "bob", ledger.Money(100))
	require.Equal(t, "committed", outcome.Status)
}

func TestTransferQueuesWhenCoordinatorUnreachable(t *testing.T) {
	fc := &fakeCoordinator{reachable: false}
	sess := dialTestSession(t, startCoordinator(t, fc), nil)
	require.NoError(t, sess.Login(context.Background(), "alpha", "alice", "pw"))

	outcome := sess.Transfer(context.Background(), "beta", "bob", ledger.Money(100))
	require.Equal(t, "queued", outcome.Status)
	require.Equal(t, 1, sess.QueueLen())
}

func TestQueueDrainsOnceCoordinatorBecomesReachable(t *testing.T) {
	fc := &fakeCoordinator{reachable: false}
	sess := dialTestSession(t, startCoordinator(t, fc), nil)
	require.NoError(t, sess.Login(context.Background(), "alpha", "alice", "pw"))

	outcome := sess.Transfer(context.Background(), "beta", "bob", ledger.Money(100))
	require.Equal(t, "queued", outcome.Status)

	fc.setReachable(true)

	require.Eventually(t, func() bool {
		return sess.QueueLen() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestQueuePausesAndReauthenticatesOnUnauthorized(t *testing.T) {
	fc := &fakeCoordinator{reachable: false}
	var rejectedOnce bool
	fc.transfer = func(req *coordpb.TransferRequest) (*coordpb.TransferResponse, error) {
		if !rejectedOnce {
			rejectedOnce = true
			return &coordpb.TransferResponse{Status: "error", Error: "unauthorized"}, nil
		}
		return &coordpb.TransferResponse{Status: "committed"}, nil
	}

	reauthed := make(chan struct{}, 1)
	authPrompt := func() (string, string, string) {
		reauthed <- struct{}{}
		return "alpha", "alice", "newpw"
	}

	sess := dialTestSession(t, startCoordinator(t, fc), authPrompt)
	require.NoError(t, sess.Login(context.Background(), "alpha", "alice", "pw"))

	outcome := sess.Transfer(context.Background(), "beta", "bob", ledger.Money(100))
	require.Equal(t, "queued", outcome.Status)

	fc.setReachable(true)

	select {
	case <-reauthed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected re-auth prompt to fire")
	}

	require.Eventually(t, func() bool {
		return sess.QueueLen() == 0
	}, 2*time.Second, 20*time.Millisecond)

	require.GreaterOrEqual(t, fc.loginCalls, 2) // initial login + re-auth
}
