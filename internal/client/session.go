// Package client implements the Client (CL) role of spec.md §4.3: an
// authenticated session against the Coordinator, with an offline queue
// that tolerates CO unavailability without losing a submitted transfer.
package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/coordpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"google.golang.org/grpc"
)

// OfflinePoll is spec.md §6's OFFLINE_POLL default: the interval at
// which the background worker probes CO's reachability.
const OfflinePoll = 200 * time.Millisecond

// queuedTransfer is one not-yet-terminal transfer request, keyed by a
// txid allocated once and reused across every retry.
type queuedTransfer struct {
	txid    ledger.TxID
	srcBank string
	srcUser string
	dstBank string
	dstUser string
	amount  ledger.Money
	result  chan TransferOutcome // closed after the entry reaches a terminal state
}

// TransferOutcome is what a transfer eventually resolves to, surfaced
// to the UI layer verbatim (spec.md §4.3).
type TransferOutcome struct {
	Status string // "queued" | "committed" | "aborted" | "duplicate" | "error"
	Reason string
}

// Session is one authenticated CL process: a connection to CO, the
// current bearer token, and the offline queue's background drainer.
type Session struct {
	conn   *grpc.ClientConn
	client *coordpb.Client

	mu      sync.Mutex
	token   string
	bank    string
	user    string
	queue   []*queuedTransfer
	paused  bool // true while waiting on re-authentication after "unauthorized"

	authPrompt func() (bank, user, password string) // invoked by the drainer on re-auth

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Dial connects to the coordinator at addr and starts the background
// offline-queue drainer. Callers must call Login before submitting any
// transfer.
func Dial(addr string, tlsCfg *rpcx.TLSConfig, authPrompt func() (bank, user, password string)) (*Session, error) {
	conn, err := rpcx.Dial(addr, tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("client: dial coordinator %s: %w", addr, err)
	}
	s := &Session{
		conn:       conn,
		client:     coordpb.NewClient(conn),
		authPrompt: authPrompt,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.drainLoop()
	return s, nil
}

// Close stops the background drainer and closes the connection to CO.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.conn.Close()
}

// Login authenticates (bank, username, password) and stores the issued
// token for the life of the session.
func (s *Session) Login(ctx context.Context, bank, username, password string) error {
	resp, err := s.client.Login(ctx, &coordpb.LoginRequest{Bank: bank, Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("client: login transport error: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("client: login failed: %s", resp.Error)
	}

	s.mu.Lock()
	s.token = resp.Token
	s.bank = bank
	s.user = username
	s.paused = false
	s.mu.Unlock()

	log.Printf("client: logged in as %s:%s", bank, username)
	return nil
}

// Ping probes CO's reachability, used both by the caller (e.g. to show
// connectivity status) and by the drain loop.
func (s *Session) Ping(ctx context.Context) bool {
	resp, err := s.client.Ping(ctx, &coordpb.PingRequest{})
	return err == nil && resp.OK
}

// Transfer submits a transfer. If CO is currently unreachable, the
// request is queued and "queued" is returned immediately, per spec.md
// §4.3; otherwise it blocks for the RPC's outcome.
func (s *Session) Transfer(ctx context.Context, dstBank, dstUser string, amount ledger.Money) TransferOutcome {
	s.mu.Lock()
	srcBank, srcUser := s.bank, s.user
	s.mu.Unlock()

	entry := &queuedTransfer{
		txid:    ledger.NewTxID(),
		srcBank: srcBank,
		srcUser: srcUser,
		dstBank: dstBank,
		dstUser: dstUser,
		amount:  amount,
		result:  make(chan TransferOutcome, 1),
	}

	if !s.Ping(ctx) {
		log.Printf("client: coordinator unreachable, queuing txn %s", entry.txid)
		s.enqueue(entry)
		return TransferOutcome{Status: "queued"}
	}

	outcome := s.submit(ctx, entry)
	if outcome.Status == "error" && outcome.Reason == ReasonTransport {
		log.Printf("client: txn %s hit a transport error on first attempt, queuing", entry.txid)
		s.enqueue(entry)
		return TransferOutcome{Status: "queued"}
	}
	return outcome
}

func (s *Session) enqueue(e *queuedTransfer) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
}

// ReasonTransport flags a submit failure as retry-eligible rather than
// terminal, distinguishing it from a domain-level abort reason.
// ReasonUnauthorized matches internal/coordinator's ReasonUnauthorized,
// the error string CO uses for an expired or invalid token.
const (
	ReasonTransport    = "transport"
	ReasonUnauthorized = "unauthorized"
)

// submit makes one Transfer RPC attempt for entry using the session's
// current token.
func (s *Session) submit(ctx context.Context, e *queuedTransfer) TransferOutcome {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	resp, err := s.client.Transfer(ctx, &coordpb.TransferRequest{
		Token:            tok,
		TxID:             e.txid.String(),
		SrcBank:          e.srcBank,
		SrcUser:          e.srcUser,
		DstBank:          e.dstBank,
		DstUser:          e.dstUser,
		AmountMinorUnits: int64(e.amount),
	})
	if err != nil {
		return TransferOutcome{Status: "error", Reason: ReasonTransport}
	}
	if resp.Error != "" {
		return TransferOutcome{Status: "error", Reason: resp.Error}
	}
	return TransferOutcome{Status: resp.Status, Reason: resp.Reason}
}

// drainLoop is the offline queue's one background worker (spec.md
// §5's "single UI flow plus one background worker"). It polls every
// OfflinePoll and, when CO is reachable and the queue isn't paused on
// re-auth, drains entries one at a time in insertion order.
func (s *Session) drainLoop() {
	defer close(s.done)
	ticker := time.NewTicker(OfflinePoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.drainOnce(context.Background())
		}
	}
}

func (s *Session) drainOnce(ctx context.Context) {
	s.mu.Lock()
	if s.paused || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if !s.Ping(ctx) {
		return
	}

	for {
		s.mu.Lock()
		if s.paused || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		entry := s.queue[0]
		s.mu.Unlock()

		outcome := s.submit(ctx, entry)

		switch {
		case outcome.Status == "committed", outcome.Status == "aborted", outcome.Status == "duplicate":
			log.Printf("client: drained txn %s -> %s", entry.txid, outcome.Status)
			s.dequeue(entry)
			entry.result <- outcome
			close(entry.result)
		case outcome.Status == "error" && outcome.Reason == ReasonUnauthorized:
			log.Printf("client: drain paused, token rejected; re-authenticating")
			s.pauseForReauth(ctx)
			return
		case outcome.Status == "error" && outcome.Reason == ReasonTransport:
			log.Printf("client: drain stopping, transport error for txn %s", entry.txid)
			return
		default:
			log.Printf("client: drained txn %s -> error(%s), dropping from queue", entry.txid, outcome.Reason)
			s.dequeue(entry)
			entry.result <- outcome
			close(entry.result)
		}
	}
}

func (s *Session) dequeue(target *queuedTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.queue {
		if e == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// pauseForReauth blocks the drain loop until the caller-supplied prompt
// yields fresh credentials, then resumes draining on the next tick.
// Queued entries keep their original txid, per spec.md §4.3.
func (s *Session) pauseForReauth(ctx context.Context) {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	if s.authPrompt == nil {
		log.Printf("client: no re-auth prompt configured, queue stays paused")
		return
	}

	bank, user, password := s.authPrompt()
	if err := s.Login(ctx, bank, user, password); err != nil {
		log.Printf("client: re-authentication failed: %v", err)
		return
	}

	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// QueueLen reports the number of entries currently queued, for the
// interactive menu's `queue` command.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Balance fetches the authenticated account's balance from CO.
func (s *Session) Balance(ctx context.Context) (ledger.Money, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	resp, err := s.client.Balance(ctx, &coordpb.BalanceRequest{Token: tok})
	if err != nil {
		return 0, fmt.Errorf("client: balance transport error: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("client: balance failed: %s", resp.Error)
	}
	return ledger.Money(resp.Amount), nil
}

// History fetches the authenticated account's transaction history.
func (s *Session) History(ctx context.Context) ([]coordpb.HistoryEntry, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	resp, err := s.client.History(ctx, &coordpb.HistoryRequest{Token: tok})
	if err != nil {
		return nil, fmt.Errorf("client: history transport error: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("client: history failed: %s", resp.Error)
	}
	return resp.Entries, nil
}
