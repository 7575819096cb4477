package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/registry"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"github.com/interbank-gateway/atomicpay/internal/token"
	"google.golang.org/grpc"
)

// Coordinator drives spec.md §4.1: authenticate via BPs, issue tokens,
// run 2PC for Transfer, and keep the idempotency registry durable
// across restarts.
type Coordinator struct {
	cfg RuntimeConfig

	tokens *token.Issuer
	log    *durableLog

	mu      sync.Mutex
	entries map[ledger.TxID]*Entry

	regClient *registry.Client
	tlsCfg    *rpcx.TLSConfig

	connsMu sync.Mutex
	conns   map[string]*grpc.ClientConn // bank name -> dialed conn
}

func New(cfg RuntimeConfig, regClient *registry.Client, tlsCfg *rpcx.TLSConfig) (*Coordinator, error) {
	c := &Coordinator{
		cfg:       cfg,
		tokens:    token.NewIssuer(cfg.SigningKey, cfg.TokenTTL),
		log:       newDurableLog(cfg.DurableLogPath),
		entries:   make(map[ledger.TxID]*Entry),
		regClient: regClient,
		tlsCfg:    tlsCfg,
		conns:     make(map[string]*grpc.ClientConn),
	}

	entries, err := c.log.replay()
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	c.entries = entries
	c.sweepInFlight()

	return c, nil
}

// sweepInFlight implements spec.md §4.1's crash semantics: any entry
// still in-flight after replay (the CO never reached a terminal record
// for it) is marked aborted and a best-effort Abort* is broadcast to
// both sides, since either may have a live, now-orphaned hold.
func (c *Coordinator) sweepInFlight() {
	var orphaned []*Entry
	c.mu.Lock()
	for _, e := range c.entries {
		if e.State == StateInFlight {
			e.State = StateAborted
			e.Reason = "coordinator_restart"
			orphaned = append(orphaned, e)
		}
	}
	c.mu.Unlock()

	for _, e := range orphaned {
		log.Printf("coordinator: sweeping orphaned in-flight txn %s as aborted", e.TxID)
		if err := c.log.append(e); err != nil {
			log.Printf("coordinator: failed to log sweep-abort for %s: %v", e.TxID, err)
		}
		go c.broadcastAbort(context.Background(), e)
	}
}

// bankConn returns a cached connection to bank, dialing and caching one
// via a registry lookup on first use.
func (c *Coordinator) bankConn(ctx context.Context, bank string) (*grpc.ClientConn, error) {
	c.connsMu.Lock()
	if conn, ok := c.conns[bank]; ok {
		c.connsMu.Unlock()
		return conn, nil
	}
	c.connsMu.Unlock()

	addr, err := registry.LookupAddress(ctx, c.regClient, registry.BankRegistryName(bank))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ReasonUnavailable, err)
	}
	conn, err := rpcx.Dial(addr, c.tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ReasonUnavailable, err)
	}

	c.connsMu.Lock()
	if existing, ok := c.conns[bank]; ok {
		c.connsMu.Unlock()
		conn.Close()
		return existing, nil
	}
	c.conns[bank] = conn
	c.connsMu.Unlock()
	return conn, nil
}

func (c *Coordinator) bankClient(ctx context.Context, bank string) (*bankpb.Client, error) {
	conn, err := c.bankConn(ctx, bank)
	if err != nil {
		return nil, err
	}
	return bankpb.NewClient(conn), nil
}

// invalidateBankConn drops a cached connection, forcing the next call
// to re-resolve through the registry — used when a bank deregisters
// mid-transfer (spec.md §9's open question b, treated as unavailable).
func (c *Coordinator) invalidateBankConn(bank string) {
	c.connsMu.Lock()
	if conn, ok := c.conns[bank]; ok {
		delete(c.conns, bank)
		conn.Close()
	}
	c.connsMu.Unlock()
}

// Login authenticates (bank, username, password) against the named
// BP and mints a bearer token bound to that subject.
func (c *Coordinator) Login(ctx context.Context, bank, username, password string) (tok string, errCode string) {
	client, err := c.bankClient(ctx, bank)
	if err != nil {
		log.Printf("coordinator: Login bank=%s user=%s: %v", bank, username, err)
		return "", ReasonBankUnavailable
	}

	resp, err := client.Authenticate(ctx, &bankpb.AuthenticateRequest{Username: username, Password: password})
	if err != nil {
		log.Printf("coordinator: Login bank=%s user=%s transport error: %v", bank, username, err)
		return "", ReasonBankUnavailable
	}
	if !resp.OK {
		return "", ReasonAuthFailed
	}

	tok, err = c.tokens.Mint(token.Subject{Bank: bank, Username: username})
	if err != nil {
		log.Printf("coordinator: Login mint token for %s:%s: %v", bank, username, err)
		return "", ReasonInternal
	}
	log.Printf("coordinator: Login succeeded for %s:%s", bank, username)
	return tok, ""
}

// Authorize verifies tok and returns the (bank, username) subject it is
// bound to; comparing that subject with a request is left to the caller.
func (c *Coordinator) Authorize(tok string) (token.Subject, error) {
	return c.tokens.Verify(tok)
}

// Ping answers spec.md §4.1's availability probe used by CL's offline
// queue poller.
func (c *Coordinator) Ping() bool { return true }
