package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/sethvargo/go-retry"
)

// TransferParams is the validated input to Transfer, already stripped
// of the bearer token (authorization happens one layer up, in service.go).
type TransferParams struct {
	TxID    ledger.TxID
	SrcBank string
	SrcUser string
	DstBank string
	DstUser string
	Amount  ledger.Money
}

// TransferResult is Transfer's outcome, mirroring spec.md §4.1's
// success/failure taxonomy for the op.
type TransferResult struct {
	Status string // "committed" | "aborted" | "duplicate"
	Reason string
}

// Transfer implements spec.md §4.1's idempotency registry + 2PC
// algorithm end to end.
func (c *Coordinator) Transfer(ctx context.Context, p TransferParams) TransferResult {
	c.mu.Lock()
	if existing, ok := c.entries[p.TxID]; ok {
		state, reason := existing.State, existing.Reason
		c.mu.Unlock()
		switch state {
		case StateCommitted:
			log.Printf("coordinator: Transfer %s: cached committed result returned", p.TxID)
			return TransferResult{Status: "committed"}
		case StateAborted:
			log.Printf("coordinator: Transfer %s: cached aborted result returned", p.TxID)
			return TransferResult{Status: "aborted", Reason: reason}
		default: // in-flight
			log.Printf("coordinator: Transfer %s: duplicate submission while in-flight", p.TxID)
			return TransferResult{Status: "duplicate", Reason: "in-flight"}
		}
	}

	entry := &Entry{
		TxID:      p.TxID,
		State:     StateInFlight,
		SrcBank:   p.SrcBank,
		SrcUser:   p.SrcUser,
		DstBank:   p.DstBank,
		DstUser:   p.DstUser,
		Amount:    p.Amount,
		StartedAt: time.Now(),
	}
	c.entries[p.TxID] = entry
	c.mu.Unlock()

	if err := c.log.append(entry); err != nil {
		log.Printf("coordinator: Transfer %s: failed to log in-flight entry: %v", p.TxID, err)
	}

	log.Printf("coordinator: Transfer %s: starting prepare phase src=%s:%s dst=%s:%s amount=%d",
		p.TxID, p.SrcBank, p.SrcUser, p.DstBank, p.DstUser, p.Amount)

	prepCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout2PC)
	var srcStatus, srcReason, dstStatus, dstReason string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		srcStatus, srcReason = c.prepareOne(prepCtx, p.SrcBank, preparePayload{
			TxID: p.TxID, Username: p.SrcUser, Amount: p.Amount,
			CounterpartyBank: p.DstBank, CounterpartyUser: p.DstUser,
		}, true)
	}()
	go func() {
		defer wg.Done()
		dstStatus, dstReason = c.prepareOne(prepCtx, p.DstBank, preparePayload{
			TxID: p.TxID, Username: p.DstUser, Amount: p.Amount,
			CounterpartyBank: p.SrcBank, CounterpartyUser: p.SrcUser,
		}, false)
	}()
	wg.Wait()
	cancel()

	if srcStatus == "prepared" && dstStatus == "prepared" {
		return c.decide(entry, StateCommitted, "")
	}

	reason := srcReason
	if reason == "" {
		reason = dstReason
	}
	log.Printf("coordinator: Transfer %s: prepare phase failed (src=%s/%s dst=%s/%s), aborting",
		p.TxID, srcStatus, srcReason, dstStatus, dstReason)

	if srcStatus == "prepared" {
		go c.retryAbort(context.Background(), p.SrcBank, p.SrcUser, p.TxID, true)
	}
	if dstStatus == "prepared" {
		go c.retryAbort(context.Background(), p.DstBank, p.DstUser, p.TxID, false)
	}

	return c.decide(entry, StateAborted, fmt.Sprintf("prepare_failed: %s", reason))
}

// decide persists the terminal state before returning to the caller
// (spec.md §4.1: "On reaching a terminal state, append... before
// returning to CL") and, for a commit decision, starts retryCommit for
// both sides.
func (c *Coordinator) decide(entry *Entry, state State, reason string) TransferResult {
	c.mu.Lock()
	entry.State = state
	entry.Reason = reason
	c.mu.Unlock()

	if err := c.log.append(entry); err != nil {
		log.Printf("coordinator: Transfer %s: failed to log terminal state %s: %v", entry.TxID, state, err)
	}

	if state == StateCommitted {
		go c.retryCommit(context.Background(), entry.SrcBank, entry.SrcUser, entry.TxID, true)
		go c.retryCommit(context.Background(), entry.DstBank, entry.DstUser, entry.TxID, false)
		return TransferResult{Status: "committed"}
	}
	return TransferResult{Status: "aborted", Reason: reason}
}

type preparePayload struct {
	TxID             ledger.TxID
	Username         string
	Amount           ledger.Money
	CounterpartyBank string
	CounterpartyUser string
}

// prepareOne dispatches one Prepare{Debit,Credit} RPC. isDebit selects
// the operation; the two legs of a transfer are unordered with respect
// to each other, per spec.md §5 — callers run them concurrently.
func (c *Coordinator) prepareOne(ctx context.Context, bank string, p preparePayload, isDebit bool) (status, reason string) {
	client, err := c.bankClient(ctx, bank)
	if err != nil {
		log.Printf("coordinator: prepare %s:%s: %v", bank, p.Username, err)
		return "unavailable", ReasonUnavailable
	}

	req := &bankpb.PrepareRequest{
		TxID: p.TxID.String(), Username: p.Username, Amount: int64(p.Amount),
		CounterpartyBank: p.CounterpartyBank, CounterpartyUser: p.CounterpartyUser,
	}

	var resp *bankpb.PrepareResponse
	if isDebit {
		resp, err = client.PrepareDebit(ctx, req)
	} else {
		resp, err = client.PrepareCredit(ctx, req)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("coordinator: prepare %s:%s: %s", bank, p.Username, ReasonTimeout)
			return "timeout", ReasonTimeout
		}
		log.Printf("coordinator: prepare %s:%s transport error: %v", bank, p.Username, err)
		c.invalidateBankConn(bank)
		return "unavailable", ReasonUnavailable
	}
	return resp.Status, resp.Reason
}

// commitRetryPolicy implements spec.md §6's COMMIT_RETRY_MAX: unbounded
// attempts, exponential backoff capped at c.cfg.CommitRetryCap.
func (c *Coordinator) commitRetryPolicy() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	return retry.WithCappedDuration(c.cfg.CommitRetryCap, b)
}

// retryCommit drives CommitDebit/CommitCredit to convergence. Per
// spec.md §4.1, "Commit RPCs do not fail logically once prepared; only
// transport errors recur" — so any non-transport response ends the loop.
func (c *Coordinator) retryCommit(ctx context.Context, bank, username string, txid ledger.TxID, isDebit bool) {
	err := retry.Do(ctx, c.commitRetryPolicy(), func(ctx context.Context) error {
		client, err := c.bankClient(ctx, bank)
		if err != nil {
			return retry.RetryableError(err)
		}
		req := &bankpb.TxnRequest{TxID: txid.String(), Username: username}

		var resp *bankpb.TxnResponse
		if isDebit {
			resp, err = client.CommitDebit(ctx, req)
		} else {
			resp, err = client.CommitCredit(ctx, req)
		}
		if err != nil {
			c.invalidateBankConn(bank)
			return retry.RetryableError(err)
		}
		if resp.Status == "not_prepared" {
			log.Printf("coordinator: ALARM commit for txn %s at %s:%s arrived after hold expiry", txid, bank, username)
		}
		return nil
	})
	if err != nil {
		log.Printf("coordinator: retryCommit for txn %s at %s:%s gave up: %v", txid, bank, username, err)
	}
}

// retryAbort drives AbortDebit/AbortCredit to convergence. Abort always
// returns ok, per spec.md §4.2, so only transport errors are retried.
func (c *Coordinator) retryAbort(ctx context.Context, bank, username string, txid ledger.TxID, isDebit bool) {
	err := retry.Do(ctx, c.commitRetryPolicy(), func(ctx context.Context) error {
		client, err := c.bankClient(ctx, bank)
		if err != nil {
			return retry.RetryableError(err)
		}
		req := &bankpb.TxnRequest{TxID: txid.String(), Username: username}

		if isDebit {
			_, err = client.AbortDebit(ctx, req)
		} else {
			_, err = client.AbortCredit(ctx, req)
		}
		if err != nil {
			c.invalidateBankConn(bank)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Printf("coordinator: retryAbort for txn %s at %s:%s gave up: %v", txid, bank, username, err)
	}
}

// broadcastAbort is the restart-time sweep's best-effort Abort* to both
// sides of an orphaned in-flight entry, per spec.md §4.1.
func (c *Coordinator) broadcastAbort(ctx context.Context, e *Entry) {
	go c.retryAbort(ctx, e.SrcBank, e.SrcUser, e.TxID, true)
	go c.retryAbort(ctx, e.DstBank, e.DstUser, e.TxID, false)
}
