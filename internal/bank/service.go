package bank

import (
	"context"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// Service adapts a Participant to bankpb.Server, translating between
// wire structs and domain types. It holds no state of its own.
type Service struct {
	p *Participant
}

func NewService(p *Participant) *Service { return &Service{p: p} }

var _ bankpb.Server = (*Service)(nil)

func (s *Service) Authenticate(ctx context.Context, req *bankpb.AuthenticateRequest) (*bankpb.AuthenticateResponse, error) {
	ok, errCode := s.p.Authenticate(req.Username, req.Password)
	return &bankpb.AuthenticateResponse{OK: ok, Error: errCode}, nil
}

func (s *Service) PrepareDebit(ctx context.Context, req *bankpb.PrepareRequest) (*bankpb.PrepareResponse, error) {
	txid, err := ledger.ParseTxID(req.TxID)
	if err != nil {
		return &bankpb.PrepareResponse{Status: "rejected", Reason: "internal"}, nil
	}
	status, reason := s.p.PrepareDebit(req.Username, txid, ledger.Money(req.Amount), req.CounterpartyBank, req.CounterpartyUser)
	return &bankpb.PrepareResponse{Status: status, Reason: reason}, nil
}

func (s *Service) PrepareCredit(ctx context.Context, req *bankpb.PrepareRequest) (*bankpb.PrepareResponse, error) {
	txid, err := ledger.ParseTxID(req.TxID)
	if err != nil {
		return &bankpb.PrepareResponse{Status: "rejected", Reason: "internal"}, nil
	}
	status, reason := s.p.PrepareCredit(req.Username, txid, ledger.Money(req.Amount), req.CounterpartyBank, req.CounterpartyUser)
	return &bankpb.PrepareResponse{Status: status, Reason: reason}, nil
}

func (s *Service) CommitDebit(ctx context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	return s.commit(req, s.p.CommitDebit)
}

func (s *Service) CommitCredit(ctx context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	return s.commit(req, s.p.CommitCredit)
}

// commit is shared by CommitDebit/CommitCredit: identical parse-call-wrap
// shape, differing only in which Participant method carries the operation.
func (s *Service) commit(req *bankpb.TxnRequest, call func(username string, txid ledger.TxID) (string, string)) (*bankpb.TxnResponse, error) {
	txid, err := ledger.ParseTxID(req.TxID)
	if err != nil {
		return &bankpb.TxnResponse{Status: "unknown_txid"}, nil
	}
	status, reason := call(req.Username, txid)
	if status == "" {
		status = reason // "unknown_txid" | "not_prepared"
	}
	return &bankpb.TxnResponse{Status: status, Reason: reason}, nil
}

func (s *Service) AbortDebit(ctx context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	return s.abort(req, s.p.AbortDebit)
}

func (s *Service) AbortCredit(ctx context.Context, req *bankpb.TxnRequest) (*bankpb.TxnResponse, error) {
	return s.abort(req, s.p.AbortCredit)
}

func (s *Service) abort(req *bankpb.TxnRequest, call func(username string, txid ledger.TxID)) (*bankpb.TxnResponse, error) {
	txid, err := ledger.ParseTxID(req.TxID)
	if err != nil {
		return &bankpb.TxnResponse{Status: "ok"}, nil // abort of a malformed txid is still a no-op ok, per spec.md §4.2
	}
	call(req.Username, txid)
	return &bankpb.TxnResponse{Status: "ok"}, nil
}

func (s *Service) Balance(ctx context.Context, req *bankpb.BalanceRequest) (*bankpb.BalanceResponse, error) {
	amount, err := s.p.Balance(req.Username)
	if err != nil {
		return &bankpb.BalanceResponse{Error: ErrUnknownUser}, nil
	}
	return &bankpb.BalanceResponse{Amount: int64(amount)}, nil
}

func (s *Service) History(ctx context.Context, req *bankpb.HistoryRequest) (*bankpb.HistoryResponse, error) {
	records, err := s.p.History(req.Username)
	if err != nil {
		return &bankpb.HistoryResponse{Error: ErrUnknownUser}, nil
	}
	entries := make([]bankpb.HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = bankpb.HistoryEntry{
			TxID:             r.TxID.String(),
			CounterpartyBank: r.CounterpartyBank,
			CounterpartyUser: r.CounterpartyUser,
			Direction:        string(r.Direction),
			Amount:           int64(r.Amount),
			TimestampUnix:    r.Timestamp.Unix(),
			Status:           string(r.Status),
		}
	}
	return &bankpb.HistoryResponse{Entries: entries}, nil
}
