package coordinator

import (
	"context"
	"log"

	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/coordpb"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/registry"
)

// Service adapts a *Coordinator to coordpb.Server, the shape
// cmd/coordinator registers with an rpcx server.
type Service struct {
	c *Coordinator
}

func NewService(c *Coordinator) *Service { return &Service{c: c} }

var _ coordpb.Server = (*Service)(nil)

func (s *Service) Login(ctx context.Context, req *coordpb.LoginRequest) (*coordpb.LoginResponse, error) {
	if _, err := registry.LookupAddress(ctx, s.c.regClient, registry.BankRegistryName(req.Bank)); err != nil {
		log.Printf("coordinator: Login rejected, unknown bank %s", req.Bank)
		return &coordpb.LoginResponse{Error: ReasonUnknownBank}, nil
	}

	tok, errCode := s.c.Login(ctx, req.Bank, req.Username, req.Password)
	if errCode != "" {
		return &coordpb.LoginResponse{Error: errCode}, nil
	}
	return &coordpb.LoginResponse{Token: tok}, nil
}

// Transfer implements spec.md §4.1's authorization-soundness check
// before dispatching 2PC: the token's subject must name the transfer's
// src side, or the request is rejected with no side effects at all —
// not even an idempotency-registry insert.
func (s *Service) Transfer(ctx context.Context, req *coordpb.TransferRequest) (*coordpb.TransferResponse, error) {
	subject, err := s.c.Authorize(req.Token)
	if err != nil {
		log.Printf("coordinator: Transfer rejected, bad token: %v", err)
		return &coordpb.TransferResponse{Status: "error", Error: ReasonUnauthorized}, nil
	}
	if subject.Bank != req.SrcBank || subject.Username != req.SrcUser {
		log.Printf("coordinator: Transfer rejected, token subject %s:%s does not match src %s:%s",
			subject.Bank, subject.Username, req.SrcBank, req.SrcUser)
		return &coordpb.TransferResponse{Status: "error", Error: ReasonUnauthorized}, nil
	}

	txid, err := ledger.ParseTxID(req.TxID)
	if err != nil {
		log.Printf("coordinator: Transfer rejected, malformed txid %q: %v", req.TxID, err)
		return &coordpb.TransferResponse{Status: "error", Error: ReasonInternal}, nil
	}

	for _, bank := range []string{req.SrcBank, req.DstBank} {
		if _, err := registry.LookupAddress(ctx, s.c.regClient, registry.BankRegistryName(bank)); err != nil {
			log.Printf("coordinator: Transfer rejected, unknown bank %s", bank)
			return &coordpb.TransferResponse{Status: "error", Error: ReasonUnknownBank}, nil
		}
	}

	result := s.c.Transfer(ctx, TransferParams{
		TxID:    txid,
		SrcBank: req.SrcBank,
		SrcUser: req.SrcUser,
		DstBank: req.DstBank,
		DstUser: req.DstUser,
		Amount:  ledger.Money(req.AmountMinorUnits),
	})
	return &coordpb.TransferResponse{Status: result.Status, Reason: result.Reason}, nil
}

func (s *Service) Balance(ctx context.Context, req *coordpb.BalanceRequest) (*coordpb.BalanceResponse, error) {
	subject, err := s.c.Authorize(req.Token)
	if err != nil {
		return &coordpb.BalanceResponse{Error: ReasonUnauthorized}, nil
	}

	client, err := s.c.bankClient(ctx, subject.Bank)
	if err != nil {
		log.Printf("coordinator: Balance %s:%s: %v", subject.Bank, subject.Username, err)
		return &coordpb.BalanceResponse{Error: ReasonBankUnavailable}, nil
	}
	resp, err := client.Balance(ctx, &bankpb.BalanceRequest{Username: subject.Username})
	if err != nil {
		s.c.invalidateBankConn(subject.Bank)
		log.Printf("coordinator: Balance %s:%s transport error: %v", subject.Bank, subject.Username, err)
		return &coordpb.BalanceResponse{Error: ReasonBankUnavailable}, nil
	}
	if resp.Error != "" {
		return &coordpb.BalanceResponse{Error: resp.Error}, nil
	}
	return &coordpb.BalanceResponse{Amount: resp.Amount}, nil
}

func (s *Service) History(ctx context.Context, req *coordpb.HistoryRequest) (*coordpb.HistoryResponse, error) {
	subject, err := s.c.Authorize(req.Token)
	if err != nil {
		return &coordpb.HistoryResponse{Error: ReasonUnauthorized}, nil
	}

	client, err := s.c.bankClient(ctx, subject.Bank)
	if err != nil {
		log.Printf("coordinator: History %s:%s: %v", subject.Bank, subject.Username, err)
		return &coordpb.HistoryResponse{Error: ReasonBankUnavailable}, nil
	}
	resp, err := client.History(ctx, &bankpb.HistoryRequest{Username: subject.Username})
	if err != nil {
		s.c.invalidateBankConn(subject.Bank)
		log.Printf("coordinator: History %s:%s transport error: %v", subject.Bank, subject.Username, err)
		return &coordpb.HistoryResponse{Error: ReasonBankUnavailable}, nil
	}
	if resp.Error != "" {
		return &coordpb.HistoryResponse{Error: resp.Error}, nil
	}

	entries := make([]coordpb.HistoryEntry, len(resp.Entries))
	for i, e := range resp.Entries {
		entries[i] = coordpb.HistoryEntry{
			TxID:             e.TxID,
			CounterpartyBank: e.CounterpartyBank,
			CounterpartyUser: e.CounterpartyUser,
			Direction:        e.Direction,
			Amount:           e.Amount,
			TimestampUnix:    e.TimestampUnix,
		}
	}
	return &coordpb.HistoryResponse{Entries: entries}, nil
}

func (s *Service) Ping(ctx context.Context, req *coordpb.PingRequest) (*coordpb.PingResponse, error) {
	return &coordpb.PingResponse{OK: s.c.Ping()}, nil
}
