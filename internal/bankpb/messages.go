// Package bankpb defines the wire contract for the Bank Participant RPC
// surface (spec.md §4.2): Authenticate, PrepareDebit, PrepareCredit,
// CommitDebit, CommitCredit, AbortDebit, AbortCredit, Balance, History.
//
// Message types are plain JSON-tagged structs rather than protobuf
// generated code — protoc generation is out of scope for this repo; see
// DESIGN.md. They are carried over google.golang.org/grpc using the
// JSON codec registered in internal/rpcx.
package bankpb

// HistoryEntry mirrors spec.md §3's transaction record.
type HistoryEntry struct {
	TxID             string `json:"txid"`
	CounterpartyBank string `json:"counterparty_bank"`
	CounterpartyUser string `json:"counterparty_user"`
	Direction        string `json:"direction"` // "sent" | "received"
	Amount           int64  `json:"amount"`
	TimestampUnix    int64  `json:"timestamp_unix"`
	Status           string `json:"status"` // always "committed": history is append-on-commit only
}

type AuthenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthenticateResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"` // "unknown_user" | "bad_password"
}

type PrepareRequest struct {
	TxID     string `json:"txid"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	// CounterpartyBank/CounterpartyUser are carried through so the BP
	// can append a correctly addressed history entry on commit without
	// the coordinator needing a second round trip.
	CounterpartyBank string `json:"counterparty_bank"`
	CounterpartyUser string `json:"counterparty_user"`
}

type PrepareResponse struct {
	Status string `json:"status"` // "prepared" | "rejected"
	Reason string `json:"reason,omitempty"`
}

type TxnRequest struct {
	TxID     string `json:"txid"`
	Username string `json:"username"`
}

type TxnResponse struct {
	Status string `json:"status"` // "ok" | "unknown_txid" | "not_prepared"
	Reason string `json:"reason,omitempty"`
}

type BalanceRequest struct {
	Username string `json:"username"`
}

type BalanceResponse struct {
	Amount int64  `json:"amount"`
	Error  string `json:"error,omitempty"`
}

type HistoryRequest struct {
	Username string `json:"username"`
}

type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Error   string         `json:"error,omitempty"`
}
