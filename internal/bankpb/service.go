package bankpb

import (
	"context"

	"google.golang.org/grpc"
)

// Server is implemented by a Bank Participant.
type Server interface {
	Authenticate(context.Context, *AuthenticateRequest) (*AuthenticateResponse, error)
	PrepareDebit(context.Context, *PrepareRequest) (*PrepareResponse, error)
	PrepareCredit(context.Context, *PrepareRequest) (*PrepareResponse, error)
	CommitDebit(context.Context, *TxnRequest) (*TxnResponse, error)
	CommitCredit(context.Context, *TxnRequest) (*TxnResponse, error)
	AbortDebit(context.Context, *TxnRequest) (*TxnResponse, error)
	AbortCredit(context.Context, *TxnRequest) (*TxnResponse, error)
	Balance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
}

const serviceName = "atomicpay.bank.BankService"

// ServiceDesc registers a Server with a grpc.Server, in place of what
// protoc-gen-go-grpc would have emitted.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Authenticate", func(s Server, ctx context.Context, req *AuthenticateRequest) (any, error) {
			return s.Authenticate(ctx, req)
		}),
		unaryMethod("PrepareDebit", func(s Server, ctx context.Context, req *PrepareRequest) (any, error) {
			return s.PrepareDebit(ctx, req)
		}),
		unaryMethod("PrepareCredit", func(s Server, ctx context.Context, req *PrepareRequest) (any, error) {
			return s.PrepareCredit(ctx, req)
		}),
		unaryMethod("CommitDebit", func(s Server, ctx context.Context, req *TxnRequest) (any, error) {
			return s.CommitDebit(ctx, req)
		}),
		unaryMethod("CommitCredit", func(s Server, ctx context.Context, req *TxnRequest) (any, error) {
			return s.CommitCredit(ctx, req)
		}),
		unaryMethod("AbortDebit", func(s Server, ctx context.Context, req *TxnRequest) (any, error) {
			return s.AbortDebit(ctx, req)
		}),
		unaryMethod("AbortCredit", func(s Server, ctx context.Context, req *TxnRequest) (any, error) {
			return s.AbortCredit(ctx, req)
		}),
		unaryMethod("Balance", func(s Server, ctx context.Context, req *BalanceRequest) (any, error) {
			return s.Balance(ctx, req)
		}),
		unaryMethod("History", func(s Server, ctx context.Context, req *HistoryRequest) (any, error) {
			return s.History(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bankpb/bank.proto",
}

// unaryMethod adapts a typed Server method into the untyped
// grpc.MethodDesc.Handler shape grpc.ServiceDesc requires.
func unaryMethod[Req any](name string, call func(Server, context.Context, *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// Client is a thin typed wrapper over a grpc.ClientConnInterface,
// standing in for the protoc-generated *BankServiceClient.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
}

func (c *Client) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	resp := new(AuthenticateResponse)
	return resp, c.call(ctx, "Authenticate", req, resp)
}

func (c *Client) PrepareDebit(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	resp := new(PrepareResponse)
	return resp, c.call(ctx, "PrepareDebit", req, resp)
}

func (c *Client) PrepareCredit(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	resp := new(PrepareResponse)
	return resp, c.call(ctx, "PrepareCredit", req, resp)
}

func (c *Client) CommitDebit(ctx context.Context, req *TxnRequest) (*TxnResponse, error) {
	resp := new(TxnResponse)
	return resp, c.call(ctx, "CommitDebit", req, resp)
}

func (c *Client) CommitCredit(ctx context.Context, req *TxnRequest) (*TxnResponse, error) {
	resp := new(TxnResponse)
	return resp, c.call(ctx, "CommitCredit", req, resp)
}

func (c *Client) AbortDebit(ctx context.Context, req *TxnRequest) (*TxnResponse, error) {
	resp := new(TxnResponse)
	return resp, c.call(ctx, "AbortDebit", req, resp)
}

func (c *Client) AbortCredit(ctx context.Context, req *TxnRequest) (*TxnResponse, error) {
	resp := new(TxnResponse)
	return resp, c.call(ctx, "AbortCredit", req, resp)
}

func (c *Client) Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error) {
	resp := new(BalanceResponse)
	return resp, c.call(ctx, "Balance", req, resp)
}

func (c *Client) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	resp := new(HistoryResponse)
	return resp, c.call(ctx, "History", req, resp)
}
