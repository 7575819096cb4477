package coordpb

import (
	"context"

	"google.golang.org/grpc"
)

// Server is implemented by the Coordinator.
type Server interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	Balance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

const serviceName = "atomicpay.coordinator.CoordinatorService"

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Login", func(s Server, ctx context.Context, req *LoginRequest) (any, error) {
			return s.Login(ctx, req)
		}),
		unaryMethod("Transfer", func(s Server, ctx context.Context, req *TransferRequest) (any, error) {
			return s.Transfer(ctx, req)
		}),
		unaryMethod("Balance", func(s Server, ctx context.Context, req *BalanceRequest) (any, error) {
			return s.Balance(ctx, req)
		}),
		unaryMethod("History", func(s Server, ctx context.Context, req *HistoryRequest) (any, error) {
			return s.History(ctx, req)
		}),
		unaryMethod("Ping", func(s Server, ctx context.Context, req *PingRequest) (any, error) {
			return s.Ping(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coordpb/coordinator.proto",
}

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

// Client is a thin typed wrapper over a grpc.ClientConnInterface.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
}

func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	resp := new(LoginResponse)
	return resp, c.call(ctx, "Login", req, resp)
}

func (c *Client) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	resp := new(TransferResponse)
	return resp, c.call(ctx, "Transfer", req, resp)
}

func (c *Client) Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error) {
	resp := new(BalanceResponse)
	return resp, c.call(ctx, "Balance", req, resp)
}

func (c *Client) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	resp := new(HistoryResponse)
	return resp, c.call(ctx, "History", req, resp)
}

func (c *Client) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	resp := new(PingResponse)
	return resp, c.call(ctx, "Ping", req, resp)
}
