// Package registry implements the service discovery collaborator named
// but not specified by spec.md §6: a key/value + health store mapping
// "coordinator" and "bank/<name>" to host:port, with lease-based health.
package registry

import (
	"context"

	"google.golang.org/grpc"
)

type RegisterRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	HealthAddress string `json:"health_address,omitempty"`
	LeaseSeconds  int64  `json:"lease_seconds"`
}

type RegisterResponse struct {
	LeaseID string `json:"lease_id"`
}

type HeartbeatRequest struct {
	Name    string `json:"name"`
	LeaseID string `json:"lease_id"`
}

type HeartbeatResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"` // "unknown_lease"
}

type DeregisterRequest struct {
	Name    string `json:"name"`
	LeaseID string `json:"lease_id"`
}

type DeregisterResponse struct{}

type LookupRequest struct {
	Name string `json:"name"`
}

type LookupResponse struct {
	Address string `json:"address"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"` // "unavailable"
}

// Server is implemented by the registry daemon.
type Server interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	Deregister(context.Context, *DeregisterRequest) (*DeregisterResponse, error)
	Lookup(context.Context, *LookupRequest) (*LookupResponse, error)
}

const serviceName = "atomicpay.registry.RegistryService"

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", func(s Server, ctx context.Context, req *RegisterRequest) (any, error) {
			return s.Register(ctx, req)
		}),
		unaryMethod("Heartbeat", func(s Server, ctx context.Context, req *HeartbeatRequest) (any, error) {
			return s.Heartbeat(ctx, req)
		}),
		unaryMethod("Deregister", func(s Server, ctx context.Context, req *DeregisterRequest) (any, error) {
			return s.Deregister(ctx, req)
		}),
		unaryMethod("Lookup", func(s Server, ctx context.Context, req *LookupRequest) (any, error) {
			return s.Lookup(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry/registry.proto",
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

func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	resp := new(RegisterResponse)
	return resp, c.call(ctx, "Register", req, resp)
}

func (c *Client) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	return resp, c.call(ctx, "Heartbeat", req, resp)
}

func (c *Client) Deregister(ctx context.Context, req *DeregisterRequest) (*DeregisterResponse, error) {
	resp := new(DeregisterResponse)
	return resp, c.call(ctx, "Deregister", req, resp)
}

func (c *Client) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	resp := new(LookupResponse)
	return resp, c.call(ctx, "Lookup", req, resp)
}
