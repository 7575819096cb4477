package rpcx

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
)

// NewServer builds a grpc.Server bound to cfg's credentials with an
// interceptor installed that logs every failed call. Every role (coordinator, bank,
// registry) constructs its listener this way.
func NewServer(cfg *TLSConfig) (*grpc.Server, error) {
	creds, err := ServerCredentials(cfg)
	if err != nil {
		return nil, fmt.Errorf("rpcx: new server: %w", err)
	}
	return grpc.NewServer(
		grpc.Creds(creds),
		grpc.UnaryInterceptor(loggingInterceptor),
	), nil
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		log.Printf("rpcx: %s failed after %s: %v", info.FullMethod, time.Since(start), err)
	}
	return resp, err
}
