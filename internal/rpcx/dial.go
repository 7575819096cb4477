package rpcx

import (
	"fmt"

	"google.golang.org/grpc"
)

// DefaultCallOptions forces every unary call onto the JSON codec
// registered in codec.go, regardless of what the caller's grpc version
// would otherwise pick as the default content-subtype.
func DefaultCallOptions() grpc.CallOption {
	return grpc.CallContentSubtype(codecName)
}

// Dial opens a client connection to addr using the given TLS config.
// A nil *TLSConfig (or one with no certificate material) falls back to
// plaintext — see tls.go.
func Dial(addr string, tlsCfg *TLSConfig) (*grpc.ClientConn, error) {
	creds, err := clientCredentials(tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("rpcx: dial %s: %w", addr, err)
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(DefaultCallOptions()),
	)
	if err != nil {
		return nil, fmt.Errorf("rpcx: dial %s: %w", addr, err)
	}
	return conn, nil
}
