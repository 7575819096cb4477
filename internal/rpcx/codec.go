// Package rpcx holds the gRPC transport plumbing shared by the
// coordinator, bank participant and client binaries: a JSON codec (the
// wire contracts in bankpb/coordpb/registry are plain tagged structs,
// not protobuf-generated messages — see DESIGN.md), dial helpers and
// TLS credential loading.
package rpcx

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec marshals the plain request/response structs used by this
// repo's hand-written ServiceDescs. Registering it under Name "json"
// lets servers decode calls sent with the "json" content-subtype, which
// every connection opened by Dial requests via DefaultCallOptions.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpcx: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpcx: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
