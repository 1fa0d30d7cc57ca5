package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// JSONCodec marshals the plain Go request and response structs of this package. It
// replaces Connect's protobuf-only "json" codec under the same name, so clients send
// application/json.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
