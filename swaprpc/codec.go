package swaprpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// codecName is the content subtype of the swap service.
const codecName = "json"

// codec marshals the messages of the swap service as JSON.
type codec struct{}

var _ encoding.Codec = codec{}

// Marshal implements encoding.Codec.
func (codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (codec) Name() string {
	return codecName
}

// ServerOption returns the option a grpc server needs to serve the swap
// service.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(codec{})
}

// DialOption returns the option a client connection needs to call the swap
// service.
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{}))
}
