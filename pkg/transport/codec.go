package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated via grpc.CallContentSubtype/grpc's content-type
// framing so both sides agree to exchange JSON instead of protobuf wire
// bytes, per SPEC_FULL.md §4.5: no protoc-generated stubs, since the whole
// service is the single generic Dispatch(Envelope) RPC.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
