// Package controlplane implements the internal gRPC control channel
// described in SPEC_FULL.md: LB-side liveness probing of API
// instances, and an authenticated out-of-band PurgeDb trigger for
// operators. It uses grpc's codec extension point with a plain JSON
// encoding instead of protobuf-generated messages — see DESIGN.md for
// why protobuf itself is not hand-authored here.
package controlplane

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype this service negotiates:
// requests are sent as "application/grpc+json".
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
