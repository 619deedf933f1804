package controlplane

import (
	"context"

	"google.golang.org/grpc"
)

// HealthRequest/HealthReply back the LB's liveness probe against a
// given API instance (SPEC_FULL.md "Additional Operations").
type HealthRequest struct {
	Instance string `json:"instance"`
}

type HealthReply struct {
	Healthy bool `json:"healthy"`
}

// PurgeRequest/PurgeReply back the authenticated out-of-band purge
// trigger. Signature is an ed25519 signature over
// fmt.Sprintf("%s:%d", Nonce, Timestamp) under KID, verified by
// internal/keys + internal/resolver (see auth.go).
type PurgeRequest struct {
	KID       string `json:"kid"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature []byte `json:"signature"`
}

type PurgeReply struct {
	Purged bool `json:"purged"`
}

// Server is implemented by BasicServer, which both the API and the
// worker role serve.
type Server interface {
	Health(ctx context.Context, req *HealthRequest) (*HealthReply, error)
	Purge(ctx context.Context, req *PurgeRequest) (*PurgeReply, error)
}

// serviceName is this control plane's fully-qualified gRPC service
// name, used both in ServiceDesc and in the client's method paths.
const serviceName = "controlplane.ControlPlane"

// ServiceDesc is the hand-written equivalent of what
// protoc-gen-go-grpc would generate from a .proto file (see
// DESIGN.md for why no .proto codegen runs in this environment).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: healthHandler},
		{MethodName: "Purge", Handler: purgeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/controlplane/service.go",
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Health"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func purgeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PurgeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Purge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Purge"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Purge(ctx, req.(*PurgeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterServer wires srv onto an existing *grpc.Server.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}
