package controlplane

import (
	"context"
	"fmt"
)

// PurgeFunc performs the authenticated purge once Verify has already
// accepted the request's signature. Roles that don't own the ledger
// (the API role) supply no PurgeFunc (nil), and Purge is then rejected.
type PurgeFunc func(ctx context.Context) error

// BasicServer is the Server implementation shared by every role: it
// always answers Health affirmatively (reaching the RPC at all proves
// liveness) and delegates Purge to an authenticator + a role-supplied
// PurgeFunc.
type BasicServer struct {
	auth  *Authenticator
	purge PurgeFunc
}

// NewBasicServer builds a BasicServer. A nil purge makes every Purge
// fail before any signature check. A nil auth skips Verify, so with a
// non-nil purge the purge runs without signature verification.
func NewBasicServer(auth *Authenticator, purge PurgeFunc) *BasicServer {
	return &BasicServer{auth: auth, purge: purge}
}

// Health always reports healthy: a response at all means the gRPC
// server (and therefore the process) is accepting connections.
func (s *BasicServer) Health(_ context.Context, req *HealthRequest) (*HealthReply, error) {
	return &HealthReply{Healthy: true}, nil
}

// Purge verifies req's signature (when an Authenticator is
// configured) and then runs the role's PurgeFunc.
func (s *BasicServer) Purge(ctx context.Context, req *PurgeRequest) (*PurgeReply, error) {
	if s.purge == nil {
		return nil, fmt.Errorf("controlplane: purge not supported on this role")
	}

	if s.auth != nil {
		if err := s.auth.Verify(ctx, req); err != nil {
			return nil, err
		}
	}

	if err := s.purge(ctx); err != nil {
		return nil, err
	}

	return &PurgeReply{Purged: true}, nil
}
