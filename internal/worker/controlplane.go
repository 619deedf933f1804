package worker

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/lucas-de-lima/payment-gateway/internal/controlplane"
	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
)

// startControlPlaneServer runs the control-plane gRPC server that
// answers Health probes and lets operators trigger a purge, verified
// when auth is non-nil. The LB's health prober targets the API
// instances' listeners, not this one.
// The worker role is the only one that owns the ledger, so it is the
// only role that can satisfy a real PurgeFunc.
func startControlPlaneServer(addr string, store *ledger.Ledger, auth *controlplane.Authenticator, log zerolog.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("worker: control plane listen: %w", err)
	}

	srv := controlplane.NewBasicServer(auth, func(context.Context) error {
		store.Purge()
		return nil
	})

	grpcServer := grpc.NewServer()
	controlplane.RegisterServer(grpcServer, srv)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Warn().Err(err).Msg("worker control plane serve")
		}
	}()

	log.Info().Str("addr", addr).Msg("worker control plane listening")

	return grpcServer.GracefulStop, nil
}
