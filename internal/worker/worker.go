// Package worker implements the worker role: it owns the payment
// ledger, the dispatcher pool, and the latency-based processor
// arbiter, and answers the API role's Summary/Payment/PurgeDb frames
// over a Unix socket. Grounded on original_source/src/db.rs (Store),
// src/worker/pp_client.rs (PaymentsManager) and src/worker/summary.rs
// (raw JSON summary payload written directly back on the connection).
package worker

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucas-de-lima/payment-gateway/internal/adminhttp"
	"github.com/lucas-de-lima/payment-gateway/internal/config"
	"github.com/lucas-de-lima/payment-gateway/internal/controlplane"
	"github.com/lucas-de-lima/payment-gateway/internal/dispatcher"
	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/lucas-de-lima/payment-gateway/internal/processor"
	"github.com/lucas-de-lima/payment-gateway/internal/summary"
	"github.com/lucas-de-lima/payment-gateway/internal/wire"
)

// Server is the worker role.
type Server struct {
	socket           string
	controlPlaneAddr string
	adminAddr        string
	auth             *controlplane.Authenticator
	ledger           *ledger.Ledger
	dispatcher       *dispatcher.Pool
	processors       *processor.Manager
	httpWorkers      int
	resetInterval    time.Duration
	log              zerolog.Logger
}

// New wires up a worker from config. auth (nil-able) authenticates
// control-plane Purge requests; cmd/gateway builds it from the
// configured keys file.
func New(cfg config.Config, auth *controlplane.Authenticator, log zerolog.Logger) *Server {
	store := ledger.New()
	manager := processor.NewManager(cfg.ProcessorDefault, cfg.ProcessorFallback, cfg.ProcessorCutout, log)
	pool := dispatcher.NewPool(manager, store, log)

	return &Server{
		socket:           cfg.WorkerSocket,
		controlPlaneAddr: cfg.ControlPlaneAddr,
		adminAddr:        cfg.WorkerAdminAddr,
		auth:             auth,
		ledger:           store,
		dispatcher:       pool,
		processors:       manager,
		httpWorkers:      cfg.HTTPWorkers,
		resetInterval:    cfg.ResetTimeout,
		log:              log,
	}
}

// Run starts the dispatcher pool, the latency reset loop, the
// control-plane gRPC server, and the UDS accept loop. It blocks until
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.dispatcher.Start(ctx, s.httpWorkers)
	s.processors.StartResetLoop(ctx, s.resetInterval)

	cpServer, err := s.startControlPlane()
	if err != nil {
		return err
	}
	defer cpServer()

	go adminhttp.Serve(ctx, s.adminAddr, "worker", s.log)

	_ = os.Remove(s.socket)
	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info().Str("socket", s.socket).Int("workers", s.httpWorkers).Msg("worker listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn().Err(err).Msg("worker accept")
				continue
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := wire.ReadFrame(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("worker read frame")
		return
	}

	switch req.Tag {
	case wire.TagSummary:
		s.handleSummary(conn, req)
	case wire.TagPayment:
		s.dispatcher.Enqueue(req.Payment)
	case wire.TagPurgeDB:
		s.ledger.Purge()
	default:
		s.log.Warn().Uint8("tag", uint8(req.Tag)).Msg("worker unknown request tag")
	}
}

func (s *Server) handleSummary(conn net.Conn, req wire.Request) {
	def, fallback := s.ledger.Range(req.FromMicros, req.ToMicros)
	sum := summary.FromLedgerTotals(def, fallback)

	body := summary.Marshal(sum)
	if _, err := conn.Write(body); err != nil {
		s.log.Warn().Err(err).Msg("worker write summary reply")
	}
}

// startControlPlane runs the control-plane gRPC server as a
// goroutine and returns a stop function.
func (s *Server) startControlPlane() (func(), error) {
	return startControlPlaneServer(s.controlPlaneAddr, s.ledger, s.auth, s.log)
}
