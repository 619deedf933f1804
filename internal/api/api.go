// Package api implements the API role: it accepts connections from the
// load balancer (or directly, in single-process test setups), parses
// requests out of a fixed-size buffer without net/http, and forwards
// work to the worker role over internal/wire framing. Grounded on
// original_source/src/api/mod.rs (byte-prefix dispatch, fixed RFC3339
// offset arithmetic, `{`/`}` JSON scan) and src/api/payment.rs /
// src/api/summary.rs (per-request UnixStream to the worker).
package api

import (
	"bytes"
	"context"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/lucas-de-lima/payment-gateway/internal/adminhttp"
	"github.com/lucas-de-lima/payment-gateway/internal/config"
	"github.com/lucas-de-lima/payment-gateway/internal/controlplane"
	"github.com/lucas-de-lima/payment-gateway/internal/metrics"
	"github.com/lucas-de-lima/payment-gateway/internal/wire"
)

const (
	bufSize     = 512
	rfc3339Size = 24
	fromOffset  = 27
	toOffset    = fromOffset + rfc3339Size + 2 + 2
)

var rfc3339Layouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	time.RFC3339Nano,
}

var emptyResponse = []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is one API instance.
type Server struct {
	listenNetwork string
	listenAddr    string
	workerSocket  string
	controlPlane  string
	adminAddr     string
	log           zerolog.Logger
}

// New builds a Server from config. listenAddr may be overridden
// (cfg.APIListenAddr is the default single-instance socket; in a
// multi-instance setup each cmd/gateway api process is given its own
// address through the --listen flag).
func New(cfg config.Config, listenAddr string, log zerolog.Logger) *Server {
	return &Server{
		listenNetwork: cfg.APIListenNetwork,
		listenAddr:    listenAddr,
		workerSocket:  cfg.WorkerSocket,
		controlPlane:  cfg.APIControlPlane,
		adminAddr:     cfg.APIAdminAddr,
		log:           log,
	}
}

// Run accepts connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	stopControlPlane, err := s.startControlPlane()
	if err != nil {
		return err
	}
	defer stopControlPlane()

	go adminhttp.Serve(ctx, s.adminAddr, "api", s.log)

	s.log.Info().Str("network", s.listenNetwork).Str("addr", s.listenAddr).Msg("api listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn().Err(err).Msg("api accept")
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// startControlPlane runs a bare health-only control-plane listener so
// the LB can probe this instance's liveness independent of whether
// traffic is currently flowing to it (SPEC_FULL.md "Additional
// Operations"). An API instance never accepts Purge; that stays the
// worker's authority.
func (s *Server) startControlPlane() (func(), error) {
	lis, err := net.Listen("tcp", s.controlPlane)
	if err != nil {
		return nil, err
	}

	srv := controlplane.NewBasicServer(nil, nil)
	grpcServer := grpc.NewServer()
	controlplane.RegisterServer(grpcServer, srv)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			s.log.Warn().Err(err).Msg("api control plane serve")
		}
	}()

	s.log.Info().Str("addr", s.controlPlane).Msg("api control plane listening")
	return grpcServer.GracefulStop, nil
}

func (s *Server) listen() (net.Listener, error) {
	if s.listenNetwork == "unix" {
		_ = os.Remove(s.listenAddr)
		return net.Listen("unix", s.listenAddr)
	}
	return net.Listen(s.listenNetwork, s.listenAddr)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, bufSize)

	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}

		switch buf[0] {
		case 'G':
			s.handleSummary(conn, buf, n)
		case 'P':
			if n > 7 {
				switch buf[7] {
				case 'a':
					s.handlePayment(conn, buf, n)
				case 'u':
					s.handlePurge(conn)
				default:
					s.log.Warn().Bytes("request", buf[:n]).Msg("api invalid request")
				}
			}
		default:
			s.log.Warn().Bytes("request", buf[:n]).Msg("api invalid request")
		}
	}
}

func (s *Server) handleSummary(conn net.Conn, buf []byte, n int) {
	start := time.Now()
	from, to := parseSummaryQuery(buf, n)

	worker, err := net.Dial("unix", s.workerSocket)
	if err != nil {
		s.log.Warn().Err(err).Msg("api dial worker for summary")
		return
	}
	defer worker.Close()

	req := wire.Request{Tag: wire.TagSummary, FromMicros: from, ToMicros: to}
	if err := wire.WriteFrame(worker, req); err != nil {
		s.log.Warn().Err(err).Msg("api send summary request")
		return
	}

	reply := make([]byte, 256)
	m, err := worker.Read(reply)
	if err != nil {
		s.log.Warn().Err(err).Msg("api read summary reply")
		return
	}

	writeJSONResponse(conn, reply[:m])
	metrics.HTTPGet.Observe(float64(time.Since(start).Microseconds()))
}

func (s *Server) handlePayment(conn net.Conn, buf []byte, n int) {
	start := time.Now()

	if _, err := conn.Write(emptyResponse); err != nil {
		return
	}
	metrics.HTTPPost.Observe(float64(time.Since(start).Microseconds()))

	jsonStart := bytes.IndexByte(buf[:n], '{')
	jsonEnd := bytes.LastIndexByte(buf[:n], '}')
	if jsonStart < 0 || jsonEnd < jsonStart {
		s.log.Warn().Msg("api payment: no json body found in request")
		return
	}

	body := make([]byte, jsonEnd-jsonStart+1)
	copy(body, buf[jsonStart:jsonEnd+1])

	go s.forwardPayment(body)
}

func (s *Server) forwardPayment(body []byte) {
	var req struct {
		CorrelationID string  `json:"correlationId"`
		Amount        float64 `json:"amount"`
	}
	if err := jsonAPI.Unmarshal(body, &req); err != nil {
		s.log.Warn().Err(err).Msg("api payment: decode body")
		return
	}

	worker, err := net.Dial("unix", s.workerSocket)
	if err != nil {
		s.log.Warn().Err(err).Msg("api dial worker for payment")
		return
	}
	defer worker.Close()

	amountCents := uint64(math.Round(req.Amount * 100))

	wireReq := wire.Request{
		Tag: wire.TagPayment,
		Payment: wire.PaymentRequest{
			CorrelationID: req.CorrelationID,
			AmountCents:   amountCents,
		},
	}
	if err := wire.WriteFrame(worker, wireReq); err != nil {
		s.log.Warn().Err(err).Msg("api forward payment")
	}
}

func (s *Server) handlePurge(conn net.Conn) {
	if _, err := conn.Write(emptyResponse); err != nil {
		return
	}

	worker, err := net.Dial("unix", s.workerSocket)
	if err != nil {
		s.log.Warn().Err(err).Msg("api dial worker for purge")
		return
	}
	defer worker.Close()

	if err := wire.WriteFrame(worker, wire.Request{Tag: wire.TagPurgeDB}); err != nil {
		s.log.Warn().Err(err).Msg("api forward purge")
	}
}

// parseSummaryQuery reads the RFC3339 "from"/"to" bounds out of their
// fixed byte offsets in a raw "GET /payments-summary?from=...&to=..."
// request line. A bound that fails to parse (or is absent) defaults to
// the widest possible range, matching the distant-past/distant-future
// defaults of the reference implementation.
func parseSummaryQuery(buf []byte, n int) (fromMicros, toMicros int64) {
	toMicros = math.MaxInt64

	if n >= fromOffset+rfc3339Size {
		if t, ok := parseRFC3339(string(buf[fromOffset : fromOffset+rfc3339Size])); ok {
			fromMicros = t.UnixMicro()
		}
	}
	if n >= toOffset+rfc3339Size {
		if t, ok := parseRFC3339(string(buf[toOffset : toOffset+rfc3339Size])); ok {
			toMicros = t.UnixMicro()
		}
	}
	return fromMicros, toMicros
}

func parseRFC3339(s string) (time.Time, bool) {
	for _, layout := range rfc3339Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func writeJSONResponse(conn net.Conn, body []byte) {
	header := "HTTP/1.1 200 OK\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	bufs := net.Buffers{[]byte(header), body}
	_, _ = bufs.WriteTo(conn)
}
