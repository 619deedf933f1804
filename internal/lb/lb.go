// Package lb implements the load-balancer role: a raw TCP front door
// that round-robins connections across the API role's Unix sockets and
// forwards bytes without going through net/http's request/response
// machinery. Adapted almost directly from original_source/src/lb.rs
// (tokio_uring fixed buffers, CONN_COUNT atomic, OK_RES literal),
// restructured onto blocking goroutine-per-connection net.Conn I/O
// since Go has no io_uring fixed-buffer registry.
package lb

import (
	"context"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/lucas-de-lima/payment-gateway/internal/adminhttp"
	"github.com/lucas-de-lima/payment-gateway/internal/bufpool"
	"github.com/lucas-de-lima/payment-gateway/internal/config"
	"github.com/lucas-de-lima/payment-gateway/internal/controlplane"
	"github.com/lucas-de-lima/payment-gateway/internal/metrics"
)

// healthProbeInterval bounds how stale a backend's liveness mark can
// get before the next check-up, independent of request traffic.
const healthProbeInterval = 5 * time.Second

// okResponse is written back to the client the instant a POST's first
// byte is seen, before the payload has even reached the API role.
var okResponse = []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")

// Server is the load balancer: one TCP listener, a pool of API
// backends addressed round-robin, and a fixed buffer registry shared
// across connections.
type Server struct {
	addr      string
	backends  []string
	cpAddrs   []string
	healthy   []atomic.Bool
	adminAddr string
	pool      *bufpool.Registry
	reuse     bool
	connCount atomic.Uint64
	log       zerolog.Logger
}

// New builds a Server from config.
func New(cfg config.Config, log zerolog.Logger) *Server {
	s := &Server{
		addr:      cfg.PublicAddr,
		backends:  cfg.APISockets,
		cpAddrs:   cfg.APIControlPlaneAddrs,
		adminAddr: cfg.LBAdminAddr,
		pool:      bufpool.New(cfg.BufferPoolSize, cfg.BufferSize),
		reuse:     cfg.LBReusePort,
		log:       log,
	}
	s.healthy = make([]atomic.Bool, len(s.backends))
	for i := range s.healthy {
		s.healthy[i].Store(true)
	}
	return s
}

// Run accepts TCP connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go s.probeLoop(ctx)
	go adminhttp.Serve(ctx, s.adminAddr, "lb", s.log)

	s.log.Info().Str("addr", s.addr).Strs("backends", s.backends).Msg("lb listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn().Err(err).Msg("lb accept")
				continue
			}
		}

		go s.handleConn(conn)
	}
}

func (s *Server) listen() (net.Listener, error) {
	if !s.reuse {
		return net.Listen("tcp", s.addr)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", s.addr)
}

// handleConn owns one TCP client for its lifetime: a single backend is
// picked round-robin at connection time and reused for every request
// the client sends on that connection, matching the original's
// per-connection UnixStream.
func (s *Server) handleConn(tcp net.Conn) {
	defer tcp.Close()

	if tc, ok := tcp.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	c := s.connCount.Add(1) - 1
	backend := s.backends[s.pickBackendIndex(c)]

	unixConn, err := net.Dial("unix", backend)
	if err != nil {
		s.log.Warn().Err(err).Str("backend", backend).Msg("lb dial backend")
		return
	}
	defer unixConn.Close()

	buf, idx, err := s.pool.CheckOut(c)
	if err != nil {
		s.log.Warn().Err(err).Msg("lb checkout buffer")
		return
	}
	defer s.pool.Return(idx)

	for {
		n, err := tcp.Read(buf)
		if err != nil || n == 0 {
			return
		}

		start := time.Now()

		switch buf[0] {
		case 'G':
			if err := s.handleGet(tcp, unixConn, buf, n); err != nil {
				s.log.Warn().Err(err).Msg("lb handle get")
				return
			}
			metrics.HTTPGet.Observe(float64(time.Since(start).Microseconds()))

		case 'P':
			if _, err := tcp.Write(okResponse); err != nil {
				return
			}
			if _, err := unixConn.Write(buf[:n]); err != nil {
				s.log.Warn().Err(err).Msg("lb forward post")
				return
			}
			metrics.HTTPPost.Observe(float64(time.Since(start).Microseconds()))

		default:
			s.log.Warn().Bytes("prefix", buf[:n]).Msg("lb invalid request")
		}
	}
}

// pickBackendIndex walks forward from the round-robin slot c would
// otherwise land on, skipping any backend the prober last found
// unreachable. The skip never changes the connection counter's
// cadence — it only affects which backend this one pick lands on, and
// falls back to the original slot if every backend looks unhealthy.
func (s *Server) pickBackendIndex(c uint64) int {
	n := len(s.backends)
	start := int(c % uint64(n))
	idx := start
	for i := 0; i < n; i++ {
		if idx >= len(s.healthy) || s.healthy[idx].Load() {
			return idx
		}
		idx = (idx + 1) % n
	}
	return start
}

// probeLoop periodically asks each API instance's own control-plane
// listener whether it is alive, independent of whether any traffic is
// currently flowing to it.
func (s *Server) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	s.probeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probeOnce(ctx)
		}
	}
}

func (s *Server) probeOnce(ctx context.Context) {
	for i, addr := range s.cpAddrs {
		if i >= len(s.healthy) {
			return
		}
		s.healthy[i].Store(s.checkHealth(ctx, addr, s.backends[i]))
	}
}

func (s *Server) checkHealth(ctx context.Context, cpAddr, instance string) bool {
	client, err := controlplane.Dial(cpAddr)
	if err != nil {
		return false
	}
	defer client.Close()

	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	healthy, err := client.Health(cctx, instance)
	return err == nil && healthy
}

// handleGet forwards buf to the backend, reads its reply back into the
// same buffer, and writes it straight through to the client.
func (s *Server) handleGet(tcp, unixConn net.Conn, buf []byte, n int) error {
	if _, err := unixConn.Write(buf[:n]); err != nil {
		return err
	}
	m, err := unixConn.Read(buf)
	if err != nil {
		return err
	}
	_, err = tcp.Write(buf[:m])
	return err
}
