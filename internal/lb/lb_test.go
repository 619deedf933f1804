package lb

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lucas-de-lima/payment-gateway/internal/config"
)

// fakeBackend accepts a single Unix connection and echoes back a fixed
// reply for GET-style traffic, recording everything it's sent.
func fakeBackend(t *testing.T, socket string) (received chan []byte) {
	t.Helper()

	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)

	received = make(chan []byte, 16)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if err != nil || n == 0 {
				return
			}
			got := make([]byte, n)
			copy(got, buf[:n])
			received <- got

			if got[0] == 'G' {
				_, _ = conn.Write([]byte("summary-reply"))
			}
		}
	}()

	return received
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestGetIsForwardedAndReplyReturnedToClient(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "api0.sock")
	fakeBackend(t, socket)

	addr := freePort(t)
	srv := New(config.Config{
		PublicAddr:     addr,
		APISockets:     []string{socket},
		BufferPoolSize: 4,
		BufferSize:     512,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Run(ctx)
	waitForListener(t, addr)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /payments-summary HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "summary-reply", string(buf[:n]))
}

func TestPostGetsImmediateOKThenIsForwarded(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "api0.sock")
	received := fakeBackend(t, socket)

	addr := freePort(t)
	srv := New(config.Config{
		PublicAddr:     addr,
		APISockets:     []string{socket},
		BufferPoolSize: 4,
		BufferSize:     512,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Run(ctx)
	waitForListener(t, addr)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	payload := "POST /payments HTTP/1.1\r\n\r\n{}"
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)

	buf := make([]byte, 128)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "200 OK")

	select {
	case got := <-received:
		require.Equal(t, payload, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received forwarded POST")
	}
}

func TestConnectionsRoundRobinAcrossBackends(t *testing.T) {
	dir := t.TempDir()
	socketA := filepath.Join(dir, "api0.sock")
	socketB := filepath.Join(dir, "api1.sock")
	recvA := fakeBackend(t, socketA)
	recvB := fakeBackend(t, socketB)

	addr := freePort(t)
	srv := New(config.Config{
		PublicAddr:     addr,
		APISockets:     []string{socketA, socketB},
		BufferPoolSize: 4,
		BufferSize:     512,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Run(ctx)
	waitForListener(t, addr)

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		_, err = conn.Write([]byte("POST /payments HTTP/1.1\r\n\r\n{}"))
		require.NoError(t, err)
		buf := make([]byte, 64)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = conn.Read(buf)
		require.NoError(t, err)
		conn.Close()
	}

	requireReceived(t, recvA)
	requireReceived(t, recvB)
}

func TestPickBackendIndexSkipsUnhealthyBackend(t *testing.T) {
	srv := New(config.Config{
		PublicAddr:     freePort(t),
		APISockets:     []string{"a", "b", "c"},
		BufferPoolSize: 4,
		BufferSize:     512,
	}, zerolog.Nop())

	srv.healthy[1].Store(false)

	require.Equal(t, 0, srv.pickBackendIndex(0))
	require.Equal(t, 2, srv.pickBackendIndex(1))
	require.Equal(t, 2, srv.pickBackendIndex(2))

	for i := range srv.healthy {
		srv.healthy[i].Store(false)
	}
	require.Equal(t, 1, srv.pickBackendIndex(1))
}

func requireReceived(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected backend to receive a forwarded request")
	}
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("lb never started listening on %s", addr)
}
