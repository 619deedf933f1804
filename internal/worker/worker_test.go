package worker

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lucas-de-lima/payment-gateway/internal/config"
	"github.com/lucas-de-lima/payment-gateway/internal/wire"
)

func okProcessor(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func startWorker(t *testing.T) (socket string, cfg config.Config) {
	t.Helper()

	dflt := okProcessor(t)
	t.Cleanup(dflt.Close)
	fallback := okProcessor(t)
	t.Cleanup(fallback.Close)

	dir := t.TempDir()
	socket = filepath.Join(dir, "worker.sock")

	cfg = config.Config{
		ProcessorDefault:  dflt.URL,
		ProcessorFallback: fallback.URL,
		ProcessorCutout:   100 * time.Millisecond,
		ResetTimeout:      time.Hour,
		HTTPWorkers:       4,
		WorkerSocket:      socket,
		ControlPlaneAddr:  freeTCPAddr(t),
	}

	srv := New(cfg, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go srv.Run(ctx)

	waitForSocket(t, socket)

	return socket, cfg
}

func waitForSocket(t *testing.T, socket string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker never started listening on %s", socket)
}

func TestPaymentThenSummaryReflectsIt(t *testing.T) {
	socket, _ := startWorker(t)

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	err = wire.WriteFrame(conn, wire.Request{
		Tag: wire.TagPayment,
		Payment: wire.PaymentRequest{
			CorrelationID: "corr-1",
			AmountCents:   1500,
		},
	})
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		summaryConn, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		defer summaryConn.Close()

		err = wire.WriteFrame(summaryConn, wire.Request{Tag: wire.TagSummary, FromMicros: 0, ToMicros: 1 << 62})
		if err != nil {
			return false
		}

		buf := make([]byte, 512)
		summaryConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := summaryConn.Read(buf)
		if err != nil {
			return false
		}

		var decoded struct {
			Default struct {
				TotalRequests int `json:"totalRequests"`
			} `json:"default"`
		}
		if err := json.Unmarshal(buf[:n], &decoded); err != nil {
			return false
		}
		return decoded.Default.TotalRequests == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPurgeDbClearsTheLedger(t *testing.T) {
	socket, _ := startWorker(t)

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, wire.Request{
		Tag:     wire.TagPayment,
		Payment: wire.PaymentRequest{CorrelationID: "corr-1", AmountCents: 500},
	}))
	conn.Close()

	require.Eventually(t, func() bool {
		return summaryTotalRequests(t, socket) == 1
	}, 2*time.Second, 20*time.Millisecond)

	purgeConn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(purgeConn, wire.Request{Tag: wire.TagPurgeDB}))
	purgeConn.Close()

	require.Eventually(t, func() bool {
		return summaryTotalRequests(t, socket) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func summaryTotalRequests(t *testing.T, socket string) int {
	t.Helper()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return -1
	}
	defer conn.Close()

	if err := wire.WriteFrame(conn, wire.Request{Tag: wire.TagSummary, FromMicros: 0, ToMicros: 1 << 62}); err != nil {
		return -1
	}

	buf := make([]byte, 512)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	n, err := conn.Read(buf)
	if err != nil {
		return -1
	}

	var decoded struct {
		Default struct {
			TotalRequests int `json:"totalRequests"`
		} `json:"default"`
	}
	if err := json.Unmarshal(buf[:n], &decoded); err != nil {
		return -1
	}
	return decoded.Default.TotalRequests
}
