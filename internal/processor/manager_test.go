package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func failServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func TestSendSuccessRecordsLatencyAndLedgerEntry(t *testing.T) {
	srv := okServer()
	defer srv.Close()

	c := NewClient(1, srv.URL)
	entry, err := c.Send(context.Background(), "c1", 1050)
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), entry.AmountCents)
	assert.Equal(t, uint8(1), entry.ProcessorID)
	assert.Less(t, c.Latency(), FailureLatency)
}

func TestSendFailureSetsFailureLatencyAndNoEntry(t *testing.T) {
	srv := failServer()
	defer srv.Close()

	c := NewClient(2, srv.URL)
	_, err := c.Send(context.Background(), "c1", 1050)
	assert.Error(t, err)
	assert.Equal(t, FailureLatency, c.Latency())
}

func TestManagerPrefersDefaultWithinCutout(t *testing.T) {
	def := okServer()
	defer def.Close()
	fb := okServer()
	defer fb.Close()

	m := NewManager(def.URL, fb.URL, 100*time.Millisecond, zerolog.Nop())

	picked := m.pick()
	assert.Equal(t, m.Default, picked)
}

func TestManagerSwitchesToFallbackWhenDefaultExceedsCutout(t *testing.T) {
	def := okServer()
	defer def.Close()
	fb := okServer()
	defer fb.Close()

	m := NewManager(def.URL, fb.URL, 0, zerolog.Nop())
	m.Default.latency.Store(500)
	m.Fallback.latency.Store(100)

	assert.Equal(t, m.Fallback, m.pick())
}

func TestManagerResetLoopZeroesBothLatencies(t *testing.T) {
	def := okServer()
	defer def.Close()
	fb := okServer()
	defer fb.Close()

	m := NewManager(def.URL, fb.URL, 0, zerolog.Nop())
	m.Default.latency.Store(500)
	m.Fallback.latency.Store(500)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartResetLoop(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.Default.Latency() == 0 && m.Fallback.Latency() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestManagerSendUsesPickedClient(t *testing.T) {
	def := failServer()
	defer def.Close()
	fb := okServer()
	defer fb.Close()

	m := NewManager(def.URL, fb.URL, 0, zerolog.Nop())
	// force selection toward fallback
	m.Default.latency.Store(FailureLatency)

	entry, err := m.Send(context.Background(), "c1", 2000)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), entry.ProcessorID)
}
