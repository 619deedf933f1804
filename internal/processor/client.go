// Package processor implements the per-processor HTTP client and the
// latency-based selection arbiter described in spec §4.6, grounded on
// original_source/src/worker/pp_client.rs.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/lucas-de-lima/payment-gateway/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FailureLatency is the sentinel atomic latency value stored after a
// failed send (spec §4.6: "store u32::MAX into latency").
const FailureLatency uint32 = math.MaxUint32

// wireRequest is the outbound ProcessorPaymentRequest (spec §3),
// camelCase on the wire.
type wireRequest struct {
	CorrelationID string    `json:"correlationId"`
	Amount        float64   `json:"amount"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Client is one PaymentProcessorClient: an HTTP client pinned to a
// single processor plus its last-observed-latency atomic (spec §4.6
// "Per-client state").
type Client struct {
	ID         uint8
	paymentURL string
	httpClient *http.Client
	latency    atomic.Uint32
}

// NewClient builds a Client against baseURL, id being
// ledger.ProcessorDefault or ledger.ProcessorFallback. The transport
// tuning (idle conn reuse, disabled compression) echoes the teacher's
// BRUTOConnectionPool settings, reduced to the single shared
// *http.Client spec's one-scalar-per-client design calls for (see
// DESIGN.md: the teacher's heavier pool/circuit-breaker machinery is
// deliberately not carried into the arbiter).
func NewClient(id uint8, baseURL string) *Client {
	return &Client{
		ID:         id,
		paymentURL: baseURL + "/payments",
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 256,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
			},
		},
	}
}

// Latency returns the last observed send latency in microseconds,
// relaxed-equivalent (a plain atomic load; Go gives no weaker
// ordering than this).
func (c *Client) Latency() uint32 {
	return c.latency.Load()
}

// ResetLatency zeroes the latency atomic (spec §4.6 "Reset cadence").
func (c *Client) ResetLatency() uint32 {
	return c.latency.Swap(0)
}

// Send executes the per-client send procedure of spec §4.6: POST the
// processor payload, measure elapsed microseconds, store the latency
// (or FailureLatency on any non-200/transport error), and on success
// return the LedgerEntry to append.
func (c *Client) Send(ctx context.Context, correlationID string, amountCents uint64) (ledger.Entry, error) {
	requestedAt := time.Now().UTC()
	amount := float64(amountCents) / 100.0

	body, err := json.Marshal(wireRequest{
		CorrelationID: correlationID,
		Amount:        amount,
		RequestedAt:   requestedAt,
	})
	if err != nil {
		c.latency.Store(FailureLatency)
		return ledger.Entry{}, fmt.Errorf("processor %d: marshal: %w", c.ID, err)
	}

	start := time.Now()
	status, err := c.httpSend(ctx, body)
	elapsedMicros := time.Since(start).Microseconds()

	metrics.ProcessorHTTP.WithLabelValues(fmt.Sprint(c.ID)).Observe(float64(elapsedMicros))

	if err != nil || status != http.StatusOK {
		c.latency.Store(FailureLatency)
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("processor %d: %w", c.ID, err)
		}
		return ledger.Entry{}, fmt.Errorf("processor %d: status %d", c.ID, status)
	}

	c.latency.Store(clampLatency(elapsedMicros))

	return ledger.Entry{
		AmountCents:       amountCents,
		RequestedAtMicros: requestedAt.UnixMicro(),
		ProcessorID:       c.ID,
	}, nil
}

func (c *Client) httpSend(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.paymentURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// clampLatency caps an elapsed duration to uint32 range, reserving
// FailureLatency (math.MaxUint32) for the failure sentinel so that a
// genuinely slow-but-successful send is never mistaken for a failure.
func clampLatency(micros int64) uint32 {
	if micros < 0 {
		return 0
	}
	if micros >= int64(FailureLatency) {
		return FailureLatency - 1
	}
	return uint32(micros)
}
