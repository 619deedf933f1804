package processor

import (
	"context"
	"time"

	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/rs/zerolog"
)

// Manager is the PaymentsManager of spec §4.6: it owns both
// processor clients and arbitrates between them with a latency-cutout
// policy, refreshed on a reset cadence.
type Manager struct {
	Default  *Client
	Fallback *Client

	cutoutMicros uint32
	log          zerolog.Logger
}

// NewManager builds a Manager. cutout is micros_cutout (spec §4.6,
// default 100ms via internal/config).
func NewManager(defaultURL, fallbackURL string, cutout time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		Default:      NewClient(ledger.ProcessorDefault, defaultURL),
		Fallback:     NewClient(ledger.ProcessorFallback, fallbackURL),
		cutoutMicros: uint32(cutout.Microseconds()),
		log:          log,
	}
}

// Send runs the selection policy (spec §4.6 "On each send(req)") and
// dispatches to the chosen client.
func (m *Manager) Send(ctx context.Context, correlationID string, amountCents uint64) (ledger.Entry, error) {
	return m.pick().Send(ctx, correlationID, amountCents)
}

// pick implements "choose default iff d <= f + micros_cutout, else
// fallback". The sum is taken in 64 bits so that a fallback holding
// FailureLatency cannot wrap around.
func (m *Manager) pick() *Client {
	d := m.Default.Latency()
	f := m.Fallback.Latency()

	if uint64(d) <= uint64(f)+uint64(m.cutoutMicros) {
		return m.Default
	}
	return m.Fallback
}

// StartResetLoop runs the background reset task of spec §4.6: every
// interval, atomically zero both clients' latency so a stale high
// measurement can't permanently pin the decision. It returns
// immediately; the loop runs until ctx is cancelled.
func (m *Manager) StartResetLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				before := m.Default.ResetLatency()
				beforeFallback := m.Fallback.ResetLatency()
				m.log.Info().
					Uint32("default_latency_before_reset", before).
					Uint32("fallback_latency_before_reset", beforeFallback).
					Msg("reset")
			}
		}
	}()
}
