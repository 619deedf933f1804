// Package summary implements the Summary type and its wire encoder
// (spec §4.7): a bounded-cursor writer emitting fixed-field-order JSON
// directly into the reply buffer, mirroring
// original_source/src/worker/summary.rs's Cursor<&mut [u8]> writer.
package summary

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/lucas-de-lima/payment-gateway/internal/wire"
)

// ProcessorSummary is one processor's {count, total amount} pair.
type ProcessorSummary struct {
	TotalRequests uint64
	TotalAmount   float32
}

// Summary is the full default/fallback pair served by GET
// /payments-summary (spec §3).
type Summary struct {
	Default  ProcessorSummary
	Fallback ProcessorSummary
}

// FromLedgerTotals converts the ledger's raw cents totals into the
// float-denominated wire shape, per the amount-precision decision in
// DESIGN.md. The only other place cents become a float again is the
// outbound processor request (internal/processor).
func FromLedgerTotals(def, fallback ledger.ProcessorTotals) Summary {
	return Summary{
		Default: ProcessorSummary{
			TotalRequests: def.TotalRequests,
			TotalAmount:   wire.AmountCentsToFloat(def.TotalCents),
		},
		Fallback: ProcessorSummary{
			TotalRequests: fallback.TotalRequests,
			TotalAmount:   wire.AmountCentsToFloat(fallback.TotalCents),
		},
	}
}

// Encode writes the fixed wire form into buf and returns the byte
// count written:
//
//	{"default":{"totalRequests":<u64>,"totalAmount":<f32>},"fallback":{"totalRequests":<u64>,"totalAmount":<f32>}}
//
// Field order is fixed per spec §4.7; buf must be large enough or
// Encode returns an error instead of silently truncating.
func Encode(buf []byte, s Summary) (int, error) {
	body := Marshal(s)
	if len(body) > len(buf) {
		return 0, fmt.Errorf("summary: buffer too small: need %d, have %d", len(body), len(buf))
	}
	return copy(buf, body), nil
}

// Marshal renders the same fixed wire form as Encode into a freshly
// allocated slice, for call sites that don't own a pre-sized buffer
// (e.g. the worker's summary reply).
func Marshal(s Summary) []byte {
	var buf bytes.Buffer
	buf.Grow(96)

	fmt.Fprintf(&buf,
		`{"default":{"totalRequests":%d,"totalAmount":%s},"fallback":{"totalRequests":%d,"totalAmount":%s}}`,
		s.Default.TotalRequests, formatAmount(s.Default.TotalAmount),
		s.Fallback.TotalRequests, formatAmount(s.Fallback.TotalAmount),
	)

	return buf.Bytes()
}

// formatAmount renders a float32 amount with the default
// floating-point formatting spec §4.7 calls for: the shortest plain
// decimal that round-trips the float32, never exponent form, and
// integral values still emit a trailing ".0" (matching Rust's {}
// Display for f32, which Go's %v/%g do not do by default).
func formatAmount(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return s
}
