// Package ledger implements the worker's volatile, append-only payment
// ledger (spec §4.5): a contiguous slice behind a readers-writer lock,
// ordered nondecreasingly by RequestedAtMicros, with a binary-search
// range query over insertion points. There is no separate scan: under
// a transient ordering inversion the search still lands on a valid
// insertion point, so only entries next to a range edge can be
// misclassified.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/lucas-de-lima/payment-gateway/internal/metrics"
)

// Processor ids, fixed end-to-end (wire, ledger, summary) per the
// "processor ID space" decision in SPEC_FULL.md.
const (
	ProcessorDefault  uint8 = 1
	ProcessorFallback uint8 = 2
)

// initialCapacity avoids slice growth under load (spec §4.5).
const initialCapacity = 100_000

// Entry is one processor-acknowledged payment (spec §3 LedgerEntry).
type Entry struct {
	AmountCents       uint64
	RequestedAtMicros int64
	ProcessorID       uint8
}

// ProcessorTotals is the per-processor fold result backing a Summary
// (count, sum of cents).
type ProcessorTotals struct {
	TotalRequests uint64
	TotalCents    uint64
}

// Ledger is the worker's single shared payment log.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty Ledger pre-sized per spec §4.5.
func New() *Ledger {
	return &Ledger{entries: make([]Entry, 0, initialCapacity)}
}

// Insert appends entry under an exclusive lock. Amortized O(1).
func (l *Ledger) Insert(entry Entry) {
	start := time.Now()

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	metrics.LedgerInsert.Observe(float64(time.Since(start).Nanoseconds()))
}

// Range returns the [ProcessorDefault, ProcessorFallback] totals for
// every entry with from <= RequestedAtMicros <= to (inclusive on both
// ends, spec §4.5). from > to yields zero totals, not an error.
func (l *Ledger) Range(from, to int64) (defaultTotals, fallbackTotals ProcessorTotals) {
	start := time.Now()
	defer func() {
		metrics.LedgerSelect.Observe(float64(time.Since(start).Nanoseconds()))
	}()

	if from > to {
		return ProcessorTotals{}, ProcessorTotals{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	lo := searchStart(l.entries, from)
	hi := searchEnd(l.entries, to)

	if lo >= hi {
		return ProcessorTotals{}, ProcessorTotals{}
	}

	for _, e := range l.entries[lo:hi] {
		switch e.ProcessorID {
		case ProcessorDefault:
			defaultTotals.TotalRequests++
			defaultTotals.TotalCents += e.AmountCents
		case ProcessorFallback:
			fallbackTotals.TotalRequests++
			fallbackTotals.TotalCents += e.AmountCents
		}
	}

	return defaultTotals, fallbackTotals
}

// Purge empties the ledger under an exclusive lock.
func (l *Ledger) Purge() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}

// searchStart finds the first index with RequestedAtMicros >= from —
// the insertion point on a miss, the exact match's index on a hit.
// sort.Search already implements "insertion point on miss" directly,
// so unlike the original's binary_search_by_key (which distinguishes
// Ok/Err), one call covers both the exact-match and insertion-point
// cases spec §4.5 describes.
func searchStart(entries []Entry, from int64) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].RequestedAtMicros >= from
	})
}

// searchEnd finds one index past the last entry with
// RequestedAtMicros <= to (i.e. the first index with
// RequestedAtMicros > to) — "one past on exact hit" per spec §4.5.
func searchEnd(entries []Entry, to int64) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].RequestedAtMicros > to
	})
}
