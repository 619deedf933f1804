// Package metrics wraps the prometheus histograms this system exposes,
// one per metrics.histogram!(...) call site in the reference
// implementation (original_source/src/lb.rs, src/api/mod.rs,
// src/worker/pp_client.rs, src/db.rs).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPGet mirrors "http.get" (lb.rs, api/mod.rs): handler time for
	// GET /payments-summary, in microseconds.
	HTTPGet = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "http_get_microseconds",
		Help: "http handler time for GET requests",
		Buckets: prometheus.ExponentialBuckets(10, 2, 16),
	})

	// HTTPPost mirrors "http.post": handler time for POST /payments and
	// POST /purge-payments, in microseconds.
	HTTPPost = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "http_post_microseconds",
		Help:    "http handler time for POST requests",
		Buckets: prometheus.ExponentialBuckets(10, 2, 16),
	})

	// ProcessorHTTP mirrors "pp_http" (worker/pp_client.rs): elapsed
	// microseconds of a single processor send, labeled by processor id.
	ProcessorHTTP = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_processor_http_microseconds",
		Help:    "payment processor http time",
		Buckets: prometheus.ExponentialBuckets(100, 2, 16),
	}, []string{"processor"})

	// LedgerInsert mirrors "db.insert" (db.rs): ledger append time, in
	// nanoseconds (the append itself is sub-microsecond).
	LedgerInsert = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_insert_nanoseconds",
		Help:    "ledger insert time",
		Buckets: prometheus.ExponentialBuckets(50, 2, 16),
	})

	// LedgerSelect mirrors "db.select": range-query fold time, in
	// nanoseconds.
	LedgerSelect = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_select_nanoseconds",
		Help:    "ledger range query time",
		Buckets: prometheus.ExponentialBuckets(50, 2, 20),
	})

	// DispatchRequeues counts PaymentRequest re-enqueues after a failed
	// processor send (spec §4.6 "Failure handling").
	DispatchRequeues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_requeue_total",
		Help: "payments re-enqueued after a failed processor send",
	})
)
