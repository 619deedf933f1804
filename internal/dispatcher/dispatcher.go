// Package dispatcher implements the bounded pool of HTTP dispatcher
// workers described in spec §4.4/§4.6: each worker loops
// recv -> manager.Send -> on-error re-enqueue, with no retry cap.
package dispatcher

import (
	"context"

	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/lucas-de-lima/payment-gateway/internal/metrics"
	"github.com/lucas-de-lima/payment-gateway/internal/wire"
	"github.com/rs/zerolog"
)

// Sender is the subset of processor.Manager the dispatcher depends on,
// kept as an interface so tests can substitute a fake arbiter.
type Sender interface {
	Send(ctx context.Context, correlationID string, amountCents uint64) (ledger.Entry, error)
}

// Ledger is the subset of ledger.Ledger the dispatcher depends on.
type Ledger interface {
	Insert(entry ledger.Entry)
}

// Pool is the unbounded request channel plus its fixed-size consumer
// goroutines (spec §4.4 step 3-4: "constructs a PaymentsManager ...
// spawns HTTP_WORKERS dispatcher workers").
type Pool struct {
	requests chan wire.PaymentRequest
	sender   Sender
	ledger   Ledger
	log      zerolog.Logger
}

// NewPool builds a Pool. The channel is unbounded by design (spec §5:
// "Backpressure is absent by design; sustained overload grows the
// queue") — backed here by a generously buffered channel, since Go
// channels are not literally unbounded; a dedicated unbounded queue
// would need its own goroutine to drain into a bounded channel, adding
// complexity spec's MPMC channel doesn't call for at this scale.
func NewPool(sender Sender, ledger Ledger, log zerolog.Logger) *Pool {
	return &Pool{
		requests: make(chan wire.PaymentRequest, 1<<20),
		sender:   sender,
		ledger:   ledger,
		log:      log,
	}
}

// Enqueue submits a payment for dispatch (spec §4.4: "Payments are
// enqueued onto requests").
func (p *Pool) Enqueue(req wire.PaymentRequest) {
	p.requests <- req
}

// Start spawns workers dispatcher goroutines, each running the
// recv -> send -> requeue-on-error loop until ctx is cancelled.
func (p *Pool) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.requests:
			p.handle(ctx, req)
		}
	}
}

// handle is one recv -> send -> (insert | requeue) cycle. Failure
// handling has no retry cap per spec §4.6: a failed send re-enqueues
// the original PaymentRequest onto the tail of the same channel.
func (p *Pool) handle(ctx context.Context, req wire.PaymentRequest) {
	entry, err := p.sender.Send(ctx, req.CorrelationID, req.AmountCents)
	if err != nil {
		p.log.Warn().Err(err).Str("correlation_id", req.CorrelationID).Msg("dispatch_failed_requeue")
		metrics.DispatchRequeues.Inc()
		p.requests <- req
		return
	}

	p.ledger.Insert(entry)
}
