// Package bufpool implements the LB's fixed buffer registry (spec
// §4.2): a pool of BUFFER_POOL_SIZE fixed-size buffers, checked out by
// connection-counter index rather than a free-list, mirroring
// original_source/src/lb.rs's tokio_uring FixedBufRegistry. Go's net
// poller has no io_uring fixed-buffer registration, so this keeps the
// index-addressed checkout discipline without the kernel registration
// step.
package bufpool

import (
	"fmt"
	"sync"
)

// Registry is a fixed-size array of byte buffers, each checked out by
// index and returned when a connection finishes.
type Registry struct {
	mu      sync.Mutex
	buffers [][]byte
	inUse   []bool
}

// New allocates poolSize buffers of bufSize bytes each.
func New(poolSize, bufSize int) *Registry {
	r := &Registry{
		buffers: make([][]byte, poolSize),
		inUse:   make([]bool, poolSize),
	}
	for i := range r.buffers {
		r.buffers[i] = make([]byte, bufSize)
	}
	return r
}

// CheckOut returns the buffer at connCounter % len(pool). A
// "buf unavailable" error — spec §4.2/§7, "fatal for the connection" —
// is returned if that slot is already checked out, which under the
// spec's small-concurrency assumption should not happen in practice.
func (r *Registry) CheckOut(connCounter uint64) ([]byte, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(connCounter % uint64(len(r.buffers)))
	if r.inUse[idx] {
		return nil, 0, fmt.Errorf("bufpool: buf %d unavailable", idx)
	}
	r.inUse[idx] = true
	return r.buffers[idx], idx, nil
}

// Return releases the buffer at idx back to the pool.
func (r *Registry) Return(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inUse[idx] = false
}
