// Package correlator implements the outstanding-request map described in
// spec.md §4.4: it assigns per-connection monotonic request_id values,
// matches inbound Response packets to the waiter that is blocked on the
// corresponding outbound Request, and resolves every pending waiter to
// exactly one of {response, timeout, close}.
package correlator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coregx/conduit/packet"
)

// outcome is what a pending waiter's channel ultimately carries: either
// a delivered response, or a terminal error (timeout/close).
type outcome struct {
	resp *packet.Response
	err  error
}

// Correlator tracks requests in flight on a single connection.
type Correlator struct {
	mu      sync.Mutex
	pending map[uint64]chan outcome
	nextID  atomic.Uint64
	clock   clockwork.Clock
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithClock injects the clock used for timeouts. Tests use this with a
// clockwork.FakeClock to make timeout behavior deterministic; production
// code should leave it unset (a real clock is the default).
func WithClock(clock clockwork.Clock) Option {
	return func(c *Correlator) { c.clock = clock }
}

// New returns an empty Correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{
		pending: make(map[uint64]chan outcome),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NextID returns the next monotonically increasing request_id for this
// connection. IDs start at 1.
func (c *Correlator) NextID() uint64 { return c.nextID.Add(1) }

// Register opens a pending entry for id. Callers must register before
// the corresponding frame is sent on the wire (not after), so that a
// response racing ahead of the caller reaching Wait is never lost — the
// same ordering the reference corpus's RPC transports use.
func (c *Correlator) Register(id uint64) {
	c.mu.Lock()
	c.pending[id] = make(chan outcome, 1)
	c.mu.Unlock()
}

// Wait blocks until id's response arrives, ctx is done, or timeout
// elapses, whichever is first. In every case the pending entry is
// removed before Wait returns, so a response that arrives afterward is
// silently discarded by Resolve.
func (c *Correlator) Wait(ctx context.Context, id uint64, timeout time.Duration) (*packet.Response, error) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("correlator: request %d was never registered", id)
	}

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.resp, o.err
	case <-timer.Chan():
		c.remove(id)
		return nil, fmt.Errorf("correlator: request %d: %w", id, ErrRequestTimeout)
	case <-ctx.Done():
		c.remove(id)
		return nil, ctx.Err()
	}
}

func (c *Correlator) remove(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Resolve delivers resp to the waiter registered for resp.RequestID. It
// reports false if there is no such waiter — either resp is a duplicate
// response for an already-resolved request, or it arrived after the
// waiter already timed out or the connection closed. Callers should log
// and discard on a false return, never treat it as an error.
func (c *Correlator) Resolve(resp *packet.Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- outcome{resp: resp}
	return true
}

// CloseAll fails every currently pending waiter with err and clears the
// map. Called once, when the owning connection transitions to Closed.
func (c *Correlator) CloseAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan outcome)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- outcome{err: err}
	}
}

// Len reports the number of requests currently in flight.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
