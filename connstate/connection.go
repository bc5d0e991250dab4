package connstate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/coregx/conduit/correlator"
	"github.com/coregx/conduit/packet"
	"github.com/coregx/conduit/wire"
)

// InboundHandler processes an inbound Request packet and produces the
// Response to send back. The owner (session or server) swaps this in as
// the connection moves from Handshaking (authenticator) to Connected
// (module dispatch chain) — see spec.md §9 on handshake/read-loop
// coupling.
type InboundHandler func(ctx context.Context, req *packet.Request) *packet.Response

func passthroughHandler(ctx context.Context, req *packet.Request) *packet.Response {
	return &packet.Response{RequestID: req.RequestID, Status: "unhandled"}
}

// Connection is one peer link: the state machine, its frame transport,
// and its request correlator, per spec.md §3.
type Connection struct {
	remoteAddr     string
	listenerOrigin bool
	opts           Options

	state atomic.Int32

	mu        sync.Mutex
	observers []Observer

	netConn    net.Conn
	transport  *wire.Transport
	correlator *correlator.Correlator
	frameSeq   atomic.Uint64

	closedCtx   context.Context
	closedCause context.CancelCauseFunc

	inboundHandler atomic.Pointer[InboundHandler]

	log *logrus.Entry
}

func newConnection(remoteAddr string, listenerOrigin bool, o Options) *Connection {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := &Connection{
		remoteAddr:     remoteAddr,
		listenerOrigin: listenerOrigin,
		opts:           o,
		closedCtx:      ctx,
		closedCause:    cancel,
		log:            o.Logger.WithField("remote_addr", remoteAddr),
	}
	c.state.Store(int32(Created))
	h := InboundHandler(passthroughHandler)
	c.inboundHandler.Store(&h)
	return c
}

// NewDialer constructs a Created, dialer-origin Connection targeting
// remoteAddr. Call Dial to actually connect.
func NewDialer(remoteAddr string, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Serializer == nil {
		return nil, fmt.Errorf("connstate: Serializer option is required")
	}
	return newConnection(remoteAddr, false, o), nil
}

// NewListener wraps an already-accepted socket as a Created,
// listener-origin Connection. Its transport is ready immediately since
// the socket is already open (spec.md §4.3: "for listener-origin
// connections, skip directly as the socket is already open").
func NewListener(netConn net.Conn, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Serializer == nil {
		return nil, fmt.Errorf("connstate: Serializer option is required")
	}
	c := newConnection(netConn.RemoteAddr().String(), true, o)
	c.netConn = netConn
	c.transport = wire.New(netConn)
	c.correlator = correlator.New()
	return c, nil
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// RemoteAddr returns the remote address string the connection was
// constructed with (or, for listener-origin, the accepted socket's peer
// address).
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// ListenerOrigin reports whether this Connection was constructed from an
// already-accepted socket (server side) rather than dialed.
func (c *Connection) ListenerOrigin() bool { return c.listenerOrigin }

// Closed returns the connection's closed-cancellation token: it is
// cancelled exactly once, when the connection reaches Closed, and its
// cancellation cause (context.Cause) is the error that caused the close.
func (c *Connection) Closed() context.Context { return c.closedCtx }

// Observe registers fn to be notified after every successful state
// transition. fn must not block.
func (c *Connection) Observe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Connection) notifyObservers(old, new State) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(old, new)
	}
}

// SetInboundHandler replaces the callback invoked for inbound Request
// packets.
func (c *Connection) SetInboundHandler(h InboundHandler) {
	c.inboundHandler.Store(&h)
}

// transition is the single entry point for state changes (spec.md
// §4.3): it atomically compares-and-updates the current state, enforcing
// monotonic order (Closed is reachable from any non-Closed state), runs
// action (the state's entry trigger), and notifies observers regardless
// of whether action failed — observers may want to know a transition was
// attempted even if its action errored partway through.
func (c *Connection) transition(new State, action func() error) error {
	old := c.State()
	if old == Closed {
		return fmt.Errorf("connstate: %w: connection already closed", ErrInvalidOperation)
	}
	if new != Closed && new != old+1 {
		return fmt.Errorf("connstate: %w: invalid transition %s -> %s", ErrInvalidOperation, old, new)
	}
	if !c.state.CompareAndSwap(int32(old), int32(new)) {
		return fmt.Errorf("connstate: %w: lost race transitioning %s -> %s", ErrInvalidOperation, old, new)
	}

	var err error
	if action != nil {
		err = action()
	}
	c.notifyObservers(old, new)
	return err
}

// closeFanOut tears down a connection: it releases the correlator (every
// pending waiter fails with ErrDisconnected wrapping cause) and closes the
// socket, which is also the transport's stream. Failures are collected in
// a multierror; releasing the correlator cannot fail, so the socket close
// is the only error it currently carries.
func (c *Connection) closeFanOut(cause error) error {
	var result *multierror.Error

	if c.correlator != nil {
		c.correlator.CloseAll(fmt.Errorf("%w: %v", wire.ErrDisconnected, cause))
	}
	if c.netConn != nil {
		if err := c.netConn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close socket: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// Close transitions the connection to Closed with cause as the
// cancellation cause, idempotently: calling Close on an already-Closed
// connection is a no-op returning nil.
func (c *Connection) Close(cause error) error {
	if cause == nil {
		cause = wire.ErrDisconnected
	}
	if c.State() == Closed {
		return nil
	}
	err := c.transition(Closed, func() error {
		c.closedCause(cause)
		return c.closeFanOut(cause)
	})
	if errors.Is(err, ErrInvalidOperation) {
		// Lost the race to another concurrent Close call; the connection
		// is closed either way, so this isn't a failure.
		return nil
	}
	return err
}
