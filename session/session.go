// Package session implements the client-facing connection lifecycle:
// connect, authenticate, exchange requests, and reconnect after a
// transport drop, per spec.md §4.5. A drop does not start reconnection
// by itself: it fires the OnDisconnected handlers, and the caller runs
// Reconnect.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/connstate"
	"github.com/coregx/conduit/packet"
)

// Session wraps a single connstate.Connection with authentication,
// module dispatch for inbound requests, and a Reconnect retry loop that
// the caller invokes after a drop.
// A Session is not reused across a successful Connect and a subsequent
// Close — construct a new one to reconnect after disposal.
type Session struct {
	events

	remoteAddr string
	connOpts   []connstate.Option
	opts       Options

	mu         sync.Mutex
	conn       *connstate.Connection
	user       auth.User
	creds      auth.Credentials
	connecting bool

	disposed atomic.Bool
}

// New constructs a Session targeting remoteAddr. connOpts are forwarded
// to connstate.NewDialer on every (re)connect attempt.
func New(remoteAddr string, connOpts []connstate.Option, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{remoteAddr: remoteAddr, connOpts: connOpts, opts: o}
}

// Connect dials, performs the handshake via the configured Authenticator,
// and — on success — marks the session Connected and fires every
// registered ConnectedHandler. Calling Connect on a Session that is
// already connecting or connected fails with ErrInvalidOperation.
func (s *Session) Connect(ctx context.Context, creds auth.Credentials) error {
	s.mu.Lock()
	if s.conn != nil || s.connecting {
		s.mu.Unlock()
		return fmt.Errorf("session: %w: already connected or connecting", ErrInvalidOperation)
	}
	s.connecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	conn, user, err := s.handshake(ctx, creds)
	if err != nil {
		return err
	}

	conn.SetInboundHandler(s.handleInbound)

	s.mu.Lock()
	s.conn = conn
	s.user = user
	s.creds = creds
	s.mu.Unlock()

	go s.watchDrop(conn)

	// The connected event runs last, after the session is already marked
	// connected: a handler error or panic is a background failure routed
	// to the error signal, not a reason to fail Connect or tear down the
	// connection it just established.
	if err := s.events.fireConnected(ctx, user); err != nil {
		s.opts.ErrSignal.Fire(fmt.Errorf("session: connected handler: %w", err))
	}

	return nil
}

// handshake performs the dial + authenticate sequence shared by Connect
// and Reconnect, returning the live Connection and resolved User on
// success without touching Session state.
func (s *Session) handshake(ctx context.Context, creds auth.Credentials) (*connstate.Connection, auth.User, error) {
	opts := append(append([]connstate.Option(nil), s.connOpts...), connstate.WithRequestTimeout(s.opts.RequestTimeout))
	conn, err := connstate.NewDialer(s.remoteAddr, opts...)
	if err != nil {
		return nil, auth.User{}, err
	}

	if err := conn.Dial(ctx); err != nil {
		return nil, auth.User{}, err
	}

	send := func(req *packet.Request) (*packet.Response, error) {
		hctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
		defer cancel()
		return conn.Request(hctx, req)
	}

	authenticator := s.opts.Authenticator
	if authenticator == nil {
		conn.Close(auth.ErrAuthentication)
		return nil, auth.User{}, fmt.Errorf("session: no Authenticator configured")
	}

	result, err := authenticator.Authenticate(ctx, send, creds)
	if err != nil {
		conn.Close(err)
		return nil, auth.User{}, fmt.Errorf("session: authenticate: %w", err)
	}
	if !result.Successful {
		conn.Close(auth.ErrAuthentication)
		return nil, auth.User{}, &AuthenticationError{Code: result.ErrorCode}
	}

	if err := ctx.Err(); err != nil {
		conn.Close(err)
		return nil, auth.User{}, err
	}

	if err := conn.MarkConnected(); err != nil {
		conn.Close(err)
		return nil, auth.User{}, err
	}

	return conn, result.User, nil
}

// watchDrop waits for conn to close (peer disconnect, transport error,
// explicit Close) and, unless the Session itself has been disposed,
// clears it and fires onDisconnected so callers can invoke Reconnect.
func (s *Session) watchDrop(conn *connstate.Connection) {
	<-conn.Closed().Done()
	cause := context.Cause(conn.Closed())

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	if !s.disposed.Load() {
		s.events.fireDisconnected(cause)
	}
}

// Reconnect retries Connect with the last credentials used, up to
// opts.ReconnectAttempts times with opts.ReconnectDelay between
// attempts, stopping early if the Session has been disposed via Close or
// ctx is cancelled.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.disposed.Load() {
		return fmt.Errorf("session: %w: session disposed", ErrInvalidOperation)
	}

	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < s.opts.ReconnectAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.disposed.Load() {
			return fmt.Errorf("session: %w: session disposed", ErrInvalidOperation)
		}

		err := s.Connect(ctx, creds)
		if err == nil {
			return nil
		}
		lastErr = err
		s.opts.Logger.WithError(err).WithField("attempt", attempt+1).Warn("session: reconnect attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.opts.Clock.After(s.opts.ReconnectDelay):
		}
	}
	return fmt.Errorf("session: reconnect exhausted %d attempts: %w", s.opts.ReconnectAttempts, lastErr)
}

// Request sends req over the current connection and waits for the
// matching response. It fails with ErrNotConnected if no connection is
// currently established.
func (s *Session) Request(ctx context.Context, req *packet.Request) (*packet.Response, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn.Request(ctx, req)
}

// Connected reports whether the session currently holds a live
// connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// User returns the identity resolved by the last successful handshake.
func (s *Session) User() auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// handleInbound is the Connection's InboundHandler: it runs the request
// through the module dispatch chain, falling back to the
// RequestReceivedHandler, and converts a module error or panic into an
// UnhandledServerError response rather than letting it escape into the
// read loop goroutine.
func (s *Session) handleInbound(ctx context.Context, req *packet.Request) (resp *packet.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.ErrSignal.Fire(fmt.Errorf("session: inbound handler panicked: %v", r))
			resp = errorResponse(req, ErrUnhandledServerError)
		}
	}()

	if s.opts.Modules != nil {
		response, handled, err := s.opts.Modules.Dispatch(ctx, req)
		if err != nil {
			s.opts.ErrSignal.Fire(err)
			return errorResponse(req, ErrUnhandledServerError)
		}
		if handled {
			return response
		}
	}

	if fallback := s.events.requestReceived(); fallback != nil {
		response, err := fallback(ctx, req)
		if err != nil {
			s.opts.ErrSignal.Fire(err)
			return errorResponse(req, err)
		}
		return response
	}

	return errorResponse(req, ErrUnhandledServerError)
}

func errorResponse(req *packet.Request, err error) *packet.Response {
	return &packet.Response{RequestID: req.RequestID, Status: "error", Body: []byte(err.Error())}
}

// Close disposes the session: it marks it disposed (so watchDrop and
// Reconnect stop), then closes the live connection, if any, and releases
// all registered modules.
func (s *Session) Close() error {
	s.disposed.Store(true)

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(nil)
	}
	if s.opts.Modules != nil {
		if closeErr := s.opts.Modules.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
