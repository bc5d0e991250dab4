package session

import (
	"errors"

	"github.com/coregx/conduit/auth"
)

var (
	// ErrInvalidOperation is returned by Connect when called on an
	// already-connecting or already-connected Session, and by Reconnect
	// when called on a disposed Session.
	ErrInvalidOperation = errors.New("session: invalid operation for this session's state")

	// ErrNotConnected is returned by Request when no connection is
	// currently established.
	ErrNotConnected = errors.New("session: not connected")

	// ErrUnhandledServerError is returned to a peer's inbound request
	// when no module claimed it and the session has no RequestReceived
	// observer to fall back to, or that observer itself failed.
	ErrUnhandledServerError = errors.New("session: unhandled server error")
)

// AuthenticationError wraps the ErrorCode an Authenticator produced for
// a failed handshake.
type AuthenticationError struct {
	Code string
}

func (e *AuthenticationError) Error() string {
	return "session: authentication failed: " + e.Code
}

// Unwrap lets errors.Is match auth.ErrAuthentication.
func (e *AuthenticationError) Unwrap() error { return auth.ErrAuthentication }
