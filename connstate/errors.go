package connstate

import "errors"

var (
	// ErrFormat is returned when a dialer's remote address does not
	// split into exactly host:port.
	ErrFormat = errors.New("connstate: malformed remote address")

	// ErrCouldNotConnect is returned when every resolved address failed
	// to connect (or none resolved at all).
	ErrCouldNotConnect = errors.New("connstate: could not connect to any resolved address")

	// ErrInvalidOperation is returned by Dial when called more than once
	// on the same Connection, or on a listener-origin Connection.
	ErrInvalidOperation = errors.New("connstate: invalid operation for this connection's state or origin")
)
