// Package connstate implements the connection lifecycle state machine,
// the dial algorithm, and the glue between the wire frame transport and
// the request correlator described in spec.md §4.3 and §4.4.
package connstate

// State is a connection's position in its lifecycle. States progress
// monotonically; Closed is absorbing.
type State int32

const (
	// Created is the initial state of every Connection.
	Created State = iota
	// Connecting covers DNS resolution + socket connect for dialers, and
	// is a no-op pass-through for listener-origin connections whose
	// socket is already open.
	Connecting
	// Handshaking starts the inbound read loop; the handshake itself is
	// the first request/response pair exchanged over that loop.
	Handshaking
	// Connected means the connection is authenticated and ready for
	// application traffic.
	Connected
	// Closed is terminal: resources are released and no further
	// transitions are possible.
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Observer is notified after a successful transition. Observers must not
// block; the transition that triggered the notification has already
// completed.
type Observer func(old, new State)
