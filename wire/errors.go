package wire

import "errors"

var (
	// ErrDisconnected is returned from Send/receive when the underlying
	// stream is not usable: closed, reset, or never connected.
	ErrDisconnected = errors.New("wire: disconnected")

	// ErrInvalidDataLength is returned by the read loop when a frame's
	// payload_length falls outside (0, MaxPayloadLen].
	ErrInvalidDataLength = errors.New("wire: invalid frame payload length")
)
