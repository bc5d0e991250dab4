// Package wire implements the length-prefixed frame transport: moving
// complete (frame_id, payload) units across a bidirectional byte stream
// in both directions, per spec.md §4.2 and §6.
//
// Wire format per frame:
//
//	offset size  field
//	0      8     frame_id        u64 little-endian
//	8      4     payload_length  i32 little-endian, 0 < len <= MaxPayloadLen
//	12     len   payload
package wire

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPayloadLen is the largest payload_length a frame may declare.
const MaxPayloadLen = 5_000_000

const headerLen = 8 + 4

// Dispatch is invoked once per received frame. The read loop calls it in
// its own goroutine so that handler work never head-of-line-blocks the
// next frame's read.
type Dispatch func(frameID uint64, payload []byte)

// Transport moves frames across r/w. A single Transport serializes its
// own Send calls with an internal gate; it does not serialize concurrent
// ReadLoop calls — callers must run at most one ReadLoop per Transport,
// per the "at most one inbound read loop runs per connection" invariant.
type Transport struct {
	r io.Reader
	w io.Writer

	// sendGate is a 1-buffered channel used as a cancellable mutex: a
	// sender must successfully send into sendGate (or observe ctx.Done)
	// before writing, and must receive from it when done.
	sendGate chan struct{}
}

// New wraps rw (typically a net.Conn) as a frame Transport.
func New(rw io.ReadWriter) *Transport {
	return &Transport{
		r:        rw,
		w:        rw,
		sendGate: make(chan struct{}, 1),
	}
}

// Send writes one frame. Cancellation of ctx before the send gate is
// acquired aborts the send with ctx.Err(); once writing has started it
// runs to completion or returns ErrDisconnected.
func (t *Transport) Send(ctx context.Context, frameID uint64, payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxPayloadLen {
		return fmt.Errorf("wire: payload length %d out of (0, %d]: %w", len(payload), MaxPayloadLen, ErrInvalidDataLength)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.sendGate <- struct{}{}:
	}
	defer func() { <-t.sendGate }()

	var hdr [headerLen]byte
	binary.LittleEndian.PutUint64(hdr[0:8], frameID)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(int32(len(payload))))

	if _, err := t.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w: %v", ErrDisconnected, err)
	}
	if _, err := t.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w: %v", ErrDisconnected, err)
	}
	return nil
}

// ReadLoop repeatedly reads complete frames and hands each to dispatch
// in its own goroutine, until ctx is done, the peer closes the stream
// (ErrDisconnected), or a frame declares an out-of-bounds payload_length
// (ErrInvalidDataLength). It never returns nil: callers should treat any
// return as "the connection must be closed now."
func (t *Transport) ReadLoop(ctx context.Context, dispatch Dispatch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var hdr [headerLen]byte
		if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
			return disconnectedErr(err)
		}

		frameID := binary.LittleEndian.Uint64(hdr[0:8])
		length := int32(binary.LittleEndian.Uint32(hdr[8:12]))
		if length <= 0 || length > MaxPayloadLen {
			return fmt.Errorf("wire: frame %d declared length %d: %w", frameID, length, ErrInvalidDataLength)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(t.r, payload); err != nil {
			return disconnectedErr(err)
		}

		go dispatch(frameID, payload)
	}
}

func disconnectedErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("wire: %w", ErrDisconnected)
	}
	return fmt.Errorf("wire: %w: %v", ErrDisconnected, err)
}
