package connstate

import (
	"context"
	"fmt"

	"github.com/coregx/conduit/packet"
)

// Request sends req over the connection and blocks until the matching
// Response arrives, ctx is cancelled, or opts.RequestTimeout elapses.
//
// req.RequestID is assigned here from the connection's correlator; any
// value the caller set is overwritten. The correlator's channel is
// registered before the frame is sent, avoiding the race where a very
// fast peer's response arrives before the waiter is listening (grounded
// on the reference mini-RPC client's register-before-send ordering).
func (c *Connection) Request(ctx context.Context, req *packet.Request) (*packet.Response, error) {
	if c.State() == Closed {
		return nil, fmt.Errorf("connstate: %w", ErrInvalidOperation)
	}

	id := c.correlator.NextID()
	req.RequestID = id
	c.correlator.Register(id)

	p := &packet.Packet{
		Type: packet.RequestType,
		Body: req,
	}
	data, err := packet.Encode(p, c.opts.Serializer, c.opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("connstate: encode request: %w", err)
	}

	if err := c.transport.Send(ctx, c.frameSeq.Add(1), data); err != nil {
		return nil, err
	}

	return c.correlator.Wait(ctx, id, c.opts.RequestTimeout)
}
