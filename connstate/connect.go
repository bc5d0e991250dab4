package connstate

import (
	"context"
	"fmt"

	"github.com/coregx/conduit/correlator"
	"github.com/coregx/conduit/packet"
	"github.com/coregx/conduit/wire"
)

// Dial resolves and connects a dialer-origin Connection, then starts its
// inbound read loop. It is invalid to call Dial on a listener-origin
// Connection (its socket is already open) or more than once on the same
// Connection.
func (c *Connection) Dial(ctx context.Context) error {
	if c.listenerOrigin {
		return fmt.Errorf("connstate: %w: Dial called on listener-origin connection", ErrInvalidOperation)
	}

	err := c.transition(Connecting, func() error {
		conn, dialErr := dial(ctx, c.remoteAddr, c.opts.Dialer, c.opts.Resolver, c.log)
		if dialErr != nil {
			return dialErr
		}
		c.netConn = conn
		c.transport = wire.New(conn)
		c.correlator = correlator.New()
		return nil
	})
	if err != nil {
		return err
	}

	return c.startHandshaking(ctx)
}

// startHandshaking transitions a connection whose socket is already open
// (freshly dialed, or listener-origin) into Handshaking and starts the
// background frame read loop that feeds handleFrame.
func (c *Connection) startHandshaking(ctx context.Context) error {
	return c.transition(Handshaking, func() error {
		readCtx, cancel := context.WithCancel(context.Background())
		go func() {
			defer cancel()
			err := c.transport.ReadLoop(readCtx, c.handleFrame)
			c.Close(err)
		}()
		context.AfterFunc(c.closedCtx, cancel)
		return nil
	})
}

// Handshake runs req as the connection's handshake exchange and, on
// success, transitions the connection to Connected. It must be called
// exactly once, after Dial (or immediately for listener-origin
// connections via EnterHandshake), while the connection is Handshaking.
func (c *Connection) Handshake(ctx context.Context, req *packet.Request) (*packet.Response, error) {
	resp, err := c.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.transition(Connected, nil); err != nil {
		return nil, err
	}
	return resp, nil
}

// EnterHandshake starts the read loop for a listener-origin connection,
// whose socket is already open at construction time. Call once, before
// waiting for the peer's handshake request.
func (c *Connection) EnterHandshake(ctx context.Context) error {
	if err := c.transition(Connecting, nil); err != nil {
		return err
	}
	return c.startHandshaking(ctx)
}

// MarkConnected transitions a listener-origin connection straight to
// Connected once its inbound handshake request has been accepted.
func (c *Connection) MarkConnected() error {
	return c.transition(Connected, nil)
}

// handleFrame is the wire.Transport dispatch callback: it decodes the
// frame as a packet and routes it either to the correlator (a Response
// completing a pending Request) or to the current InboundHandler (an
// unsolicited Request from the peer). The read loop starts it on a fresh
// goroutine per frame, so it never blocks further reads; closing the
// connection from here on a decode failure is safe because Close is
// idempotent.
func (c *Connection) handleFrame(frameID uint64, payload []byte) {
	p, err := packet.Decode(payload, c.opts.Serializer, c.opts.Registry)
	if err != nil {
		c.log.WithError(err).Warn("connstate: closing connection on undecodable frame")
		c.Close(err)
		return
	}

	switch body := p.Body.(type) {
	case *packet.Response:
		if !c.correlator.Resolve(body) {
			c.log.WithField("request_id", body.RequestID).Debug("connstate: response for unknown or expired request")
		}
	case *packet.Request:
		c.dispatchInbound(frameID, body)
	default:
		c.log.WithField("packet_type", p.Type).Warn("connstate: no route for packet type")
	}
}

func (c *Connection) dispatchInbound(frameID uint64, req *packet.Request) {
	handler := *c.inboundHandler.Load()
	resp := handler(c.closedCtx, req)
	if resp == nil {
		return
	}

	respPacket := &packet.Packet{
		Type: packet.ResponseType,
		Body: resp,
	}
	data, err := packet.Encode(respPacket, c.opts.Serializer, c.opts.Registry)
	if err != nil {
		c.log.WithError(err).Warn("connstate: failed to encode inbound response")
		return
	}
	if err := c.transport.Send(c.closedCtx, c.frameSeq.Add(1), data); err != nil {
		c.log.WithError(err).Warn("connstate: failed to send inbound response")
	}
}
