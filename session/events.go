package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/packet"
)

// ConnectedHandler is invoked after a successful handshake, with the
// authenticated user, once the session is already marked connected. If
// it returns an error (or panics), the error is routed to the error
// signal as a background failure — it does not fail Connect or close
// the connection.
type ConnectedHandler func(ctx context.Context, user auth.User) error

// RequestReceivedHandler is the fallback invoked for an inbound request
// that no registered module claimed.
type RequestReceivedHandler func(ctx context.Context, req *packet.Request) (*packet.Response, error)

type events struct {
	mu             sync.RWMutex
	onConnected    []ConnectedHandler
	onRequestRecv  RequestReceivedHandler
	onDisconnected []func(err error)
}

func (e *events) OnConnected(fn ConnectedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConnected = append(e.onConnected, fn)
}

func (e *events) OnRequestReceived(fn RequestReceivedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRequestRecv = fn
}

func (e *events) OnDisconnected(fn func(err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnected = append(e.onDisconnected, fn)
}

func (e *events) fireConnected(ctx context.Context, user auth.User) (err error) {
	e.mu.RLock()
	handlers := append([]ConnectedHandler(nil), e.onConnected...)
	e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session: connected handler panicked: %v", r)
		}
	}()
	for _, fn := range handlers {
		if err := fn(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (e *events) fireDisconnected(err error) {
	e.mu.RLock()
	handlers := append([]func(error){}, e.onDisconnected...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (e *events) requestReceived() RequestReceivedHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onRequestRecv
}
