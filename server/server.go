// Package server implements the listener side of the runtime: accept
// sockets, run each through the configured Authenticator, register
// authenticated connections in a directory, and dispatch their inbound
// requests through a module.Registry.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/connstate"
	"github.com/coregx/conduit/directory"
	"github.com/coregx/conduit/errsignal"
	"github.com/coregx/conduit/module"
	"github.com/coregx/conduit/packet"
)

// Options configures a Server.
type Options struct {
	Serializer    packet.Serializer
	Registry      *packet.Registry
	Authenticator auth.Authenticator
	Modules       *module.Registry
	ErrSignal     *errsignal.Signal
	Logger        *logrus.Entry
}

// Server accepts connections on a net.Listener and drives each through
// handshake and inbound dispatch.
type Server struct {
	ln   net.Listener
	opts Options
	dir  *directory.Directory

	wg sync.WaitGroup
}

// New wraps ln as a Server. Opts.Serializer and Opts.Authenticator are
// required.
func New(ln net.Listener, opts Options) (*Server, error) {
	if opts.Serializer == nil {
		return nil, fmt.Errorf("server: Serializer option is required")
	}
	if opts.Authenticator == nil {
		return nil, fmt.Errorf("server: Authenticator option is required")
	}
	if opts.Registry == nil {
		opts.Registry = packet.DefaultRegistry
	}
	if opts.ErrSignal == nil {
		opts.ErrSignal = errsignal.DefaultSignal
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{ln: ln, opts: opts, dir: directory.New()}, nil
}

// Serve accepts connections until ln is closed or ctx is cancelled,
// handling each on its own goroutine. It returns once the listener
// stops producing new connections.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		netConn, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, netConn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, netConn net.Conn) {
	conn, err := connstate.NewListener(netConn,
		connstate.WithSerializer(s.opts.Serializer),
		connstate.WithRegistry(s.opts.Registry),
		connstate.WithLogger(s.opts.Logger),
	)
	if err != nil {
		netConn.Close()
		return
	}

	var userID string
	conn.SetInboundHandler(func(ctx context.Context, req *packet.Request) *packet.Response {
		return s.handleHandshake(ctx, conn, req, &userID)
	})

	if err := conn.EnterHandshake(ctx); err != nil {
		s.opts.ErrSignal.Fire(fmt.Errorf("server: enter handshake: %w", err))
		return
	}

	<-conn.Closed().Done()
	if userID != "" {
		s.dir.Remove(userID, conn)
	}
}

// handleHandshake answers the first inbound request as a handshake,
// authenticates it, and — on success — re-wires the connection's
// inbound handler to module dispatch and registers it in the directory
// under the resolved user ID.
func (s *Server) handleHandshake(ctx context.Context, conn *connstate.Connection, req *packet.Request, userID *string) *packet.Response {
	send := func(sendReq *packet.Request) (*packet.Response, error) {
		return conn.Request(ctx, sendReq)
	}

	creds := auth.Credentials{User: req.Args["username"], Password: req.Args["secret"]}
	result, err := s.opts.Authenticator.Authenticate(ctx, send, creds)
	if err != nil {
		s.opts.ErrSignal.Fire(fmt.Errorf("server: authenticate: %w", err))
		return &packet.Response{RequestID: req.RequestID, Status: "error"}
	}
	if !result.Successful {
		return &packet.Response{RequestID: req.RequestID, Status: result.ErrorCode}
	}

	*userID = result.User.ID
	s.dir.Put(result.User.ID, conn)

	conn.SetInboundHandler(func(ctx context.Context, req *packet.Request) *packet.Response {
		return s.dispatchModules(ctx, req)
	})
	if err := conn.MarkConnected(); err != nil {
		s.opts.ErrSignal.Fire(err)
	}

	return &packet.Response{RequestID: req.RequestID, Status: packet.StatusOK}
}

func (s *Server) dispatchModules(ctx context.Context, req *packet.Request) *packet.Response {
	if s.opts.Modules == nil {
		return &packet.Response{RequestID: req.RequestID, Status: "error", Body: []byte("no modules configured")}
	}
	resp, handled, err := s.opts.Modules.Dispatch(ctx, req)
	if err != nil {
		s.opts.ErrSignal.Fire(err)
		return &packet.Response{RequestID: req.RequestID, Status: "error", Body: []byte(err.Error())}
	}
	if !handled {
		return &packet.Response{RequestID: req.RequestID, Status: "error", Body: []byte("unhandled request")}
	}
	return resp
}

// RequestUser sends req to the connection currently registered for
// userID and waits for the response, failing if that user has no live
// connection.
func (s *Server) RequestUser(ctx context.Context, userID string, req *packet.Request) (*packet.Response, error) {
	conn, ok := s.dir.Get(userID)
	if !ok {
		return nil, fmt.Errorf("server: no live connection for user %q", userID)
	}
	return conn.Request(ctx, req)
}
