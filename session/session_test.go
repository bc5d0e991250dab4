package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/connstate"
	"github.com/coregx/conduit/errsignal"
	"github.com/coregx/conduit/packet"
)

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// sendAuthenticator authenticates by round-tripping a "login" handshake
// request and trusting whatever status the peer answers with.
type sendAuthenticator struct{}

func (sendAuthenticator) Authenticate(ctx context.Context, send auth.Send, creds auth.Credentials) (auth.AuthenticationResult, error) {
	resp, err := send(&packet.Request{Name: "login", Args: map[string]string{"username": creds.User}})
	if err != nil {
		return auth.AuthenticationResult{}, err
	}
	if resp.Status != packet.StatusOK {
		return auth.Failure("rejected"), nil
	}
	return auth.Success(auth.User{ID: creds.User}), nil
}

// fakeServer accepts connections on an ephemeral loopback port and
// answers "login" handshakes with StatusOK, then echoes every other
// request's Args["value"] back as the response body.
type fakeServer struct {
	ln net.Listener
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeServer) serve(netConn net.Conn) {
	srv, err := connstate.NewListener(netConn, connstate.WithSerializer(jsonSerializer{}))
	if err != nil {
		return
	}
	srv.SetInboundHandler(func(ctx context.Context, req *packet.Request) *packet.Response {
		if req.Name == "login" {
			return &packet.Response{RequestID: req.RequestID, Status: packet.StatusOK}
		}
		return &packet.Response{RequestID: req.RequestID, Status: packet.StatusOK, Body: []byte(req.Args["value"])}
	})
	if err := srv.EnterHandshake(context.Background()); err != nil {
		return
	}
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }
func (s *fakeServer) close()       { s.ln.Close() }

func newTestSession(t *testing.T, srv *fakeServer, opts ...Option) *Session {
	t.Helper()
	connOpts := []connstate.Option{connstate.WithSerializer(jsonSerializer{})}
	allOpts := append([]Option{WithAuthenticator(sendAuthenticator{})}, opts...)
	return New(srv.addr(), connOpts, allOpts...)
}

func TestConnectAndRequestRoundTrip(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.close()

	sess := newTestSession(t, srv)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sess.Connect(ctx, auth.Credentials{User: "alice"}))
	require.True(t, sess.Connected())
	require.Equal(t, "alice", sess.User().ID)

	resp, err := sess.Request(ctx, &packet.Request{Name: "echo", Args: map[string]string{"value": "hello"}})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), resp.Body)
}

func TestDoubleConnectRejected(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.close()

	sess := newTestSession(t, srv)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sess.Connect(ctx, auth.Credentials{User: "alice"}))
	err := sess.Connect(ctx, auth.Credentials{User: "alice"})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestConnectedHandlerErrorIsNonFatal(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.close()

	errSig := errsignal.New()
	fired := make(chan error, 1)
	errSig.Subscribe(func(err error) { fired <- err })

	sess := newTestSession(t, srv, WithErrSignal(errSig))
	defer sess.Close()

	boom := errors.New("boom")
	sess.OnConnected(func(ctx context.Context, user auth.User) error {
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sess.Connect(ctx, auth.Credentials{User: "alice"})
	require.NoError(t, err)
	require.True(t, sess.Connected())

	select {
	case err := <-fired:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connected-handler error on the error signal")
	}
}

func TestRequestWithoutConnectionFails(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.close()

	sess := newTestSession(t, srv)
	defer sess.Close()

	_, err := sess.Request(context.Background(), &packet.Request{Name: "echo"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectOnTransportDrop(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.close()

	clock := clockwork.NewFakeClock()
	sess := newTestSession(t, srv, WithClock(clock), WithReconnectPolicy(5, time.Second))
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sess.Connect(ctx, auth.Credentials{User: "alice"}))

	disconnected := make(chan error, 1)
	sess.OnDisconnected(func(err error) { disconnected <- err })

	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	require.NoError(t, conn.Close(errors.New("simulated drop")))

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for disconnect notification")
	}
	require.False(t, sess.Connected())

	// The server is still up, so Reconnect's first attempt (tried before
	// any delay) succeeds without the fake clock needing to advance.
	err := sess.Reconnect(ctx)
	require.NoError(t, err)
	require.True(t, sess.Connected())
}
