package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/connstate"
	"github.com/coregx/conduit/module"
	"github.com/coregx/conduit/packet"
)

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type pushModule struct{}

func (pushModule) Name() string { return "push" }
func (pushModule) HandleRequest(ctx context.Context, args *module.RequestArgs) error {
	if args.Request.Name != "push" {
		return nil
	}
	args.Response.Body = []byte("pushed:" + args.Request.Args["text"])
	args.Handled = true
	return nil
}
func (pushModule) Close() error { return nil }

func startTestServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	authenticator := auth.NewMemoryAuthenticator()
	authenticator.Add("alice", "hunter2", auth.User{ID: "alice"})

	modules := module.NewRegistry()
	modules.Add(pushModule{})

	srv, err := New(ln, Options{
		Serializer:    jsonSerializer{},
		Authenticator: authenticator,
		Modules:       modules,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)

	return srv, ln
}

func TestRequestUserRoundTrip(t *testing.T) {
	srv, ln := startTestServer(t)

	client, err := connstate.NewDialer(ln.Addr().String(), connstate.WithSerializer(jsonSerializer{}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Dial(ctx))
	resp, err := client.Handshake(ctx, &packet.Request{Name: "login", Args: map[string]string{"username": "alice", "secret": "hunter2"}})
	require.NoError(t, err)
	require.True(t, resp.Success())

	client.SetInboundHandler(func(ctx context.Context, req *packet.Request) *packet.Response {
		return &packet.Response{RequestID: req.RequestID, Status: packet.StatusOK, Body: []byte("ack:" + string(req.Args["text"]))}
	})

	require.Eventually(t, func() bool {
		_, ok := srv.dir.Get("alice")
		return ok
	}, time.Second, 10*time.Millisecond)

	pushResp, err := srv.RequestUser(ctx, "alice", &packet.Request{Name: "push", Args: map[string]string{"text": "hi"}})
	require.NoError(t, err)
	require.True(t, pushResp.Success())
}

func TestRequestUserNoConnection(t *testing.T) {
	srv, _ := startTestServer(t)
	_, err := srv.RequestUser(context.Background(), "ghost", &packet.Request{Name: "push"})
	require.Error(t, err)
}

func TestAuthenticationRejected(t *testing.T) {
	_, ln := startTestServer(t)

	client, err := connstate.NewDialer(ln.Addr().String(), connstate.WithSerializer(jsonSerializer{}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Dial(ctx))
	resp, err := client.Handshake(ctx, &packet.Request{Name: "login", Args: map[string]string{"username": "alice", "secret": "wrong"}})
	require.NoError(t, err)
	require.False(t, resp.Success(), "server must answer a bad secret with a non-ok status, not a transport error")
}
