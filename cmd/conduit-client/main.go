// Command conduit-client dials a conduitd server, authenticates, sends
// one request, prints the response, and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/connstate"
	"github.com/coregx/conduit/packet"
	"github.com/coregx/conduit/session"
	"github.com/coregx/conduit/textcodec"
)

var (
	addr     string
	username string
	secret   string
	reqName  string
)

func main() {
	root := &cobra.Command{
		Use:   "conduit-client",
		Short: "Connect to a conduit server and send one request",
		RunE:  run,
	}
	root.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "server address, host:port")
	root.Flags().StringVar(&username, "username", "", "handshake username")
	root.Flags().StringVar(&secret, "secret", "", "handshake secret")
	root.Flags().StringVar(&reqName, "request", "ping", "request name to send after connecting")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.WithField("component", "conduit-client")

	connOpts := []connstate.Option{connstate.WithSerializer(textcodec.Serializer{})}
	sess := session.New(addr, connOpts,
		session.WithAuthenticator(loginAuthenticator{}),
		session.WithLogger(log),
	)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, auth.Credentials{User: username, Password: secret}); err != nil {
		return fmt.Errorf("conduit-client: connect: %w", err)
	}
	log.WithField("user", sess.User().ID).Info("connected")

	resp, err := sess.Request(ctx, &packet.Request{Name: reqName})
	if err != nil {
		return fmt.Errorf("conduit-client: request: %w", err)
	}
	fmt.Printf("status=%s body=%s\n", resp.Status, resp.Body)
	return nil
}

// loginAuthenticator sends the handshake request named "login" carrying
// the client's credentials and trusts whatever status the server
// answers with.
type loginAuthenticator struct{}

func (loginAuthenticator) Authenticate(ctx context.Context, send auth.Send, creds auth.Credentials) (auth.AuthenticationResult, error) {
	resp, err := send(&packet.Request{Name: "login", Args: map[string]string{"username": creds.User, "secret": creds.Password}})
	if err != nil {
		return auth.AuthenticationResult{}, err
	}
	if resp.Status != packet.StatusOK {
		return auth.Failure(resp.Status), nil
	}
	return auth.Success(auth.User{ID: creds.User}), nil
}
