// Command conduitd runs the listener side of the runtime: it accepts
// connections, authenticates them, and dispatches their requests through
// whatever modules have been added to the module.Registry that run
// passes to server.New.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/config"
	"github.com/coregx/conduit/module"
	"github.com/coregx/conduit/server"
	"github.com/coregx/conduit/textcodec"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "conduitd",
		Short: "Run the conduit connection server",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to built-in defaults)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("conduitd: %w", err)
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "conduitd")

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("conduitd: listen %q: %w", cfg.ListenAddr, err)
	}
	log.WithField("addr", ln.Addr().String()).Info("listening")

	srv, err := server.New(ln, server.Options{
		Serializer:    textcodec.Serializer{},
		Authenticator: auth.NewMemoryAuthenticator(),
		Modules:       module.NewRegistry(),
		Logger:        log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Serve(ctx)
}
