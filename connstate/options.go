package connstate

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coregx/conduit/packet"
)

// Options configures a Connection. Serializer is the only field without
// a usable zero value — concrete serializers are an external
// collaborator (spec.md §1) and must be supplied by the caller.
type Options struct {
	Serializer     packet.Serializer
	Registry       *packet.Registry
	Resolver       Resolver
	Dialer         *net.Dialer
	RequestTimeout time.Duration
	Logger         *logrus.Entry
}

func defaultOptions() Options {
	return Options{
		Registry:       packet.DefaultRegistry,
		Resolver:       net.DefaultResolver,
		Dialer:         &net.Dialer{},
		RequestTimeout: 60 * time.Second,
		Logger:         logrus.NewEntry(logrus.StandardLogger()),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithSerializer supplies the serializer used to encode/decode packet
// bodies on this connection. Required.
func WithSerializer(s packet.Serializer) Option {
	return func(o *Options) { o.Serializer = s }
}

// WithRegistry overrides the default packet type registry.
func WithRegistry(r *packet.Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithResolver overrides DNS resolution, primarily for tests.
func WithResolver(r Resolver) Option {
	return func(o *Options) { o.Resolver = r }
}

// WithDialer overrides the *net.Dialer used to open dialer-origin
// sockets.
func WithDialer(d *net.Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

// WithRequestTimeout overrides the default 60s outbound request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = d }
}

// WithLogger overrides the structured logger entry used for this
// connection's log lines.
func WithLogger(l *logrus.Entry) Option {
	return func(o *Options) { o.Logger = l }
}
