package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/coregx/conduit/auth"
	"github.com/coregx/conduit/errsignal"
	"github.com/coregx/conduit/module"
)

// Options configures a Session's timeouts, retry behavior, and
// collaborators.
type Options struct {
	RequestTimeout    time.Duration
	HandshakeTimeout  time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Authenticator     auth.Authenticator
	Modules           *module.Registry
	ErrSignal         *errsignal.Signal
	Clock             clockwork.Clock
	Logger            *logrus.Entry
}

func defaultOptions() Options {
	return Options{
		RequestTimeout:    60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReconnectAttempts: 10,
		ReconnectDelay:    5 * time.Second,
		Modules:           module.NewRegistry(),
		ErrSignal:         errsignal.DefaultSignal,
		Clock:             clockwork.NewRealClock(),
		Logger:            logrus.NewEntry(logrus.StandardLogger()),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithRequestTimeout overrides the default outbound request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = d }
}

// WithHandshakeTimeout overrides the default handshake round-trip
// timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) { o.HandshakeTimeout = d }
}

// WithReconnectPolicy overrides the bounded retry count and inter-attempt
// delay used by Reconnect.
func WithReconnectPolicy(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.ReconnectAttempts = attempts
		o.ReconnectDelay = delay
	}
}

// WithAuthenticator supplies the Authenticator consulted during Connect.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *Options) { o.Authenticator = a }
}

// WithModules overrides the module.Registry dispatch chain for inbound
// requests.
func WithModules(r *module.Registry) Option {
	return func(o *Options) { o.Modules = r }
}

// WithErrSignal overrides the last-resort error channel.
func WithErrSignal(s *errsignal.Signal) Option {
	return func(o *Options) { o.ErrSignal = s }
}

// WithClock overrides the clock used for reconnect delays, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithLogger overrides the structured logger entry.
func WithLogger(l *logrus.Entry) Option {
	return func(o *Options) { o.Logger = l }
}
