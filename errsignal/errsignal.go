// Package errsignal implements the process-wide, last-resort error
// channel described in spec.md §4.7: errors that have no other
// reasonable destination (a background goroutine failure, a rejected
// panic recovery) get fired here so at least one subscriber — by
// default, a log line — records them instead of being silently dropped.
package errsignal

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscriber receives every error fired on a Signal. Subscribers must
// not block; Fire calls them synchronously in registration order.
type Subscriber func(err error)

// Signal is a broadcast error channel. The zero value is ready to use;
// New returns one.
type Signal struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// New returns a Signal with no subscribers.
func New() *Signal {
	return &Signal{}
}

// Subscribe registers fn to be called on every future Fire.
func (s *Signal) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Fire delivers err to every subscriber, in registration order.
func (s *Signal) Fire(err error) {
	if err == nil {
		return
	}
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(err)
	}
}

// DefaultSignal is the process-wide Signal used when a component isn't
// explicitly given one of its own. It starts with a single subscriber
// that logs at Error level via logrus's standard logger.
var DefaultSignal = New()

func init() {
	DefaultSignal.Subscribe(func(err error) {
		logrus.WithError(err).Error("errsignal: unhandled error")
	})
}
