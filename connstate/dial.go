package connstate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Resolver abstracts host resolution so tests can substitute a fake one
// instead of hitting real DNS.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// splitHostPort parses RemoteAddress as host:port, per spec.md §4.3:
// failing with ErrFormat unless the string splits into exactly two
// colon-separated parts. IPv6 literals contain further colons, so they
// are rejected with ErrFormat, bracketed or not.
func splitHostPort(remoteAddr string) (host, port string, err error) {
	parts := strings.Split(remoteAddr, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("connstate: %q: %w", remoteAddr, ErrFormat)
	}
	return parts[0], parts[1], nil
}

// dial resolves host, wrapped in a bounded exponential-backoff retry for
// transient DNS errors, then attempts connect() against each resolved
// address in order, returning the first success.
func dial(ctx context.Context, remoteAddr string, dialer *net.Dialer, resolver Resolver, log *logrus.Entry) (net.Conn, error) {
	host, port, err := splitHostPort(remoteAddr)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs, err := resolveWithRetry(ctx, resolver, host)
	if err != nil {
		return nil, fmt.Errorf("connstate: resolve %q: %w: %v", host, ErrCouldNotConnect, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("connstate: %q resolved to no addresses: %w", host, ErrCouldNotConnect)
	}

	var lastErr error
	for _, ip := range addrs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := net.JoinHostPort(ip, port)
		conn, dialErr := dialer.DialContext(ctx, "tcp", target)
		if dialErr == nil {
			return conn, nil
		}
		lastErr = dialErr
		log.WithFields(logrus.Fields{"address": target}).WithError(dialErr).
			Warn("connstate: connect attempt failed, trying next address")
	}

	return nil, fmt.Errorf("connstate: all addresses failed for %q: %w: last error: %v", remoteAddr, ErrCouldNotConnect, lastErr)
}

// resolveWithRetry wraps resolver.LookupHost in a bounded exponential
// backoff so transient DNS failures (a momentarily unreachable
// resolver) don't immediately fail the dial the way a permanent NXDOMAIN
// should.
func resolveWithRetry(ctx context.Context, resolver Resolver, host string) ([]string, error) {
	var addrs []string
	op := func() error {
		a, err := resolver.LookupHost(ctx, host)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return backoff.Permanent(err)
			}
			return err
		}
		addrs = a
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return addrs, nil
}
