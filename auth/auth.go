// Package auth defines the handshake authentication contract used by
// session and server to turn a freshly connected, Handshaking
// connection into a Connected one with a known User attached.
//
// Authenticator is deliberately kept free of any import on connstate or
// session: the caller passes in a send closure that already knows how to
// round-trip a handshake Request over the connection in hand, so auth
// never needs a reference back to its owner (spec.md §9's
// cyclic-reference guidance).
package auth

import (
	"context"
	"errors"

	"github.com/coregx/conduit/packet"
)

// Credentials carries whatever the client presents at handshake time.
type Credentials struct {
	User     string
	Password string
}

// User is the identity an Authenticator resolves Credentials to.
type User struct {
	ID          string
	DisplayName string
}

// AuthenticationResult is the outcome of an authentication attempt.
type AuthenticationResult struct {
	Successful bool
	ErrorCode  string
	User       User
}

// Failure builds an unsuccessful AuthenticationResult carrying code.
func Failure(code string) AuthenticationResult {
	return AuthenticationResult{Successful: false, ErrorCode: code}
}

// Success builds a successful AuthenticationResult for u.
func Success(u User) AuthenticationResult {
	return AuthenticationResult{Successful: true, User: u}
}

// ErrAuthentication is returned by session.Connect, wrapped with the
// result's ErrorCode, when an Authenticator reports failure.
var ErrAuthentication = errors.New("auth: authentication failed")

// Send round-trips req over the connection currently being
// authenticated and returns its matching Response. Authenticator
// implementations that don't need an additional round-trip beyond the
// handshake request that triggered them may ignore it.
type Send func(req *packet.Request) (*packet.Response, error)

// Authenticator resolves Credentials into an AuthenticationResult,
// optionally performing additional round-trips over send.
type Authenticator interface {
	Authenticate(ctx context.Context, send Send, creds Credentials) (AuthenticationResult, error)
}
