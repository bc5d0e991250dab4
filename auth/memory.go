package auth

import (
	"context"
	"sync"
)

// MemoryAuthenticator is a sample Authenticator backed by an in-process
// username/secret table. It exists to exercise the Authenticator
// contract in tests and examples; production deployments are expected
// to supply their own implementation (LDAP, OAuth token introspection,
// etc.) behind the same interface.
type MemoryAuthenticator struct {
	mu    sync.RWMutex
	users map[string]memoryUser
}

type memoryUser struct {
	secret string
	user   User
}

// NewMemoryAuthenticator returns an authenticator with no registered
// users; call Add to populate it.
func NewMemoryAuthenticator() *MemoryAuthenticator {
	return &MemoryAuthenticator{users: make(map[string]memoryUser)}
}

// Add registers user/password as valid credentials resolving to u.
func (m *MemoryAuthenticator) Add(user, password string, u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user] = memoryUser{secret: password, user: u}
}

// Authenticate implements Authenticator by a lookup against the
// registered table. It performs no handshake round-trip of its own.
func (m *MemoryAuthenticator) Authenticate(ctx context.Context, send Send, creds Credentials) (AuthenticationResult, error) {
	m.mu.RLock()
	entry, ok := m.users[creds.User]
	m.mu.RUnlock()

	if !ok || entry.secret != creds.Password {
		return Failure("invalid_credentials"), nil
	}
	return Success(entry.user), nil
}
