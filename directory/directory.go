// Package directory maps authenticated user identities to their live,
// server-side connections so a server can route an outbound request to
// "whichever connection user X is on" without callers tracking sockets
// themselves.
package directory

import (
	"sync"

	"github.com/coregx/conduit/connstate"
)

// Directory is a concurrent-safe user-to-connection map. The zero value
// is ready to use; Put allocates the map on first use.
type Directory struct {
	mu    sync.RWMutex
	byUser map[string]*connstate.Connection
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{byUser: make(map[string]*connstate.Connection)}
}

// Put registers conn as userID's current connection, replacing any
// previous one (the caller is responsible for deciding whether the
// replaced connection should be closed).
func (d *Directory) Put(userID string, conn *connstate.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byUser == nil {
		d.byUser = make(map[string]*connstate.Connection)
	}
	d.byUser[userID] = conn
}

// Get returns userID's current connection, if any.
func (d *Directory) Get(userID string) (*connstate.Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.byUser[userID]
	return conn, ok
}

// Remove deletes userID's entry, if it still points at conn. This guards
// against a stale Remove racing a newer Put for the same user (e.g. a
// reconnect landing before the old connection's teardown runs).
func (d *Directory) Remove(userID string, conn *connstate.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.byUser[userID]; ok && current == conn {
		delete(d.byUser, userID)
	}
}

// Len reports the number of registered users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}
