package registry

import (
	"sync"
	"time"

	"github.com/securemessenger/relay/shared"
)

// Session associates a connection with its announced username.
type Session struct {
	Client   *shared.Client
	Username string
	JoinedAt time.Time
}

// Registry tracks every live connection's remote address and, once a
// username has been announced, its session. All access goes through
// one mutex; the dispatcher iterates over copies, never the maps.
type Registry struct {
	mu       sync.RWMutex
	addrs    map[*shared.Client]string
	sessions map[*shared.Client]Session
}

func New() *Registry {
	return &Registry{
		addrs:    make(map[*shared.Client]string),
		sessions: make(map[*shared.Client]Session),
	}
}

// Register records a connection's remote address. The first address
// recorded for a connection sticks for its lifetime; registering the
// same connection again is a no-op.
func (r *Registry) Register(c *shared.Client, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.addrs[c]; !exists {
		r.addrs[c] = addr
	}
}

// SetUsername creates or overwrites the username association. Any
// text is accepted, collisions included; the last announcement wins.
// The join time of the first announcement is kept on overwrite.
func (r *Registry) SetUsername(c *shared.Client, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joinedAt := time.Now()
	if existing, ok := r.sessions[c]; ok {
		joinedAt = existing.JoinedAt
	}
	r.sessions[c] = Session{Client: c, Username: username, JoinedAt: joinedAt}
}

// Remove deletes the address and session for c. Removing an unknown
// or already-removed connection is a no-op.
func (r *Registry) Remove(c *shared.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.addrs, c)
	delete(r.sessions, c)
}

// Snapshot returns a point-in-time copy of every session for safe
// iteration while other goroutines mutate the registry. Connections
// that have not announced a username are not included.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// FindByUsername returns the first connection currently associated
// with username. Usernames are not unique; which duplicate wins is
// unspecified.
func (r *Registry) FindByUsername(username string) (*shared.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c, sess := range r.sessions {
		if sess.Username == username {
			return c, true
		}
	}
	return nil, false
}

// Username returns the username announced by c, if any.
func (r *Registry) Username(c *shared.Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[c]
	return sess.Username, ok
}

// Addr returns the remote address recorded for c, if any.
func (r *Registry) Addr(c *shared.Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.addrs[c]
	return addr, ok
}

// Clients returns every registered connection, with or without a
// username. Used by the server to close sockets on shutdown.
func (r *Registry) Clients() []*shared.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*shared.Client, 0, len(r.addrs))
	for c := range r.addrs {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.addrs)
}
