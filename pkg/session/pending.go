package session

import (
	"sync"
	"time"

	"github.com/entrhq/sessiond/pkg/browser"
)

// pendingLogin is the in-memory record of a session mid-login: an open
// browser context that has not yet been persisted. Lost on restart.
type pendingLogin struct {
	key      Key
	context  browser.Context
	loginURL string
	openedAt time.Time
}

// pendingRegistry tracks sessions currently mid-login. It is the only
// mutable shared state in the core; every mutation is atomic under its
// lock. At most one entry may exist per key.
type pendingRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingLogin
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{entries: make(map[string]*pendingLogin)}
}

// add registers a pending login, reporting false if one already exists for
// the key.
func (r *pendingRegistry) add(p *pendingLogin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[p.key.String()]; exists {
		return false
	}
	r.entries[p.key.String()] = p
	return true
}

// get returns the pending login for a key, or nil.
func (r *pendingRegistry) get(key Key) *pendingLogin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[key.String()]
}

// remove drops and returns the pending login for a key, or nil.
func (r *pendingRegistry) remove(key Key) *pendingLogin {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.entries[key.String()]
	delete(r.entries, key.String())
	return p
}

// has reports whether a login is pending for the key.
func (r *pendingRegistry) has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.entries[key.String()]
	return exists
}

// drain removes and returns all pending logins, for shutdown.
func (r *pendingRegistry) drain() []*pendingLogin {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*pendingLogin, 0, len(r.entries))
	for k, p := range r.entries {
		drained = append(drained, p)
		delete(r.entries, k)
	}
	return drained
}

// count returns the number of pending logins.
func (r *pendingRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
