package auth

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// Registry maps pending OAuth state values to the provider that started the flow,
// so the HTTP callback can complete sign-in on the right connection.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	pending map[string]pendingSignIn
}

type pendingSignIn struct {
	provider *Provider
	expires  time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, clock: time.Now, pending: make(map[string]pendingSignIn)}
}

// Register returns a fresh state value bound to p.
func (r *Registry) Register(p *Provider) string {
	state := xid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	for k, v := range r.pending {
		if now.After(v.expires) {
			delete(r.pending, k)
		}
	}
	r.pending[state] = pendingSignIn{provider: p, expires: now.Add(r.ttl)}
	return state
}

// Resolve consumes state. It reports false for unknown or expired values.
func (r *Registry) Resolve(state string) (*Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[state]
	if !ok {
		return nil, false
	}
	delete(r.pending, state)
	if r.clock().After(entry.expires) {
		return nil, false
	}
	return entry.provider, true
}

// Forget drops every pending state bound to p.
func (r *Registry) Forget(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.pending {
		if v.provider == p {
			delete(r.pending, k)
		}
	}
}
