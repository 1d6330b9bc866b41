package fanout

import "sync"

// Subscriber is one connected display session as the broadcaster sees it.
// Offer must not block: it reports false when the session cannot take the
// event (backlog full or session gone).
type Subscriber interface {
	SessionID() string
	Offer(event SequencedEvent) bool
	MarkStale()
}

// Registry maps tenant ids to their currently connected display sessions.
// This is the multi-tenant isolation boundary: SessionsFor(t) never returns
// a session registered under a different tenant. Membership is guarded per
// tenant so traffic on one tenant cannot stall another.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*tenantSessions
}

// tenantSessions entries are retained for the life of the process once
// created; an empty entry is a few words and dropping it would race
// concurrent registration.
type tenantSessions struct {
	mu      sync.RWMutex
	members map[Subscriber]struct{}
}

func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string]*tenantSessions)}
}

func (r *Registry) entry(tenantID string) *tenantSessions {
	r.mu.RLock()
	e := r.tenants[tenantID]
	r.mu.RUnlock()
	if e != nil {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e = r.tenants[tenantID]; e == nil {
		e = &tenantSessions{members: make(map[Subscriber]struct{})}
		r.tenants[tenantID] = e
	}
	return e
}

func (r *Registry) Register(tenantID string, sub Subscriber) {
	e := r.entry(tenantID)
	e.mu.Lock()
	e.members[sub] = struct{}{}
	e.mu.Unlock()
}

func (r *Registry) Unregister(tenantID string, sub Subscriber) {
	r.mu.RLock()
	e := r.tenants[tenantID]
	r.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	delete(e.members, sub)
	e.mu.Unlock()
}

// SessionsFor returns a snapshot of the tenant's sessions. Broadcast iterates
// the snapshot, so registration never observes a torn set and never waits on
// delivery.
func (r *Registry) SessionsFor(tenantID string) []Subscriber {
	r.mu.RLock()
	e := r.tenants[tenantID]
	r.mu.RUnlock()
	if e == nil {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	subs := make([]Subscriber, 0, len(e.members))
	for sub := range e.members {
		subs = append(subs, sub)
	}
	return subs
}
