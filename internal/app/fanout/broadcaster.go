package fanout

import (
	"sync"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// Broadcaster pushes a validated transition event to every session of the
// event's tenant. Delivery to each session is an independent non-blocking
// offer: a slow or blocked consumer is marked stale instead of delaying the
// others.
type Broadcaster struct {
	registry *Registry
	streams  *Streams
	logger   logger.Logger

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

func NewBroadcaster(registry *Registry, streams *Streams, lgr logger.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		streams:  streams,
		logger:   lgr,
		tenants:  make(map[string]*sync.Mutex),
	}
}

// Publish appends the event to the tenant's stream tail and fans it out.
// Returns the assigned sequence.
//
// Stamping and fan-out happen under a per-tenant lock: without it, two
// concurrent publishes could reach a session's backlog in the opposite of
// sequence order, and the write pump would drop the older event as a
// duplicate.
func (b *Broadcaster) Publish(event domain.TransitionEvent) uint64 {
	lock := b.tenantLock(event.TenantID)
	lock.Lock()
	defer lock.Unlock()

	sev := b.streams.Append(event)

	for _, sub := range b.registry.SessionsFor(event.TenantID) {
		if sub.Offer(sev) {
			continue
		}
		// The session fell behind. It must resync on next contact rather
		// than receive a truncated stream.
		sub.MarkStale()
		b.logger.Warn("session_backlog_overflow", "Session marked stale", event.OrderID, map[string]interface{}{
			"tenant_id":  event.TenantID,
			"session_id": sub.SessionID(),
			"sequence":   sev.Sequence,
		})
	}

	return sev.Sequence
}

func (b *Broadcaster) tenantLock(tenantID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock := b.tenants[tenantID]
	if lock == nil {
		lock = &sync.Mutex{}
		b.tenants[tenantID] = lock
	}
	return lock
}

// Streams exposes the tenant stream tail for replay on reconnect.
func (b *Broadcaster) Streams() *Streams {
	return b.streams
}
