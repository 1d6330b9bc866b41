package fanout

import (
	"sync"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// SequencedEvent is a transition event stamped with its position in the
// owning tenant's stream. Sequences are monotonic per tenant and start at 1.
type SequencedEvent struct {
	Sequence uint64
	Event    domain.TransitionEvent
}

// Streams holds the retention-bounded event tail of every tenant. The tail
// lets a reconnecting display request "everything since sequence N" instead
// of a full resync. Retention is count-based; history older than the tail is
// gone and forces a resync.
type Streams struct {
	retention int

	mu      sync.RWMutex
	tenants map[string]*tenantStream
}

type tenantStream struct {
	mu     sync.Mutex
	next   uint64
	events []SequencedEvent
}

func NewStreams(retention int) *Streams {
	if retention < 1 {
		retention = 1
	}
	return &Streams{
		retention: retention,
		tenants:   make(map[string]*tenantStream),
	}
}

func (s *Streams) tenant(tenantID string) *tenantStream {
	s.mu.RLock()
	ts := s.tenants[tenantID]
	s.mu.RUnlock()
	if ts != nil {
		return ts
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ts = s.tenants[tenantID]; ts == nil {
		ts = &tenantStream{next: 1}
		s.tenants[tenantID] = ts
	}
	return ts
}

// Append stamps the event with the tenant's next sequence and retains it in
// the tail, evicting the oldest entry once the tail is full.
func (s *Streams) Append(event domain.TransitionEvent) SequencedEvent {
	ts := s.tenant(event.TenantID)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	sev := SequencedEvent{Sequence: ts.next, Event: event}
	ts.next++

	ts.events = append(ts.events, sev)
	if len(ts.events) > s.retention {
		ts.events = append(ts.events[:0:0], ts.events[len(ts.events)-s.retention:]...)
	}
	return sev
}

// Since returns the retained events after afterSeq, in order. ok is false
// when the tail no longer covers the request (or the tenant's history is
// unknown to this node), in which case the caller must resync instead of
// receiving a silently truncated stream.
func (s *Streams) Since(tenantID string, afterSeq uint64) ([]SequencedEvent, bool) {
	s.mu.RLock()
	ts := s.tenants[tenantID]
	s.mu.RUnlock()

	if ts == nil {
		// No history for this tenant on this node. A fresh subscription is
		// fine; a claimed prior position is not verifiable.
		return nil, afterSeq == 0
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	last := ts.next - 1
	if afterSeq > last {
		return nil, false
	}
	if afterSeq == last {
		return nil, true
	}

	if len(ts.events) == 0 {
		return nil, false
	}
	first := ts.events[0].Sequence
	if afterSeq+1 < first {
		return nil, false
	}

	out := make([]SequencedEvent, 0, last-afterSeq)
	for _, sev := range ts.events {
		if sev.Sequence > afterSeq {
			out = append(out, sev)
		}
	}
	return out, true
}

// Head returns the latest assigned sequence for the tenant, 0 if none.
func (s *Streams) Head(tenantID string) uint64 {
	s.mu.RLock()
	ts := s.tenants[tenantID]
	s.mu.RUnlock()
	if ts == nil {
		return 0
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.next - 1
}
