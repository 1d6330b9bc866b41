package fanout_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
)

type recordingSub struct {
	id     string
	tenant string

	mu       sync.Mutex
	received []fanout.SequencedEvent
	stale    bool
	capacity int
}

func newRecordingSub(id, tenant string, capacity int) *recordingSub {
	return &recordingSub{id: id, tenant: tenant, capacity: capacity}
}

func (s *recordingSub) SessionID() string { return s.id }

func (s *recordingSub) Offer(ev fanout.SequencedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity > 0 && len(s.received) >= s.capacity {
		return false
	}
	s.received = append(s.received, ev)
	return true
}

func (s *recordingSub) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *recordingSub) events() []fanout.SequencedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fanout.SequencedEvent, len(s.received))
	copy(out, s.received)
	return out
}

func TestRegistry_SessionsForReturnsOnlyOwnTenant(t *testing.T) {
	r := fanout.NewRegistry()

	a := newRecordingSub("a", "t1", 0)
	b := newRecordingSub("b", "t1", 0)
	c := newRecordingSub("c", "t2", 0)

	r.Register("t1", a)
	r.Register("t1", b)
	r.Register("t2", c)

	require.ElementsMatch(t, []fanout.Subscriber{a, b}, r.SessionsFor("t1"))
	require.ElementsMatch(t, []fanout.Subscriber{c}, r.SessionsFor("t2"))
	require.Empty(t, r.SessionsFor("t3"))

	r.Unregister("t1", a)
	require.ElementsMatch(t, []fanout.Subscriber{b}, r.SessionsFor("t1"))
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := fanout.NewRegistry()
	r.Unregister("nope", newRecordingSub("x", "nope", 0))
	require.Empty(t, r.SessionsFor("nope"))
}

// Tenant isolation under concurrent register/unregister/broadcast load:
// a session registered under tenant T must never receive an event for T'.
func TestRegistry_TenantIsolationUnderStress(t *testing.T) {
	const (
		tenants    = 4
		sessions   = 8
		broadcasts = 200
	)

	r := fanout.NewRegistry()
	streams := fanout.NewStreams(1024)
	b := fanout.NewBroadcaster(r, streams, noopLogger{})

	var subs []*recordingSub
	for ti := 0; ti < tenants; ti++ {
		for si := 0; si < sessions; si++ {
			tenant := fmt.Sprintf("tenant-%d", ti)
			subs = append(subs, newRecordingSub(fmt.Sprintf("s-%d-%d", ti, si), tenant, 0))
		}
	}

	var wg sync.WaitGroup

	// Churn: every session keeps registering and unregistering under its
	// own tenant while broadcasts run.
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *recordingSub) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(len(sub.id))))
			for i := 0; i < 50; i++ {
				r.Register(sub.tenant, sub)
				if rng.Intn(2) == 0 {
					r.Unregister(sub.tenant, sub)
				}
			}
			r.Register(sub.tenant, sub)
		}(sub)
	}

	for ti := 0; ti < tenants; ti++ {
		wg.Add(1)
		go func(ti int) {
			defer wg.Done()
			tenant := fmt.Sprintf("tenant-%d", ti)
			for i := 1; i <= broadcasts; i++ {
				b.Publish(event(tenant, i))
			}
		}(ti)
	}

	wg.Wait()

	for _, sub := range subs {
		for _, ev := range sub.events() {
			require.Equal(t, sub.tenant, ev.Event.TenantID,
				"session %s of %s received event for %s", sub.id, sub.tenant, ev.Event.TenantID)
		}
	}
}

// Events a single session observes arrive in stream order with no
// duplicates even while broadcasts race.
func TestRegistry_DeliveryOrderPerSession(t *testing.T) {
	r := fanout.NewRegistry()
	streams := fanout.NewStreams(4096)
	b := fanout.NewBroadcaster(r, streams, noopLogger{})

	sub := newRecordingSub("s1", "t1", 0)
	r.Register("t1", sub)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Publish(event("t1", i))
			}
		}()
	}
	wg.Wait()

	events := sub.events()
	require.Len(t, events, 400)
	var last uint64
	for _, ev := range events {
		require.Greater(t, ev.Sequence, last, "sequence must strictly increase per session")
		last = ev.Sequence
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, string, string, map[string]interface{})         {}
func (noopLogger) Debug(string, string, string, map[string]interface{})        {}
func (noopLogger) Warn(string, string, string, map[string]interface{})         {}
func (noopLogger) Error(string, string, string, map[string]interface{}, error) {}
