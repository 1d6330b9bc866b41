package fanout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
)

func TestBroadcaster_PublishAssignsSequenceAndDelivers(t *testing.T) {
	r := fanout.NewRegistry()
	streams := fanout.NewStreams(16)
	b := fanout.NewBroadcaster(r, streams, noopLogger{})

	sub := newRecordingSub("s1", "t1", 0)
	r.Register("t1", sub)

	seq := b.Publish(event("t1", 1))
	require.Equal(t, uint64(1), seq)

	got := sub.events()
	require.Len(t, got, 1)
	require.Equal(t, uint64(1), got[0].Sequence)
	require.Equal(t, "ev-t1-1", got[0].Event.ID)
}

func TestBroadcaster_SlowConsumerMarkedStaleOthersUnaffected(t *testing.T) {
	r := fanout.NewRegistry()
	streams := fanout.NewStreams(16)
	b := fanout.NewBroadcaster(r, streams, noopLogger{})

	// The slow session can only hold two events before its offers fail.
	slow := newRecordingSub("slow", "t1", 2)
	healthy := newRecordingSub("healthy", "t1", 0)
	r.Register("t1", slow)
	r.Register("t1", healthy)

	for i := 1; i <= 5; i++ {
		b.Publish(event("t1", i))
	}

	slow.mu.Lock()
	require.True(t, slow.stale, "overflowing session must be marked stale")
	slow.mu.Unlock()
	require.Len(t, slow.events(), 2)

	healthy.mu.Lock()
	require.False(t, healthy.stale)
	healthy.mu.Unlock()
	require.Len(t, healthy.events(), 5, "healthy sessions keep receiving")
}

func TestBroadcaster_EventsRetainedForReplayEvenWithNoSessions(t *testing.T) {
	r := fanout.NewRegistry()
	streams := fanout.NewStreams(16)
	b := fanout.NewBroadcaster(r, streams, noopLogger{})

	for i := 1; i <= 3; i++ {
		b.Publish(event("t1", i))
	}

	replay, ok := b.Streams().Since("t1", 0)
	require.True(t, ok)
	require.Len(t, replay, 3)
}
