package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
	"github.com/toleubekov/kitchen-sync/internal/config"
	"github.com/toleubekov/kitchen-sync/internal/domain"
)

type silentLogger struct{}

func (silentLogger) Info(string, string, string, map[string]interface{})         {}
func (silentLogger) Debug(string, string, string, map[string]interface{})        {}
func (silentLogger) Warn(string, string, string, map[string]interface{})         {}
func (silentLogger) Error(string, string, string, map[string]interface{}, error) {}

func testConfig(backlog, graceSec int) config.SessionConfig {
	return config.SessionConfig{
		BacklogSize:    backlog,
		ResumeGraceSec: graceSec,
	}
}

func sequenced(seq uint64) fanout.SequencedEvent {
	return fanout.SequencedEvent{
		Sequence: seq,
		Event:    domain.TransitionEvent{ID: "ev", TenantID: "t1"},
	}
}

func TestManager_AttachCreatesFreshSession(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, resumed := m.Attach("t1", "display-1", "")
	require.False(t, resumed)
	require.NotEmpty(t, s.SessionID())
	require.NotEmpty(t, s.ResumeToken())
	require.Equal(t, "t1", s.TenantID())
	require.Equal(t, StateConnecting, s.State())
}

func TestManager_ResumeWithinGraceKeepsIdentityAndAcks(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Activate(s)
	s.Ack(17)
	m.Suspend(s)

	resumedSession, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.True(t, resumed)
	require.Same(t, s, resumedSession)
	require.Equal(t, uint64(17), resumedSession.LastAcked())
}

func TestManager_ResumeRequiresMatchingIdentity(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Suspend(s)

	// Same token, different tenant: a new session, not a hijack.
	other, resumed := m.Attach("t2", "display-1", s.ResumeToken())
	require.False(t, resumed)
	require.NotEqual(t, s.SessionID(), other.SessionID())

	// The suspended original is still resumable by its rightful owner.
	back, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.True(t, resumed)
	require.Same(t, s, back)
}

func TestManager_ResumeTokenIsSingleUse(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Suspend(s)

	_, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.True(t, resumed)

	_, resumed = m.Attach("t1", "display-1", s.ResumeToken())
	require.False(t, resumed)
}

func TestManager_SuspendedSessionExpiresAfterGrace(t *testing.T) {
	m := NewManager(testConfig(8, 0), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Activate(s)
	m.Suspend(s)

	require.Eventually(t, func() bool {
		return s.State() == StateClosed
	}, time.Second, 10*time.Millisecond)

	_, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.False(t, resumed, "expired sessions cannot be resumed")
}

func TestManager_CloseStopsResumption(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Suspend(s)
	m.Close(s)

	require.Equal(t, StateClosed, s.State())
	_, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.False(t, resumed)
}

func TestSession_OfferBoundedBacklog(t *testing.T) {
	m := NewManager(testConfig(2, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Activate(s)

	require.True(t, s.Offer(sequenced(1)))
	require.True(t, s.Offer(sequenced(2)))
	require.False(t, s.Offer(sequenced(3)), "full backlog must refuse, not block")
}

func TestSession_OfferRefusedWhenStaleOrClosed(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Activate(s)

	s.MarkStale()
	require.False(t, s.Offer(sequenced(1)))
	s.ClearStale()
	require.True(t, s.Offer(sequenced(1)))

	m.Close(s)
	require.False(t, s.Offer(sequenced(2)))
}

func TestSession_AcksNeverMoveBackwards(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	s.Ack(10)
	s.Ack(4)
	require.Equal(t, uint64(10), s.LastAcked())
	s.Ack(11)
	require.Equal(t, uint64(11), s.LastAcked())
}

func TestManager_ResumeDropsBufferedBacklog(t *testing.T) {
	m := NewManager(testConfig(8, 30), silentLogger{})

	s, _ := m.Attach("t1", "display-1", "")
	m.Activate(s)
	s.Offer(sequenced(1))
	s.Offer(sequenced(2))
	m.Suspend(s)

	resumedSession, resumed := m.Attach("t1", "display-1", s.ResumeToken())
	require.True(t, resumed)

	select {
	case ev := <-resumedSession.Events():
		t.Fatalf("backlog should be empty after resume, got sequence %d", ev.Sequence)
	default:
	}
}
