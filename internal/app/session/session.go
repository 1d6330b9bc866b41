package session

import (
	"sync"
	"time"

	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
)

type State string

const (
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateDraining   State = "draining"
	StateClosed     State = "closed"
)

// Session is one display connection's identity and buffering state. It
// outlives a single network connection: a client reconnecting inside the
// resume grace window with a valid resume token gets the same session back,
// including its last-acknowledged position.
type Session struct {
	id          string
	tenantID    string
	subject     string
	resumeToken string

	backlog chan fanout.SequencedEvent

	mu         sync.Mutex
	state      State
	stale      bool
	lastAcked  uint64
	lastActive time.Time
}

func (s *Session) SessionID() string   { return s.id }
func (s *Session) TenantID() string    { return s.tenantID }
func (s *Session) Subject() string     { return s.subject }
func (s *Session) ResumeToken() string { return s.resumeToken }

// Events is the bounded backlog the write pump drains.
func (s *Session) Events() <-chan fanout.SequencedEvent {
	return s.backlog
}

// Offer enqueues the event without blocking. False means the backlog is full
// or the session is gone; the broadcaster reacts by marking the session
// stale.
func (s *Session) Offer(event fanout.SequencedEvent) bool {
	s.mu.Lock()
	state, stale := s.state, s.stale
	s.mu.Unlock()

	if state == StateClosed || state == StateDraining || stale {
		return false
	}

	select {
	case s.backlog <- event:
		return true
	default:
		return false
	}
}

func (s *Session) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Stale reports whether the session fell behind and owes its client a full
// resync on next contact.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// ClearStale is called once a resync has been arranged.
func (s *Session) ClearStale() {
	s.mu.Lock()
	s.stale = false
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	if state == StateActive {
		s.lastActive = time.Now()
	}
	s.mu.Unlock()
}

// Ack records the client's acknowledged sequence. Acks never move backwards.
func (s *Session) Ack(seq uint64) {
	s.mu.Lock()
	if seq > s.lastAcked {
		s.lastAcked = seq
	}
	s.mu.Unlock()
}

func (s *Session) LastAcked() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAcked
}

// drainBacklog empties buffered events. Used on resume: replay from the
// tenant stream supersedes whatever accumulated while disconnected.
func (s *Session) drainBacklog() {
	for {
		select {
		case <-s.backlog:
		default:
			return
		}
	}
}
