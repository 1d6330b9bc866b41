package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
	"github.com/toleubekov/kitchen-sync/internal/config"
)

// Manager owns session lifecycles: creation on handshake, suspension on
// transient disconnect, resumption inside the grace window, and teardown.
type Manager struct {
	cfg    config.SessionConfig
	logger logger.Logger

	mu        sync.Mutex
	suspended map[string]*Session
	timers    map[string]*time.Timer
}

func NewManager(cfg config.SessionConfig, lgr logger.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    lgr,
		suspended: make(map[string]*Session),
		timers:    make(map[string]*time.Timer),
	}
}

// Attach returns the session for a freshly handshaken connection. When the
// client presents the resume token of a suspended session owned by the same
// tenant and subject, that session is reused with its acked position intact.
// Otherwise a new session identity is created and the client replays from
// its claimed position or resyncs.
func (m *Manager) Attach(tenantID, subject, resumeToken string) (*Session, bool) {
	if resumeToken != "" {
		if s := m.takeSuspended(resumeToken, tenantID, subject); s != nil {
			// Replay from the tenant stream supersedes anything buffered
			// while disconnected.
			s.drainBacklog()
			s.setState(StateConnecting)
			m.logger.Debug("session_resumed", "Session resumed inside grace window", s.id, map[string]interface{}{
				"tenant_id": tenantID,
			})
			return s, true
		}
	}

	return &Session{
		id:          uuid.NewString(),
		tenantID:    tenantID,
		subject:     subject,
		resumeToken: uuid.NewString(),
		backlog:     make(chan fanout.SequencedEvent, m.cfg.BacklogSize),
		state:       StateConnecting,
	}, false
}

func (m *Manager) takeSuspended(resumeToken, tenantID, subject string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.suspended[resumeToken]
	if s == nil {
		return nil
	}
	// The token alone is not enough: the resumed identity must match.
	if s.tenantID != tenantID || s.subject != subject {
		return nil
	}

	delete(m.suspended, resumeToken)
	if t := m.timers[resumeToken]; t != nil {
		t.Stop()
		delete(m.timers, resumeToken)
	}
	return s
}

// Activate marks the session live after handshake and replay are arranged.
func (m *Manager) Activate(s *Session) {
	s.setState(StateActive)
}

// Suspend parks a session after a transient connection loss. The same
// identity can be resumed within the grace window; afterwards the session
// drains and closes.
func (m *Manager) Suspend(s *Session) {
	if s.State() == StateClosed {
		return
	}
	s.setState(StateConnecting)

	m.mu.Lock()
	defer m.mu.Unlock()

	token := s.resumeToken
	m.suspended[token] = s
	m.timers[token] = time.AfterFunc(m.cfg.ResumeGrace(), func() {
		m.expire(token)
	})
}

func (m *Manager) expire(resumeToken string) {
	m.mu.Lock()
	s := m.suspended[resumeToken]
	delete(m.suspended, resumeToken)
	delete(m.timers, resumeToken)
	m.mu.Unlock()

	if s == nil {
		return
	}
	s.setState(StateDraining)
	s.drainBacklog()
	s.setState(StateClosed)

	m.logger.Debug("session_expired", "Suspended session expired", s.id, map[string]interface{}{
		"tenant_id": s.tenantID,
	})
}

// Close tears a session down immediately (logout, heartbeat timeout).
func (m *Manager) Close(s *Session) {
	m.mu.Lock()
	if _, ok := m.suspended[s.resumeToken]; ok {
		delete(m.suspended, s.resumeToken)
		if t := m.timers[s.resumeToken]; t != nil {
			t.Stop()
			delete(m.timers, s.resumeToken)
		}
	}
	m.mu.Unlock()

	s.setState(StateDraining)
	s.drainBacklog()
	s.setState(StateClosed)
}
