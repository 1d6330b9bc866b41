package ws

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toleubekov/kitchen-sync/internal/adapter/auth"
	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
	"github.com/toleubekov/kitchen-sync/internal/app/session"
	"github.com/toleubekov/kitchen-sync/internal/config"
	"github.com/toleubekov/kitchen-sync/internal/domain"
)

const handshakeTimeout = 10 * time.Second

// Handler owns the websocket side of a display session: handshake and auth
// handoff, replay, heartbeat, and orderly teardown. One read pump and one
// write pump per connection; gorilla/websocket permits a single concurrent
// writer, and all writes happen on the write pump after the handshake.
type Handler struct {
	upgrader websocket.Upgrader
	verifier auth.TokenVerifier
	manager  *session.Manager
	registry *fanout.Registry
	streams  *fanout.Streams
	logger   logger.Logger
	cfg      config.SessionConfig
}

func NewHandler(
	verifier auth.TokenVerifier,
	manager *session.Manager,
	registry *fanout.Registry,
	streams *fanout.Streams,
	lgr logger.Logger,
	cfg config.SessionConfig,
) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser kitchen displays connect cross-origin from the POS app.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		verifier: verifier,
		manager:  manager,
		registry: registry,
		streams:  streams,
		logger:   lgr,
		cfg:      cfg,
	}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws_upgrade_failed", "Failed to upgrade connection", "", nil, err)
		return
	}
	defer conn.Close()

	sess, ok := h.handshake(conn)
	if !ok {
		return
	}

	reason := h.readPump(conn, sess)

	h.registry.Unregister(sess.TenantID(), sess)

	switch reason {
	case reasonTransient:
		// Same identity may resume within the grace window.
		h.manager.Suspend(sess)
	default:
		h.manager.Close(sess)
	}

	h.logger.Debug("session_disconnected", "Display session disconnected", sess.SessionID(), map[string]interface{}{
		"tenant_id": sess.TenantID(),
		"reason":    string(reason),
	})
}

// handshake authenticates the connection and arranges replay. Registration
// happens after a successful handshake; the first replayed frames are
// written here before the pumps start.
func (h *Handler) handshake(conn *websocket.Conn) (*session.Session, bool) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	var req HandshakeRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("handshake_failed", "Failed to read handshake frame", "", nil)
		return nil, false
	}

	identity, err := h.verifier.Verify(req.AuthToken)
	if err != nil {
		h.reject(conn, domain.Code(err), "authentication failed")
		return nil, false
	}

	if identity.TenantID != req.TenantID {
		// Security-relevant: a client asked for another tenant's stream.
		h.logger.Warn("tenant_mismatch", "Authenticated identity does not match requested tenant", "", map[string]interface{}{
			"subject":          identity.Subject,
			"identity_tenant":  identity.TenantID,
			"requested_tenant": req.TenantID,
		})
		h.reject(conn, domain.Code(domain.ErrTenantMismatch), "authenticated identity does not match requested tenant")
		return nil, false
	}

	sess, resumed := h.manager.Attach(req.TenantID, identity.Subject, req.ResumeToken)

	lastAcked := sess.LastAcked()
	if !resumed && req.LastAckedSequence != nil {
		lastAcked = *req.LastAckedSequence
	}

	// Register before snapshotting the replay range: anything published from
	// here on lands in the backlog, and the write pump drops the overlap by
	// sequence. Without this ordering an event could fall between the replay
	// snapshot and registration and be lost.
	h.registry.Register(sess.TenantID(), sess)

	replay, replayOK := h.streams.Since(sess.TenantID(), lastAcked)
	needResync := !replayOK || sess.Stale()

	hello := helloFrame{
		Type:        frameActive,
		SessionID:   sess.SessionID(),
		ResumeToken: sess.ResumeToken(),
		Reconnect:   h.cfg.Reconnect,
	}
	if needResync {
		hello.Type = frameResync
		// Partial history is unusable; the client reloads full state and
		// picks up the live stream from the current head.
		lastAcked = h.streams.Head(sess.TenantID())
		sess.Ack(lastAcked)
		sess.ClearStale()
		replay = nil
	} else {
		hello.ReplayFrom = lastAcked
	}

	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
	if err := conn.WriteJSON(hello); err != nil {
		h.registry.Unregister(sess.TenantID(), sess)
		h.manager.Close(sess)
		return nil, false
	}

	lastSent := lastAcked
	for _, sev := range replay {
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
		if err := conn.WriteJSON(newEventFrame(sev)); err != nil {
			h.registry.Unregister(sess.TenantID(), sess)
			h.manager.Suspend(sess)
			return nil, false
		}
		lastSent = sev.Sequence
	}

	h.manager.Activate(sess)

	done := make(chan struct{})
	go h.writePump(conn, sess, lastSent, done)
	go func() {
		// writePump owns the connection writes; closing conn on pump exit
		// unblocks the read pump.
		<-done
		conn.Close()
	}()

	h.logger.Info("session_active", "Display session active", sess.SessionID(), map[string]interface{}{
		"tenant_id": sess.TenantID(),
		"subject":   sess.Subject(),
		"resumed":   resumed,
		"resync":    needResync,
	})
	return sess, true
}

type disconnectReason string

const (
	reasonTransient disconnectReason = "transient"
	reasonLogout    disconnectReason = "logout"
	reasonTimeout   disconnectReason = "heartbeat_timeout"
)

// readPump consumes client frames until the connection dies. Every received
// frame counts as liveness; silence beyond the heartbeat timeout tears the
// session down rather than leaving a stale registry entry.
func (h *Handler) readPump(conn *websocket.Conn, sess *session.Session) disconnectReason {
	for {
		conn.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout()))

		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return reasonTimeout
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return reasonLogout
			}
			return reasonTransient
		}

		switch frame.Type {
		case clientFrameAck:
			sess.Ack(frame.Sequence)
		case clientFrameHeartbeat:
			// Liveness only; the deadline reset above is the whole point.
		case clientFrameLogout:
			return reasonLogout
		default:
			h.logger.Debug("unknown_client_frame", "Ignoring unknown client frame", sess.SessionID(), map[string]interface{}{
				"frame_type": frame.Type,
			})
		}
	}
}

// writePump drains the session backlog onto the wire and emits heartbeats.
// A write that exceeds the per-write timeout kills this connection only;
// the broadcaster is never blocked by it.
func (h *Handler) writePump(conn *websocket.Conn, sess *session.Session, lastSent uint64, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case sev := <-sess.Events():
			if sess.Stale() {
				// Backlog overflowed behind our back; a truncated stream
				// must not be delivered as if it were complete.
				conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
				if err := conn.WriteJSON(resyncFrame{Type: frameResync}); err != nil {
					return
				}
				sess.ClearStale()
			}
			if sev.Sequence <= lastSent {
				// Duplicate from the registration/replay overlap window.
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
			if err := conn.WriteJSON(newEventFrame(sev)); err != nil {
				return
			}
			lastSent = sev.Sequence

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
			if err := conn.WriteJSON(heartbeatFrame{Type: frameHeartbeat}); err != nil {
				return
			}
		}

		if sess.State() == session.StateClosed {
			return
		}
	}
}

func (h *Handler) reject(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
	conn.WriteJSON(errorFrame{Type: frameError, Code: code, Message: message})
}
