package ws

import (
	"time"

	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
	"github.com/toleubekov/kitchen-sync/internal/config"
	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// HandshakeRequest is the first frame a display client sends after the
// upgrade. The tenant id is cross-checked against the verified token
// identity; it is never trusted on its own.
type HandshakeRequest struct {
	TenantID          string  `json:"tenant_id"`
	AuthToken         string  `json:"auth_token"`
	LastAckedSequence *uint64 `json:"last_acked_sequence,omitempty"`
	ResumeToken       string  `json:"resume_token,omitempty"`
}

const (
	frameActive    = "active"
	frameResync    = "resync_required"
	frameEvent     = "event"
	frameHeartbeat = "heartbeat"
	frameError     = "error"

	clientFrameAck       = "ack"
	clientFrameHeartbeat = "heartbeat"
	clientFrameLogout    = "logout"
)

// helloFrame answers the handshake: either "active" (replay follows) or
// "resync_required" (client must reload full state, live events follow).
// It carries the reconnect contract so clients never hardcode backoff.
type helloFrame struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"session_id"`
	ResumeToken string                 `json:"resume_token"`
	ReplayFrom  uint64                 `json:"replay_from,omitempty"`
	Reconnect   config.ReconnectConfig `json:"reconnect"`
}

type eventFrame struct {
	Type           string             `json:"type"`
	Sequence       uint64             `json:"sequence"`
	EventID        string             `json:"event_id"`
	TenantID       string             `json:"tenant_id"`
	OrderID        string             `json:"order_id"`
	PreviousStatus domain.Status      `json:"previous_status"`
	NewStatus      domain.Status      `json:"new_status"`
	Version        int64              `json:"version"`
	Timestamp      time.Time          `json:"timestamp"`
	Items          []domain.OrderItem `json:"items"`
}

func newEventFrame(sev fanout.SequencedEvent) eventFrame {
	return eventFrame{
		Type:           frameEvent,
		Sequence:       sev.Sequence,
		EventID:        sev.Event.ID,
		TenantID:       sev.Event.TenantID,
		OrderID:        sev.Event.OrderID,
		PreviousStatus: sev.Event.PreviousStatus,
		NewStatus:      sev.Event.NewStatus,
		Version:        sev.Event.Version,
		Timestamp:      sev.Event.OccurredAt,
		Items:          sev.Event.Items,
	}
}

type resyncFrame struct {
	Type string `json:"type"`
}

type heartbeatFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// clientFrame is anything the client sends after the handshake.
type clientFrame struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence,omitempty"`
}
