package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// NotificationHandler is a reference consumer for the mirrored event stream.
// Events re-emitted by the reconciliation sweep arrive with the same event
// id, so the handler deduplicates before acting.
type NotificationHandler struct {
	logger logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

func (h *NotificationHandler) HandleTransition(ctx context.Context, body []byte) error {
	var event domain.TransitionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse transition event", "", nil, err)
		return err
	}

	h.mu.Lock()
	if _, dup := h.seen[event.ID]; dup {
		h.mu.Unlock()
		h.logger.Debug("event_deduplicated", "Dropping re-emitted event", event.OrderID, map[string]interface{}{
			"event_id": event.ID,
		})
		return nil
	}
	h.seen[event.ID] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("notification_received", fmt.Sprintf("Received transition for order %s", event.OrderID),
		event.OrderID, map[string]interface{}{
			"tenant_id":  event.TenantID,
			"new_status": event.NewStatus,
		})

	fmt.Printf("Order %s (%s): %s -> %s (version %d)\n",
		event.OrderID, event.TenantID, event.PreviousStatus, event.NewStatus, event.Version)

	return nil
}
