package domain

import "time"

// TransitionEvent is the immutable record produced exactly once per accepted
// transition. Created and owned by the transition coordinator, consumed
// read-only by the broadcaster and display sessions. ID is used by consumers
// to deduplicate re-emitted events after a recovery sweep.
type TransitionEvent struct {
	ID             string      `json:"event_id"`
	TenantID       string      `json:"tenant_id"`
	OrderID        string      `json:"order_id"`
	PreviousStatus Status      `json:"previous_status"`
	NewStatus      Status      `json:"new_status"`
	Version        int64       `json:"version"`
	OccurredAt     time.Time   `json:"timestamp"`
	Items          []OrderItem `json:"items"`
	ChangedBy      string      `json:"changed_by,omitempty"`
}
