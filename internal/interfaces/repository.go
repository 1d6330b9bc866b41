package interfaces

import (
	"context"
	"time"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// OrderRepository is the order store adapter (Adapter/Postgres). Save is the
// optimistic-concurrency primitive: it fails with domain.ErrVersionConflict
// when the stored version does not equal expectedVersion. The adapter never
// retries internally; retry policy lives with the caller.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Load(ctx context.Context, orderID string) (*domain.Order, bool, error)
	// Save persists the transition and, in the same transaction, a status-log
	// row and a pending-broadcast ledger row for event. Returns the new version.
	Save(ctx context.Context, order *domain.Order, expectedVersion int64, event *domain.TransitionEvent) (int64, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error)
}

// BroadcastLedger tracks events persisted but not yet confirmed broadcast.
// The reconciliation sweep re-emits rows that stay pending beyond a bound,
// so a crash between persist and broadcast is observable only for a bounded
// recovery window.
type BroadcastLedger interface {
	ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.TransitionEvent, error)
	MarkBroadcast(ctx context.Context, eventID string) error
}
