package interfaces

import (
	"context"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// TransitionService is the transition coordinator (Business Logic).
type TransitionService interface {
	RequestTransition(ctx context.Context, cmd TransitionCommand) (*domain.TransitionEvent, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error)
}

// TransitionCommand is an inbound status-change request from a staff or
// kitchen UI collaborator.
type TransitionCommand struct {
	OrderID         string
	RequestedStatus domain.Status
	ExpectedVersion int64
	RequestedBy     string
}
