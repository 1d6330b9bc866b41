package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/domain"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

// Broadcaster is the in-process fan-out the coordinator hands accepted
// events to.
type Broadcaster interface {
	Publish(event domain.TransitionEvent) uint64
}

// Service is the transition coordinator: load -> validate -> persist with
// version check -> broadcast. It owns the at-most-one in-flight transition
// per order guarantee.
type Service struct {
	repo        interfaces.OrderRepository
	ledger      interfaces.BroadcastLedger
	broadcaster Broadcaster
	mirror      interfaces.EventPublisher
	logger      logger.Logger

	locks        *lockTable
	storeTimeout time.Duration
}

func NewService(
	repo interfaces.OrderRepository,
	ledger interfaces.BroadcastLedger,
	broadcaster Broadcaster,
	mirror interfaces.EventPublisher,
	lgr logger.Logger,
	storeTimeout time.Duration,
) *Service {
	return &Service{
		repo:         repo,
		ledger:       ledger,
		broadcaster:  broadcaster,
		mirror:       mirror,
		logger:       lgr,
		locks:        newLockTable(),
		storeTimeout: storeTimeout,
	}
}

func (s *Service) RequestTransition(ctx context.Context, cmd interfaces.TransitionCommand) (*domain.TransitionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	release, err := s.locks.acquire(ctx, cmd.OrderID)
	if err != nil {
		// Could not even serialize within the bound; nothing was attempted.
		return nil, fmt.Errorf("%w: waiting for order lock: %w", domain.ErrStorageUnavailable, err)
	}
	defer release()

	order, found, err := s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		// Reads have no side effects, so a failed or timed-out load is
		// plainly retryable.
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, cmd.OrderID)
	}

	if order.Version != cmd.ExpectedVersion {
		// The caller acted on a stale view. Report the conflict rather than
		// judging their request against a state they never saw; the database
		// guard in Save stays as the authoritative check.
		return nil, fmt.Errorf("%w: expected %d, stored %d", domain.ErrVersionConflict, cmd.ExpectedVersion, order.Version)
	}

	if err := domain.ValidateTransition(order.Status, cmd.RequestedStatus); err != nil {
		s.logger.Debug("transition_rejected", "Transition rejected by state machine", cmd.OrderID, map[string]interface{}{
			"current":   string(order.Status),
			"requested": string(cmd.RequestedStatus),
		})
		return nil, err
	}

	now := time.Now().UTC()
	previous := order.Status
	order.Status = cmd.RequestedStatus
	order.UpdatedAt = now

	event := &domain.TransitionEvent{
		ID:             uuid.NewString(),
		TenantID:       order.TenantID,
		OrderID:        order.ID,
		PreviousStatus: previous,
		NewStatus:      cmd.RequestedStatus,
		Version:        cmd.ExpectedVersion + 1,
		OccurredAt:     now,
		Items:          order.CloneItems(),
		ChangedBy:      cmd.RequestedBy,
	}

	newVersion, err := s.repo.Save(ctx, order, cmd.ExpectedVersion, event)
	if err != nil {
		return nil, s.classifySaveError(err)
	}
	order.Version = newVersion
	event.Version = newVersion

	seq := s.broadcaster.Publish(*event)
	s.confirmBroadcast(event.ID)

	s.logger.Info("transition_applied", "Order transition applied and broadcast", cmd.OrderID, map[string]interface{}{
		"tenant_id": order.TenantID,
		"from":      string(previous),
		"to":        string(cmd.RequestedStatus),
		"version":   newVersion,
		"sequence":  seq,
	})

	if s.mirror != nil {
		// Broker mirror is best-effort; display delivery never waits on it.
		if err := s.mirror.PublishTransition(ctx, event); err != nil {
			s.logger.Warn("mirror_publish_failed", "Failed to mirror event to broker", cmd.OrderID, map[string]interface{}{
				"event_id": event.ID,
			})
		}
	}

	return event, nil
}

func (s *Service) classifySaveError(err error) error {
	switch {
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrOrderNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The write may or may not have committed. Surfacing this as a
		// retryable failure could double-apply the transition.
		return fmt.Errorf("%w: %w", domain.ErrIndeterminate, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
}

// confirmBroadcast marks the ledger row after the in-process fan-out took
// the event. Uses a fresh context: the request deadline must not leave a
// delivered event looking pending forever. If the mark itself fails, the
// sweep re-emits and displays dedupe by event id.
func (s *Service) confirmBroadcast(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.ledger.MarkBroadcast(ctx, eventID); err != nil {
		s.logger.Warn("broadcast_confirm_failed", "Failed to mark event broadcast", eventID, map[string]interface{}{
			"event_id": eventID,
		})
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, found, err := s.repo.Load(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	logs, err := s.repo.GetStatusHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return logs, nil
}
