package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusPickedUp  Status = "picked_up"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// validTransitions is the single source of truth for the order lifecycle.
// completed and cancelled are terminal: no outgoing transitions.
var validTransitions = map[Status][]Status{
	StatusNew:       {StatusPending, StatusCancelled},
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

// ValidateTransition decides whether an order currently in current may move
// to requested. Pure function, no side effects. A status outside the closed
// set is rejected with ErrUnknownStatus, never coerced to a default: a
// missing-status bug must fail loudly rather than render as some arbitrary
// display fallback.
func ValidateTransition(current, requested Status) error {
	if !current.Valid() {
		return fmt.Errorf("%w: stored status %q", ErrUnknownStatus, string(current))
	}
	if !requested.Valid() {
		return fmt.Errorf("%w: requested status %q", ErrUnknownStatus, string(requested))
	}

	for _, next := range validTransitions[current] {
		if next == requested {
			return nil
		}
	}
	return fmt.Errorf("%w: from %q to %q", ErrInvalidTransition, current, requested)
}

// StatusLog represents a log entry for order status changes
type StatusLog struct {
	ID        int
	OrderID   string
	Status    Status
	ChangedBy string
	ChangedAt time.Time
}
