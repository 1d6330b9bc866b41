package interfaces

import (
	"context"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// EventPublisher mirrors accepted transition events to the broker so
// non-display collaborators (expo printers, analytics) can subscribe.
// The mirror is best-effort: in-process fan-out to displays never waits
// on it.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event *domain.TransitionEvent) error
}

// EventConsumer delivers mirrored transition events to a handler.
type EventConsumer interface {
	ConsumeTransitions(ctx context.Context, handler TransitionEventHandler) error
}

type TransitionEventHandler func(ctx context.Context, body []byte) error
