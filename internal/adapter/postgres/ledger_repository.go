package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toleubekov/kitchen-sync/internal/domain"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

type ledgerRepository struct {
	db DB
}

func NewBroadcastLedger(db DB) interfaces.BroadcastLedger {
	return &ledgerRepository{db: db}
}

// ListPending returns events whose ledger row was committed at least
// olderThan ago and never marked broadcast. Recent rows are left alone so
// the sweep does not race the in-flight request that wrote them.
func (r *ledgerRepository) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.TransitionEvent, error) {
	query := `
		SELECT payload
		FROM broadcast_ledger
		WHERE broadcast_at IS NULL AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	cutoff := time.Now().Add(-olderThan)
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending broadcasts: %w", err)
	}
	defer rows.Close()

	var events []*domain.TransitionEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}

		var event domain.TransitionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger payload: %w", err)
		}
		events = append(events, &event)
	}

	return events, nil
}

func (r *ledgerRepository) MarkBroadcast(ctx context.Context, eventID string) error {
	query := `
		UPDATE broadcast_ledger
		SET broadcast_at = $1
		WHERE event_id = $2 AND broadcast_at IS NULL
	`
	if _, err := r.db.Exec(ctx, query, time.Now(), eventID); err != nil {
		return fmt.Errorf("failed to mark event broadcast: %w", err)
	}
	return nil
}
