package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/toleubekov/kitchen-sync/internal/domain"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, tenant_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, query,
		order.ID, order.TenantID, order.Status, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		itemQuery := `
			INSERT INTO order_items (order_id, name, quantity, station, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err = tx.QueryRow(ctx, itemQuery,
			order.ID, order.Items[i].Name, order.Items[i].Quantity,
			order.Items[i].Station, order.Items[i].Notes, time.Now(),
		).Scan(&order.Items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		order.Items[i].OrderID = order.ID
	}

	logQuery := `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.Exec(ctx, logQuery, order.ID, order.Status, "order-service", time.Now())
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) Load(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	query := `
		SELECT id, tenant_id, status, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order domain.Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID, &order.TenantID, &order.Status, &order.Version,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, name, quantity, station, notes
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, itemsQuery, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.Quantity, &item.Station, &item.Notes); err != nil {
			return nil, false, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return &order, true, nil
}

// Save applies the transition under an optimistic version guard. The order
// row update, the status-log row and the pending-broadcast ledger row commit
// atomically: either all of them land or none do.
func (r *orderRepository) Save(ctx context.Context, order *domain.Order, expectedVersion int64, event *domain.TransitionEvent) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	tag, err := tx.Exec(ctx, query, order.Status, order.UpdatedAt, order.ID, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Guard did not match: either the order vanished or a concurrent
		// writer bumped the version first.
		var stored int64
		err := tx.QueryRow(ctx, `SELECT version FROM orders WHERE id = $1`, order.ID).Scan(&stored)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrOrderNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to check stored version: %w", err)
		}
		return 0, fmt.Errorf("%w: expected %d, stored %d", domain.ErrVersionConflict, expectedVersion, stored)
	}

	logQuery := `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, logQuery, order.ID, order.Status, event.ChangedBy, event.OccurredAt); err != nil {
		return 0, fmt.Errorf("failed to log status: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ledgerQuery := `
		INSERT INTO broadcast_ledger (event_id, tenant_id, order_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, ledgerQuery, event.ID, event.TenantID, event.OrderID, payload, event.OccurredAt); err != nil {
		return 0, fmt.Errorf("failed to write broadcast ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transition: %w", err)
	}

	return expectedVersion + 1, nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	query := `
		SELECT id, order_id, status, changed_by, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var logs []*domain.StatusLog
	for rows.Next() {
		var log domain.StatusLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.Status, &log.ChangedBy, &log.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}
