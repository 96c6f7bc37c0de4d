package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/jmoiron/sqlx"
)

// OrderCommit is everything written by one finalization. MerchantPaymentID is empty for
// orders that did not go through the gateway.
type OrderCommit struct {
	Order             *domain.Order
	MerchantPaymentID string
	SessionID         string
	CartFingerprint   string
}

// CommitOrder writes the order, its items, the attempt transition and the outbox event in
// one transaction. A second commit with the same idempotency key or attempt returns a
// *DuplicateOrderError carrying the existing order id and writes nothing.
func (r *Repository) CommitOrder(ctx context.Context, c *OrderCommit) (orderID int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if c.MerchantPaymentID != "" {
		if err = lockAttemptForCommit(ctx, tx, c.MerchantPaymentID); err != nil {
			return 0, err
		}
	}

	order := c.Order
	var paymentID sql.NullString
	if c.MerchantPaymentID != "" {
		paymentID = sql.NullString{String: c.MerchantPaymentID, Valid: true}
	}

	insertOrder := `INSERT INTO orders (user_id, store_id, idempotency_key, merchant_payment_id, status,
	                    payment_method, total_amount, currency, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	                ON CONFLICT (idempotency_key) DO NOTHING
	                RETURNING order_id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, insertOrder,
		order.UserID,
		order.MerchantID,
		order.IdempotencyKey,
		paymentID,
		order.Status,
		order.PaymentMethod,
		order.TotalAmount,
		order.Currency,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var existing int64
		if e2 := tx.GetContext(ctx, &existing, `SELECT order_id FROM orders WHERE idempotency_key = $1`, order.IdempotencyKey); e2 != nil {
			err = fmt.Errorf("lookup existing order: %w", e2)
			return 0, err
		}
		err = &DuplicateOrderError{OrderID: existing}
		return 0, err
	}
	if err != nil {
		err = fmt.Errorf("insert order: %w", err)
		return 0, err
	}

	insertItem := `INSERT INTO order_items (order_id, item_id, name, quantity, price_at_order)
	               VALUES ($1, $2, $3, $4, $5)`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if _, err = tx.ExecContext(ctx, insertItem, order.ID, item.ItemID, item.Name, item.Quantity, item.PriceAtOrder); err != nil {
			err = fmt.Errorf("insert order item %d: %w", item.ItemID, err)
			return 0, err
		}
	}

	if c.MerchantPaymentID != "" {
		updateAttempt := `UPDATE checkout_attempts SET state = $1, order_id = $2, updated_at = NOW()
		                  WHERE merchant_payment_id = $3`
		if _, err = tx.ExecContext(ctx, updateAttempt, domain.AttemptStateCommitted, order.ID, c.MerchantPaymentID); err != nil {
			err = fmt.Errorf("commit checkout attempt: %w", err)
			return 0, err
		}
	}

	event := domain.OrderPlacedEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		MerchantID:        order.MerchantID,
		SessionID:         c.SessionID,
		CartFingerprint:   c.CartFingerprint,
		MerchantPaymentID: c.MerchantPaymentID,
		PaymentMethod:     order.PaymentMethod,
		TotalAmount:       order.TotalAmount,
		Currency:          order.Currency,
		PlacedAt:          order.CreatedAt,
	}
	if err = insertOutboxEvent(ctx, tx, strconv.FormatInt(order.ID, 10), domain.EventOrderPlaced, event); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit tx: %w", err)
		return 0, err
	}
	return order.ID, nil
}

func lockAttemptForCommit(ctx context.Context, tx *sqlx.Tx, merchantPaymentID string) error {
	var row struct {
		State   domain.AttemptState `db:"state"`
		OrderID sql.NullInt64       `db:"order_id"`
	}
	query := `SELECT state, order_id FROM checkout_attempts WHERE merchant_payment_id = $1 FOR UPDATE`
	err := tx.GetContext(ctx, &row, query, merchantPaymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAttemptNotFound
	}
	if err != nil {
		return fmt.Errorf("lock checkout attempt: %w", err)
	}

	switch row.State {
	case domain.AttemptStateCommitted:
		return &DuplicateOrderError{OrderID: row.OrderID.Int64}
	case domain.AttemptStatePendingConfirm:
		return nil
	}
	return fmt.Errorf("%w: attempt is %s", ErrStateConflict, row.State)
}

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT order_id, user_id, store_id AS merchant_id, idempotency_key, status, payment_method,
	              total_amount, currency, created_at, updated_at
	          FROM orders WHERE order_id = $1`

	var order domain.Order
	err := r.db.GetContext(ctx, &order, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.orderItems(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	order.Items = items[orderID]
	return &order, nil
}

// ListOrdersByUser returns the user's orders with their items, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]*domain.Order, error) {
	query := `SELECT order_id, user_id, store_id AS merchant_id, idempotency_key, status, payment_method,
	              total_amount, currency, created_at, updated_at
	          FROM orders WHERE user_id = $1
	          ORDER BY created_at DESC, order_id DESC LIMIT $2`

	var orders []*domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, userID, limit); err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return r.withItems(ctx, orders)
}

// ListOrdersByMerchant returns the store's orders that are not canceled, newest first.
func (r *Repository) ListOrdersByMerchant(ctx context.Context, merchantID int64, limit int) ([]*domain.Order, error) {
	query := `SELECT order_id, user_id, store_id AS merchant_id, idempotency_key, status, payment_method,
	              total_amount, currency, created_at, updated_at
	          FROM orders WHERE store_id = $1 AND status <> $2
	          ORDER BY created_at DESC, order_id DESC LIMIT $3`

	var orders []*domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, merchantID, domain.OrderStatusCanceled, limit); err != nil {
		return nil, fmt.Errorf("query orders by store id: %w", err)
	}
	return r.withItems(ctx, orders)
}

func (r *Repository) withItems(ctx context.Context, orders []*domain.Order) ([]*domain.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, nil
}

func (r *Repository) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query, args, err := sqlx.In(`SELECT order_id, item_id, name, quantity, price_at_order
	                             FROM order_items WHERE order_id IN (?) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build order items query: %w", err)
	}

	var items []domain.OrderItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}

	byOrder := make(map[int64][]domain.OrderItem, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}

// UpdateOrderStatus moves an order of merchantID from one status to another only if it is
// still in from.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID, merchantID int64, from, to domain.OrderStatus) (time.Time, error) {
	query := `UPDATE orders SET status = $1, updated_at = NOW()
	          WHERE order_id = $2 AND store_id = $3 AND status = $4
	          RETURNING updated_at`

	var updatedAt time.Time
	err := r.db.QueryRowxContext(ctx, query, to, orderID, merchantID, from).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrStateConflict
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("update order status: %w", err)
	}
	return updatedAt, nil
}

func insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, aggregateID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, query, aggregateID, eventType, data); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
