package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder persists the order header and its line items and reserves stock
// for every line in one transaction. If any product is short the whole order
// is rolled back and an *InsufficientStockError is returned.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO orders (user_id, total_amount, shipping_address, shipping_name, shipping_phone, notes, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			order.UserID, order.TotalAmount, order.ShippingAddress, order.ShippingName,
			order.ShippingPhone, order.Notes, order.Status).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range items {
			item := &items[i]
			item.OrderID = order.ID

			err := tx.GetContext(ctx, &item.ID, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock - $1, updated_at = NOW()
				WHERE id = $2 AND is_active AND stock >= $1`,
				item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to reserve stock: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected != 1 {
				return &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			}
		}

		return nil
	})
}

// AttachPaymentSession records the gateway order id and redirect URL.
func (s *Store) AttachPaymentSession(ctx context.Context, orderID int64, gatewayOrderID, paymentURL string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET gateway_order_id = $1, payment_url = $2, updated_at = NOW()
		WHERE id = $3`,
		gatewayOrderID, paymentURL, orderID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// CancelPendingOrder moves a pending order to cancelled. It reports false if
// the order was already terminal.
func (s *Store) CancelPendingOrder(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.OrderStatusCancelled, orderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// ReleaseOrderStock returns an order's reserved units to their products.
// It runs at most once per order; later calls report false.
func (s *Store) ReleaseOrderStock(ctx context.Context, orderID int64) (bool, error) {
	released := false

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var alreadyReleased bool
		err := tx.GetContext(ctx, &alreadyReleased,
			"SELECT stock_released FROM orders WHERE id = $1 FOR UPDATE", orderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if alreadyReleased {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products p SET stock = p.stock + oi.quantity, updated_at = NOW()
			FROM (
				SELECT product_id, SUM(quantity) AS quantity
				FROM order_items WHERE order_id = $1
				GROUP BY product_id
			) oi
			WHERE p.id = oi.product_id`, orderID)
		if err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE orders SET stock_released = TRUE, updated_at = NOW() WHERE id = $1", orderID)
		if err != nil {
			return err
		}

		released = true
		return nil
	})

	return released, err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersWithItemsByUserID returns a user's orders newest first, each with
// its line items joined to the product's current name and image.
func (s *Store) GetOrdersWithItemsByUserID(ctx context.Context, userID int64) ([]models.OrderWithItems, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.OrderWithItems, len(orders))
	if len(orders) == 0 {
		return result, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		result[i] = models.OrderWithItems{Order: o, Items: []models.OrderItemView{}}
	}

	query, args, err := sqlx.In(`
		SELECT oi.*, p.name AS current_name, p.image_url AS current_image_url
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (?)
		ORDER BY oi.id`, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItemView
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	for _, item := range items {
		item.AttachProduct()
		i := index[item.OrderID]
		result[i].Items = append(result[i].Items, item)
	}

	return result, nil
}

// ReconcilePayment applies a gateway-reported status to the order identified by
// its gateway order id. The row is locked while the transition is checked, so
// a terminal order is never moved. It returns the order as it was before the
// update and whether the update was applied. ErrNotFound means no order
// carries that gateway id.
func (s *Store) ReconcilePayment(ctx context.Context, gatewayOrderID, status, transactionID string) (*models.Order, bool, error) {
	var (
		order   models.Order
		applied bool
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &order,
			"SELECT * FROM orders WHERE gateway_order_id = $1 FOR UPDATE", gatewayOrderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if !models.CanTransition(order.Status, status) {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, gateway_transaction_id = COALESCE($2, gateway_transaction_id), updated_at = NOW()
			WHERE id = $3`,
			status, nullIfEmpty(transactionID), order.ID)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &order, applied, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
