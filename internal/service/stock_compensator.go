package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StockCompensator returns reserved stock for cancelled orders. It consumes
// ORDER_CANCELLED events and is safe to run against replays. Payment
// callbacks release stock inline, so for those orders it only records the event.
type StockCompensator struct {
	store  StockStore
	logger *zap.Logger
}

// NewStockCompensator creates a new stock compensator
func NewStockCompensator(store StockStore) *StockCompensator {
	return &StockCompensator{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleOrderCancelled releases the cancelled order's stock at most once.
func (sc *StockCompensator) HandleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	ctx, span := util.StartSpan(ctx, "StockCompensator.HandleOrderCancelled",
		attribute.String("event.id", event.EventID),
		attribute.Int64("order.id", event.OrderID))
	defer span.End()

	processed, err := sc.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		sc.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	sc.logger.Info("Handling order cancellation",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	released, err := sc.store.ReleaseOrderStock(ctx, event.OrderID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sc.logger.Warn("Cancelled order not found, skipping", zap.Int64("order_id", event.OrderID))
	case err != nil:
		util.RecordError(span, err)
		return fmt.Errorf("failed to release stock: %w", err)
	case released:
		util.StockReleasedTotal.Inc()
		sc.logger.Info("Stock released", zap.Int64("order_id", event.OrderID))
	default:
		sc.logger.Info("Stock already released", zap.Int64("order_id", event.OrderID))
	}

	if err := sc.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		sc.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return nil
}
