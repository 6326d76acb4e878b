// Package worker runs the background consumers of order events.
package worker

import (
	"context"
	"errors"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageSource is the consuming side of broker.Consumer.
type messageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockWorker returns stock for cancelled orders
type StockWorker struct {
	consumer     messageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockWorker creates a worker that feeds ORDER_CANCELLED events to compensator
func NewStockWorker(consumer messageSource, compensator *service.StockCompensator) *StockWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCancelled(compensator.HandleOrderCancelled)

	return &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled. Cancellation is not an error.
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	err := w.consumer.StartConsuming(ctx, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *StockWorker) handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.consumer.Close()
}
