package worker

import (
	"context"

	"grocery-service/internal/broker"
	"grocery-service/internal/service"
	"grocery-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SalesLedgerWorker projects ORDER_COMPLETED events into the sales ledger
type SalesLedgerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSalesLedgerWorker creates a new sales ledger worker
func NewSalesLedgerWorker(consumer *broker.Consumer, reports *service.ReportService) *SalesLedgerWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCompleted(reports.RecordDelivery)

	return &SalesLedgerWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Handle processes one message. Messages of other event types are
// acknowledged without effect.
func (w *SalesLedgerWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start consumes until ctx is cancelled
func (w *SalesLedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sales ledger worker...")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *SalesLedgerWorker) Stop() error {
	w.logger.Info("Stopping sales ledger worker...")
	return w.consumer.Close()
}
