package service

import (
	"context"
	"errors"
	"time"

	"grocery-service/internal/models"
	"grocery-service/internal/pricing"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService maintains the sales ledger from delivery events and
// answers owner reports
type ReportService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(store *store.Store) *ReportService {
	return &ReportService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// RecordDelivery appends the lines of a delivered order to the sales
// ledger. Redelivered events are skipped.
func (s *ReportService) RecordDelivery(ctx context.Context, event *models.OrderCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "ReportService.RecordDelivery")
	defer span.End()

	duplicate := false
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		processed, err := tx.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			duplicate = true
			return nil
		}

		entries := make([]models.SalesLedgerEntry, 0, len(event.Items))
		for _, it := range event.Items {
			entries = append(entries, models.SalesLedgerEntry{
				OrderID:     event.OrderID,
				ProductID:   it.ProductID,
				Quantity:    it.Quantity,
				Revenue:     pricing.LineTotal(it.UnitPrice, it.Quantity),
				CompletedAt: event.DeliveredAt,
			})
		}
		if err := tx.AppendLedgerEntries(ctx, entries); err != nil {
			return err
		}
		return tx.MarkEventProcessed(ctx, &models.ProcessedEvent{
			EventID:   event.EventID,
			EventType: event.EventType,
		})
	})
	if errors.Is(err, store.ErrDuplicate) {
		duplicate, err = true, nil
	}
	if err != nil {
		util.LedgerEventsTotal.WithLabelValues("failed").Inc()
		return util.SpanError(span, translate(err))
	}

	if duplicate {
		util.LedgerEventsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	util.LedgerEventsTotal.WithLabelValues("applied").Inc()
	s.logger.Info("Delivery recorded in sales ledger",
		zap.Int64("order_id", event.OrderID),
		zap.Int("lines", len(event.Items)))
	return nil
}

// SalesReport covers deliveries completed in [From, To)
type SalesReport struct {
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Orders       int                   `json:"orders"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	Products     []models.ProductSales `json:"products"`
}

// SalesReport aggregates the ledger per product, best sellers first
func (s *ReportService) SalesReport(ctx context.Context, actor Actor, from, to time.Time) (*SalesReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.SalesReport")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, invalid("to", "must be after from")
	}

	products, err := s.store.SalesByProduct(ctx, from, to)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	orders, err := s.store.CountLedgerOrders(ctx, from, to)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	report := &SalesReport{
		From:         from,
		To:           to,
		Orders:       orders,
		TotalRevenue: decimal.Zero,
		Products:     products,
	}
	for _, p := range products {
		report.TotalRevenue = report.TotalRevenue.Add(p.Revenue)
	}
	return report, nil
}

// CarrierPerformance lists every carrier with delivery count and average
// rating
func (s *ReportService) CarrierPerformance(ctx context.Context, actor Actor) ([]models.CarrierStats, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.CarrierPerformance")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}

	stats, err := s.store.ListCarrierStats(ctx)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	for i := range stats {
		stats[i].AverageRating = stats[i].AverageRating.Round(2)
	}
	return stats, nil
}
