package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-service/internal/models"
)

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM processed_events WHERE event_id = ?", eventID)
	return n > 0, err
}

// MarkEventProcessed marks an event as processed. Marking the same event
// twice fails with ErrDuplicate. A zero ProcessedAt is stamped with now.
func (s *Store) MarkEventProcessed(ctx context.Context, e *models.ProcessedEvent) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		"INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?)",
		e.EventID, e.EventType, timestamp(e.ProcessedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event %s: %w", e.EventID, ErrDuplicate)
		}
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// AppendLedgerEntries records delivered order lines. Lines already present
// for the same order and product are skipped.
func (s *Store) AppendLedgerEntries(ctx context.Context, entries []models.SalesLedgerEntry) error {
	for _, e := range entries {
		n, err := s.count(ctx,
			"SELECT COUNT(*) FROM sales_ledger WHERE order_id = ? AND product_id = ?", e.OrderID, e.ProductID)
		if err != nil {
			return fmt.Errorf("failed to look up ledger entry: %w", err)
		}
		if n > 0 {
			continue
		}

		_, err = s.exec(ctx, `
			INSERT INTO sales_ledger (order_id, product_id, quantity, revenue, completed_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.OrderID, e.ProductID, e.Quantity, e.Revenue, timestamp(e.CompletedAt))
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}
	return nil
}

// SalesByProduct aggregates ledger rows completed in [from, to)
func (s *Store) SalesByProduct(ctx context.Context, from, to time.Time) ([]models.ProductSales, error) {
	if !from.Before(to) {
		return nil, errors.New("empty report range")
	}

	sales := []models.ProductSales{}
	err := s.selectAll(ctx, &sales, `
		SELECT l.product_id, COALESCE(p.name, '') AS product_name,
			ROUND(SUM(l.quantity), 3) AS quantity, ROUND(SUM(l.revenue), 2) AS revenue
		FROM sales_ledger l LEFT JOIN products p ON p.id = l.product_id
		WHERE l.completed_at >= ? AND l.completed_at < ?
		GROUP BY l.product_id, p.name
		ORDER BY SUM(l.revenue) DESC, l.product_id`,
		timestamp(from), timestamp(to))
	return sales, err
}

// CountLedgerOrders counts distinct orders in the ledger for [from, to)
func (s *Store) CountLedgerOrders(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx,
		"SELECT COUNT(DISTINCT order_id) FROM sales_ledger WHERE completed_at >= ? AND completed_at < ?",
		timestamp(from), timestamp(to))
}
