package store

import (
	"context"
	"fmt"
	"time"

	"grocery-service/internal/models"

	"github.com/shopspring/decimal"
)

// HasCarrierRating reports whether the order's carrier was already rated
func (s *Store) HasCarrierRating(ctx context.Context, orderID int64) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM carrier_ratings WHERE order_id = ?", orderID)
	return n > 0, err
}

// HasProductRatings reports whether the order's products were already rated
func (s *Store) HasProductRatings(ctx context.Context, orderID int64) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM product_ratings WHERE order_id = ?", orderID)
	return n > 0, err
}

// CreateCarrierRating inserts a carrier rating; a second one for the same
// order fails with ErrDuplicate
func (s *Store) CreateCarrierRating(ctx context.Context, r *models.CarrierRating) error {
	r.CreatedAt = timestamp(time.Now())

	id, err := s.insert(ctx, `
		INSERT INTO carrier_ratings (order_id, customer_id, carrier_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.CustomerID, r.CarrierID, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("carrier rating of order %d: %w", r.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert carrier rating: %w", err)
	}

	r.ID = id
	return nil
}

// CreateProductRating inserts a product rating; a second one for the same
// order and product fails with ErrDuplicate
func (s *Store) CreateProductRating(ctx context.Context, r *models.ProductRating) error {
	r.CreatedAt = timestamp(time.Now())

	id, err := s.insert(ctx, `
		INSERT INTO product_ratings (order_id, customer_id, product_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.CustomerID, r.ProductID, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rating of product %d in order %d: %w", r.ProductID, r.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert product rating: %w", err)
	}

	r.ID = id
	return nil
}

type ratingAggregate struct {
	Average decimal.Decimal `db:"average"`
	Count   int             `db:"count"`
}

// CarrierRatingSummary averages every rating of a carrier
func (s *Store) CarrierRatingSummary(ctx context.Context, carrierID int64) (*models.RatingSummary, error) {
	var agg ratingAggregate
	err := s.get(ctx, &agg,
		"SELECT COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count FROM carrier_ratings WHERE carrier_id = ?",
		carrierID)
	if err != nil {
		return nil, fmt.Errorf("failed to average carrier ratings: %w", err)
	}
	return &models.RatingSummary{SubjectID: carrierID, Average: agg.Average, Count: agg.Count}, nil
}

// ProductRatingSummary averages every rating of a product
func (s *Store) ProductRatingSummary(ctx context.Context, productID int64) (*models.RatingSummary, error) {
	var agg ratingAggregate
	err := s.get(ctx, &agg,
		"SELECT COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count FROM product_ratings WHERE product_id = ?",
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to average product ratings: %w", err)
	}
	return &models.RatingSummary{SubjectID: productID, Average: agg.Average, Count: agg.Count}, nil
}

// ListCarrierRatings retrieves a carrier's ratings, newest first
func (s *Store) ListCarrierRatings(ctx context.Context, carrierID int64) ([]models.CarrierRating, error) {
	ratings := []models.CarrierRating{}
	err := s.selectAll(ctx, &ratings, `
		SELECT id, order_id, customer_id, carrier_id, rating, comment, created_at
		FROM carrier_ratings WHERE carrier_id = ? ORDER BY id DESC`, carrierID)
	return ratings, err
}

// ListOrderProductRatings retrieves the product ratings recorded for an order
func (s *Store) ListOrderProductRatings(ctx context.Context, orderID int64) ([]models.ProductRating, error) {
	ratings := []models.ProductRating{}
	err := s.selectAll(ctx, &ratings, `
		SELECT id, order_id, customer_id, product_id, rating, comment, created_at
		FROM product_ratings WHERE order_id = ? ORDER BY id`, orderID)
	return ratings, err
}
