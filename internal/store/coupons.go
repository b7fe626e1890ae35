package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grocery-service/internal/models"
)

const couponColumns = `id, code, discount_amount, expiry_date, active, created_at`

// CreateCoupon inserts a coupon; codes are stored upper-case
func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.CreatedAt = timestamp(time.Now())
	c.ExpiryDate = timestamp(c.ExpiryDate)

	id, err := s.insert(ctx,
		"INSERT INTO coupons (code, discount_amount, expiry_date, active, created_at) VALUES (?, ?, ?, ?, ?)",
		c.Code, c.DiscountAmount, c.ExpiryDate, c.Active, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon %s: %w", c.Code, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}

	c.ID = id
	return nil
}

// GetCoupon retrieves a coupon by ID
func (s *Store) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	var c models.Coupon
	if err := s.get(ctx, &c, "SELECT "+couponColumns+" FROM coupons WHERE id = ?", id); err != nil {
		return nil, notFound(err, "coupon", id)
	}
	return &c, nil
}

// GetCouponByCode retrieves a coupon by its code, ignoring case
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var c models.Coupon
	if err := s.get(ctx, &c, "SELECT "+couponColumns+" FROM coupons WHERE code = ?", code); err != nil {
		return nil, notFound(err, "coupon", code)
	}
	return &c, nil
}

// ListCoupons retrieves every coupon
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons := []models.Coupon{}
	err := s.selectAll(ctx, &coupons, "SELECT "+couponColumns+" FROM coupons ORDER BY id")
	return coupons, err
}

// SetCouponActive toggles the active flag
func (s *Store) SetCouponActive(ctx context.Context, id int64, active bool) error {
	if _, err := s.GetCoupon(ctx, id); err != nil {
		return err
	}
	if _, err := s.exec(ctx, "UPDATE coupons SET active = ? WHERE id = ?", active, id); err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	return nil
}

// DeleteCoupon removes a coupon; orders that used it keep their discount
// amounts but lose the reference
func (s *Store) DeleteCoupon(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, "DELETE FROM coupons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	return nil
}
