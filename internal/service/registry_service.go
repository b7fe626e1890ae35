package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"grocery-service/config"
	"grocery-service/internal/models"
	"grocery-service/internal/pricing"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// RegistryService owns coupons and the loyalty rules feeding the pricing
// engine
type RegistryService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistryService creates a new coupon and loyalty registry
func NewRegistryService(store *store.Store) *RegistryService {
	return &RegistryService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// couponUsable applies the active flag and the expiry day; a coupon is
// usable through the whole of its expiry date (UTC)
func couponUsable(c *models.Coupon, now time.Time) error {
	if !c.Active {
		return &CouponError{Code: c.Code, Reason: CouponInactive}
	}
	today := now.UTC().Truncate(24 * time.Hour)
	expiryDay := c.ExpiryDate.UTC().Truncate(24 * time.Hour)
	if today.After(expiryDay) {
		return &CouponError{Code: c.Code, Reason: CouponExpired}
	}
	return nil
}

// ValidateCoupon returns the coupon for code or a *CouponError saying why
// it cannot be used
func (s *RegistryService) ValidateCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "RegistryService.ValidateCoupon")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &CouponError{Code: code, Reason: CouponNotFound}
	}

	c, err := s.couponFor(ctx, s.store, code)
	if err != nil && !errors.Is(err, ErrInvalidCoupon) {
		return nil, util.SpanError(span, err)
	}
	return c, err
}

// CouponInput carries a new coupon
type CouponInput struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ExpiryDate     time.Time       `json:"expiry_date"`
}

// CreateCoupon issues an active coupon
func (s *RegistryService) CreateCoupon(ctx context.Context, actor Actor, in CouponInput) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "RegistryService.CreateCoupon")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if len(code) < 3 || len(code) > 32 {
		return nil, invalid("code", "must be 3 to 32 characters")
	}
	if !in.DiscountAmount.IsPositive() {
		return nil, invalid("discount_amount", "must be greater than zero")
	}
	if in.ExpiryDate.IsZero() {
		return nil, invalid("expiry_date", "is required")
	}

	c := &models.Coupon{
		Code:           code,
		DiscountAmount: in.DiscountAmount.Round(2),
		ExpiryDate:     in.ExpiryDate,
		Active:         true,
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	s.logger.Info("Coupon created", zap.String("code", c.Code), zap.Time("expiry", c.ExpiryDate))
	return c, nil
}

// ListCoupons returns every coupon
func (s *RegistryService) ListCoupons(ctx context.Context, actor Actor) ([]models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "RegistryService.ListCoupons")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}

	coupons, err := s.store.ListCoupons(ctx)
	return coupons, util.SpanError(span, translate(err))
}

// DeactivateCoupon stops a coupon from being accepted
func (s *RegistryService) DeactivateCoupon(ctx context.Context, actor Actor, id int64) error {
	ctx, span := util.StartSpan(ctx, "RegistryService.DeactivateCoupon", attribute.Int64("coupon_id", id))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return err
	}
	return util.SpanError(span, translate(s.store.SetCouponActive(ctx, id, false)))
}

// DeleteCoupon removes a coupon
func (s *RegistryService) DeleteCoupon(ctx context.Context, actor Actor, id int64) error {
	ctx, span := util.StartSpan(ctx, "RegistryService.DeleteCoupon", attribute.Int64("coupon_id", id))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return err
	}
	return util.SpanError(span, translate(s.store.DeleteCoupon(ctx, id)))
}

// LoyaltyRules returns the current loyalty rules
func (s *RegistryService) LoyaltyRules(ctx context.Context) (*models.LoyaltyRules, error) {
	rules, err := s.store.LoyaltyRules(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return rules, nil
}

// UpdateLoyaltyRules replaces the loyalty rules. minOrderCount must be
// positive and rate a percentage in (0, 100].
func (s *RegistryService) UpdateLoyaltyRules(ctx context.Context, actor Actor, rules models.LoyaltyRules) error {
	ctx, span := util.StartSpan(ctx, "RegistryService.UpdateLoyaltyRules")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return err
	}
	if rules.MinOrderCount <= 0 {
		return invalid("min_order_count", "must be greater than zero")
	}
	if !rules.Rate.IsPositive() || rules.Rate.GreaterThan(hundred) {
		return invalid("rate", "must be greater than 0 and at most 100")
	}

	if err := s.store.SaveLoyaltyRules(ctx, rules); err != nil {
		return util.SpanError(span, translate(err))
	}

	s.logger.Info("Loyalty rules updated",
		zap.Int("min_order_count", rules.MinOrderCount),
		zap.String("rate", rules.Rate.String()))
	return nil
}

// LoyaltyStatus is a customer's standing against the loyalty rules
type LoyaltyStatus struct {
	Eligible        bool            `json:"eligible"`
	CompletedOrders int             `json:"completed_orders"`
	MinOrderCount   int             `json:"min_order_count"`
	Rate            decimal.Decimal `json:"rate"`
}

// GetLoyaltyDiscount counts the customer's completed orders against the
// configured minimum
func (s *RegistryService) GetLoyaltyDiscount(ctx context.Context, customerID int64) (*LoyaltyStatus, error) {
	return s.loyaltyStatus(ctx, s.store, customerID)
}

func (s *RegistryService) loyaltyStatus(ctx context.Context, st *store.Store, customerID int64) (*LoyaltyStatus, error) {
	rules, err := st.LoyaltyRules(ctx)
	if err != nil {
		return nil, translate(err)
	}

	completed, err := st.CountCompletedOrders(ctx, customerID)
	if err != nil {
		return nil, translate(err)
	}

	return &LoyaltyStatus{
		Eligible:        completed >= rules.MinOrderCount,
		CompletedOrders: completed,
		MinOrderCount:   rules.MinOrderCount,
		Rate:            rules.Rate,
	}, nil
}

// couponFor is ValidateCoupon bound to a store, for use inside a
// transaction
func (s *RegistryService) couponFor(ctx context.Context, st *store.Store, code string) (*models.Coupon, error) {
	c, err := st.GetCouponByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &CouponError{Code: strings.ToUpper(strings.TrimSpace(code)), Reason: CouponNotFound}
	}
	if err != nil {
		return nil, translate(err)
	}
	if err := couponUsable(c, s.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// priced is a cart run through the pricing engine
type priced struct {
	breakdown       pricing.Breakdown
	lines           []pricing.Line
	coupon          *models.Coupon
	couponRejection string
	loyalty         *LoyaltyStatus
}

// priceItems prices cart lines with the coupon and loyalty standing read
// through st. Under the strict coupon policy a rejected code is an error;
// under the soft policy the reason is kept and pricing goes on without it.
func (s *RegistryService) priceItems(ctx context.Context, st *store.Store, biz config.BusinessConfig,
	customerID int64, items []models.OrderItem, couponCode string) (*priced, error) {
	p := &priced{lines: models.PricingLines(items)}
	in := pricing.Input{Lines: p.lines, VATRate: biz.VATRate}

	if strings.TrimSpace(couponCode) != "" {
		c, err := s.couponFor(ctx, st, couponCode)
		var couponErr *CouponError
		switch {
		case err == nil:
			p.coupon = c
			in.CouponAmount = c.DiscountAmount
		case errors.As(err, &couponErr):
			util.CouponRejectedTotal.WithLabelValues(couponErr.Reason).Inc()
			if biz.CouponPolicy == config.CouponPolicyStrict {
				return nil, err
			}
			s.logger.Warn("Coupon rejected, pricing without it",
				zap.Int64("customer_id", customerID),
				zap.String("code", couponErr.Code),
				zap.String("reason", couponErr.Reason))
			p.couponRejection = couponErr.Reason
		default:
			return nil, err
		}
	}

	loyalty, err := s.loyaltyStatus(ctx, st, customerID)
	if err != nil {
		return nil, err
	}
	p.loyalty = loyalty
	if loyalty.Eligible {
		in.LoyaltyRate = loyalty.Rate
	}

	p.breakdown = pricing.Compute(in)
	return p, nil
}
