package service

import (
	"testing"

	"grocery-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCouponReasons(t *testing.T) {
	f := newFixture(t, defaultBusiness())

	f.coupon("fresh", "5", f.clock.AddDate(0, 0, 7))
	f.coupon("stale", "5", f.clock.AddDate(0, 0, -1))
	off := f.coupon("off", "5", f.clock.AddDate(0, 0, 7))
	require.NoError(t, f.registry.DeactivateCoupon(f.ctx, f.owner, off.ID))

	c, err := f.registry.ValidateCoupon(f.ctx, " Fresh ")
	require.NoError(t, err)
	assert.Equal(t, "FRESH", c.Code)

	for code, reason := range map[string]string{
		"STALE":   CouponExpired,
		"OFF":     CouponInactive,
		"MISSING": CouponNotFound,
		"":        CouponNotFound,
	} {
		_, err := f.registry.ValidateCoupon(f.ctx, code)
		var couponErr *CouponError
		require.ErrorAs(t, err, &couponErr, code)
		assert.Equal(t, reason, couponErr.Reason, code)
		assert.ErrorIs(t, err, ErrInvalidCoupon)
	}
}

func TestCreateCouponValidation(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	alice := f.customer("alice")
	expiry := f.clock.AddDate(0, 1, 0)

	_, err := f.registry.CreateCoupon(f.ctx, alice, CouponInput{Code: "MINE", DiscountAmount: dec("5"), ExpiryDate: expiry})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.registry.CreateCoupon(f.ctx, f.owner, CouponInput{Code: "AB", DiscountAmount: dec("5"), ExpiryDate: expiry})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.registry.CreateCoupon(f.ctx, f.owner, CouponInput{Code: "ZERO", DiscountAmount: dec("0"), ExpiryDate: expiry})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.registry.CreateCoupon(f.ctx, f.owner, CouponInput{Code: "NODATE", DiscountAmount: dec("1")})
	assert.ErrorIs(t, err, ErrValidation)

	f.coupon("WELCOME", "7.5", expiry)
	_, err = f.registry.CreateCoupon(f.ctx, f.owner, CouponInput{Code: "welcome", DiscountAmount: dec("1"), ExpiryDate: expiry})
	assert.ErrorIs(t, err, ErrDuplicate)

	coupons, err := f.registry.ListCoupons(f.ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.True(t, dec("7.5").Equal(coupons[0].DiscountAmount))
	assert.True(t, coupons[0].Active)

	require.NoError(t, f.registry.DeleteCoupon(f.ctx, f.owner, coupons[0].ID))
	assert.ErrorIs(t, f.registry.DeleteCoupon(f.ctx, f.owner, coupons[0].ID), ErrNotFound)
}

func TestLoyaltyRules(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	alice := f.customer("alice")
	carl := f.carrier("carl")

	rules, err := f.registry.LoyaltyRules(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rules.MinOrderCount)
	assert.True(t, dec("10").Equal(rules.Rate))

	for _, bad := range []models.LoyaltyRules{
		{MinOrderCount: 0, Rate: dec("10")},
		{MinOrderCount: 3, Rate: dec("0")},
		{MinOrderCount: 3, Rate: dec("100.5")},
	} {
		assert.ErrorIs(t, f.registry.UpdateLoyaltyRules(f.ctx, f.owner, bad), ErrValidation)
	}
	assert.ErrorIs(t, f.registry.UpdateLoyaltyRules(f.ctx, alice, models.LoyaltyRules{MinOrderCount: 1, Rate: dec("5")}), ErrForbidden)

	require.NoError(t, f.registry.UpdateLoyaltyRules(f.ctx, f.owner, models.LoyaltyRules{MinOrderCount: 2, Rate: dec("15")}))

	p := f.product("Nectarine", models.UnitKg, "3", "50", "1")
	f.delivered(alice, carl, p, "1")

	status, err := f.registry.GetLoyaltyDiscount(f.ctx, alice.UserID)
	require.NoError(t, err)
	assert.False(t, status.Eligible)
	assert.Equal(t, 1, status.CompletedOrders)

	f.delivered(alice, carl, p, "1")
	status, err = f.registry.GetLoyaltyDiscount(f.ctx, alice.UserID)
	require.NoError(t, err)
	assert.True(t, status.Eligible)
	assert.Equal(t, 2, status.MinOrderCount)
	assert.True(t, dec("15").Equal(status.Rate))
}
