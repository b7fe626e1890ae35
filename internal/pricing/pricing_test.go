package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEffectivePrice(t *testing.T) {
	cases := []struct {
		name      string
		price     string
		stock     string
		threshold string
		want      string
	}{
		{"plenty of stock", "10", "50", "5", "10"},
		{"at threshold doubles", "10", "5", "5", "20"},
		{"below threshold doubles", "10", "3", "5", "20"},
		{"out of stock doubles", "2.49", "0", "0", "4.98"},
		{"zero threshold with stock", "2.49", "0.5", "0", "2.49"},
		{"fractional kg stock", "1.25", "4.75", "4.8", "2.50"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EffectivePrice(d(tc.price), d(tc.stock), d(tc.threshold))
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestEffectivePriceDoublesIffScarce(t *testing.T) {
	price := d("3.10")
	for stock := 0; stock <= 20; stock++ {
		for threshold := 0; threshold <= 20; threshold++ {
			s, th := decimal.NewFromInt(int64(stock)), decimal.NewFromInt(int64(threshold))
			got := EffectivePrice(price, s, th)
			if stock <= threshold {
				assert.True(t, got.Equal(price.Mul(two)))
			} else {
				assert.True(t, got.Equal(price))
			}
		}
	}
}

func TestComputeNoDiscounts(t *testing.T) {
	// 2 units locked at the doubled price of 20
	lines := []Line{{ProductID: 1, Quantity: d("2"), UnitPrice: d("20")}}

	b := Compute(Input{Lines: lines, VATRate: d("0.10")})

	assert.True(t, b.Subtotal.Equal(d("40")))
	assert.True(t, b.VAT.Equal(d("4")))
	assert.True(t, b.CouponDiscount.IsZero())
	assert.True(t, b.LoyaltyDiscount.IsZero())
	assert.True(t, b.Total.Equal(d("44")))
	require.NoError(t, b.Check(lines))
}

func TestComputeWithCoupon(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: d("4"), UnitPrice: d("12.5")},
		{ProductID: 2, Quantity: d("5"), UnitPrice: d("10")},
	}

	b := Compute(Input{Lines: lines, VATRate: d("0.10"), CouponAmount: d("10")})

	assert.True(t, b.Subtotal.Equal(d("100")))
	assert.True(t, b.VAT.Equal(d("10")))
	assert.True(t, b.CouponDiscount.Equal(d("10")))
	assert.True(t, b.Total.Equal(d("100")))
	require.NoError(t, b.Check(lines))
}

func TestComputeWithLoyaltyAndCoupon(t *testing.T) {
	lines := []Line{{ProductID: 1, Quantity: d("10"), UnitPrice: d("10")}}

	b := Compute(Input{
		Lines:        lines,
		VATRate:      d("0.10"),
		CouponAmount: d("5"),
		LoyaltyRate:  d("10"),
	})

	assert.True(t, b.LoyaltyDiscount.Equal(d("10")))
	assert.True(t, b.CouponDiscount.Equal(d("5")))
	assert.True(t, b.Total.Equal(d("95")))
	require.NoError(t, b.Check(lines))
}

func TestComputeCouponCappedAtZeroTotal(t *testing.T) {
	lines := []Line{{ProductID: 1, Quantity: d("1"), UnitPrice: d("3")}}

	b := Compute(Input{Lines: lines, VATRate: d("0.10"), CouponAmount: d("50")})

	assert.True(t, b.Total.IsZero())
	assert.True(t, b.CouponDiscount.Equal(d("3.3")))
	require.NoError(t, b.Check(lines))
}

func TestComputeRoundsFractionalQuantities(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: d("0.333"), UnitPrice: d("2.99")},
		{ProductID: 2, Quantity: d("1.5"), UnitPrice: d("1.19")},
	}

	b := Compute(Input{Lines: lines, VATRate: d("0.10"), LoyaltyRate: d("7.5")})

	// 0.99567 -> 1.00, 1.785 -> 1.79
	assert.True(t, b.Subtotal.Equal(d("2.79")), "subtotal %s", b.Subtotal)
	assert.True(t, b.VAT.Equal(d("0.28")), "vat %s", b.VAT)
	assert.True(t, b.LoyaltyDiscount.Equal(d("0.21")), "loyalty %s", b.LoyaltyDiscount)
	require.NoError(t, b.Check(lines))
}

func TestComputeIdentityHolds(t *testing.T) {
	coupons := []string{"0", "1", "7.35", "1000"}
	rates := []string{"0", "5", "10", "100"}
	qtys := []string{"1", "2", "0.75", "3.125"}

	for _, c := range coupons {
		for _, r := range rates {
			for _, q := range qtys {
				lines := []Line{
					{ProductID: 1, Quantity: d(q), UnitPrice: d("4.40")},
					{ProductID: 2, Quantity: d("1"), UnitPrice: d("0.99")},
				}
				b := Compute(Input{Lines: lines, VATRate: d("0.10"), CouponAmount: d(c), LoyaltyRate: d(r)})
				require.NoError(t, b.Check(lines), "coupon=%s rate=%s qty=%s", c, r, q)
				assert.False(t, b.Total.IsNegative())
			}
		}
	}
}

func TestCheckDetectsMismatch(t *testing.T) {
	lines := []Line{{ProductID: 1, Quantity: d("1"), UnitPrice: d("10")}}
	b := Compute(Input{Lines: lines, VATRate: d("0.10")})
	b.Total = b.Total.Add(d("0.01"))

	assert.Error(t, b.Check(lines))
}
