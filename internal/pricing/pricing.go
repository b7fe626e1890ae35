// Package pricing holds the arithmetic of the checkout: threshold pricing,
// VAT, coupon and loyalty discounts. It has no I/O.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CentPlaces is the precision of every monetary amount produced here.
const CentPlaces = 2

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Scarce reports whether stock has fallen to or below the threshold.
func Scarce(stock, threshold decimal.Decimal) bool {
	return stock.LessThanOrEqual(threshold)
}

// EffectivePrice doubles the unit price while the product is scarce.
func EffectivePrice(price, stock, threshold decimal.Decimal) decimal.Decimal {
	if Scarce(stock, threshold) {
		return price.Mul(two)
	}
	return price
}

// LineTotal returns unit price times quantity rounded to cents.
func LineTotal(unitPrice, quantity decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(quantity).Round(CentPlaces)
}

// Line is one priced cart line. UnitPrice is the price captured when the
// line was added to the cart.
type Line struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Total returns the rounded line total.
func (l Line) Total() decimal.Decimal {
	return LineTotal(l.UnitPrice, l.Quantity)
}

// Input carries everything Compute needs. CouponAmount is zero when no
// valid coupon applies; LoyaltyRate is a percentage and zero when the
// customer is not eligible.
type Input struct {
	Lines        []Line
	VATRate      decimal.Decimal
	CouponAmount decimal.Decimal
	LoyaltyRate  decimal.Decimal
}

// Breakdown is the priced result of a cart.
type Breakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	VAT             decimal.Decimal `json:"vat"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	LoyaltyDiscount decimal.Decimal `json:"loyalty_discount"`
	Total           decimal.Decimal `json:"total"`
}

// Compute prices the lines. Loyalty is applied first; the coupon amount is
// capped at what remains, so the total never goes below zero and
// Subtotal + VAT - CouponDiscount - LoyaltyDiscount == Total always holds.
func Compute(in Input) Breakdown {
	subtotal := decimal.Zero
	for _, l := range in.Lines {
		subtotal = subtotal.Add(l.Total())
	}

	vat := subtotal.Mul(in.VATRate).Round(CentPlaces)
	gross := subtotal.Add(vat)

	loyalty := decimal.Zero
	if in.LoyaltyRate.IsPositive() {
		loyalty = subtotal.Mul(in.LoyaltyRate).Div(hundred).Round(CentPlaces)
		loyalty = decimal.Min(loyalty, gross)
	}

	coupon := decimal.Zero
	if in.CouponAmount.IsPositive() {
		coupon = decimal.Min(in.CouponAmount.Round(CentPlaces), gross.Sub(loyalty))
	}

	return Breakdown{
		Subtotal:        subtotal,
		VATRate:         in.VATRate,
		VAT:             vat,
		CouponDiscount:  coupon,
		LoyaltyDiscount: loyalty,
		Total:           gross.Sub(coupon).Sub(loyalty),
	}
}

// Check verifies the checkout identity against the lines it was built from.
func (b Breakdown) Check(lines []Line) error {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	if !sum.Equal(b.Subtotal) {
		return fmt.Errorf("subtotal %s does not match line sum %s", b.Subtotal, sum)
	}
	expected := sum.Add(b.VAT).Sub(b.CouponDiscount).Sub(b.LoyaltyDiscount)
	if !expected.Equal(b.Total) {
		return fmt.Errorf("total %s does not match components %s", b.Total, expected)
	}
	if b.Total.IsNegative() {
		return fmt.Errorf("negative total %s", b.Total)
	}
	return nil
}
