package service

import (
	"encoding/json"
	"fmt"
	"time"

	"grocery-service/internal/models"
	"grocery-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// Invoice is the structured summary stored with every placed order. A
// renderer downstream turns it into a printable document.
type Invoice struct {
	OrderID           int64           `json:"order_id"`
	CustomerID        int64           `json:"customer_id"`
	OrderTime         time.Time       `json:"order_time"`
	RequestedDelivery *time.Time      `json:"requested_delivery,omitempty"`
	Lines             []InvoiceLine   `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	VATRate           decimal.Decimal `json:"vat_rate"`
	VAT               decimal.Decimal `json:"vat"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	CouponDiscount    decimal.Decimal `json:"coupon_discount"`
	LoyaltyDiscount   decimal.Decimal `json:"loyalty_discount"`
	Total             decimal.Decimal `json:"total"`
}

// InvoiceLine is one billed product
type InvoiceLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func newInvoice(order *models.Order, items []models.OrderItem, b pricing.Breakdown, couponCode string) *Invoice {
	inv := &Invoice{
		OrderID:           order.ID,
		CustomerID:        order.CustomerID,
		RequestedDelivery: order.RequestedDeliveryDate,
		Lines:             make([]InvoiceLine, 0, len(items)),
		Subtotal:          b.Subtotal,
		VATRate:           b.VATRate,
		VAT:               b.VAT,
		CouponCode:        couponCode,
		CouponDiscount:    b.CouponDiscount,
		LoyaltyDiscount:   b.LoyaltyDiscount,
		Total:             b.Total,
	}
	if order.OrderTime != nil {
		inv.OrderTime = *order.OrderTime
	}
	for _, it := range items {
		inv.Lines = append(inv.Lines, InvoiceLine{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Unit:      it.Unit,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceAtPurchase,
			LineTotal: it.LineTotal(),
		})
	}
	return inv
}

func (inv *Invoice) encode() (string, error) {
	raw, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}
	return string(raw), nil
}

func decodeInvoice(raw string) (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invoice: %w", err)
	}
	return &inv, nil
}
