package models

import (
	"time"

	"grocery-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Category  string          `db:"category" json:"category"`
	Type      string          `db:"type" json:"type"`
	Unit      string          `db:"unit" json:"unit"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     decimal.Decimal `db:"stock" json:"stock"`
	Threshold decimal.Decimal `db:"threshold" json:"threshold"`
	Image     []byte          `db:"image" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// EffectivePrice is recomputed on every call; it is never stored.
func (p *Product) EffectivePrice() decimal.Decimal {
	return pricing.EffectivePrice(p.Price, p.Stock, p.Threshold)
}

// Scarce reports whether threshold pricing is active.
func (p *Product) Scarce() bool {
	return pricing.Scarce(p.Stock, p.Threshold)
}

// Product categories
const (
	CategoryFruit     = "FRUIT"
	CategoryVegetable = "VEGETABLE"
)

// Product units
const (
	UnitKg    = "kg"
	UnitPiece = "piece"
)

// Order represents a customer order. While Status is CART the row is the
// customer's open cart.
type Order struct {
	ID                    int64           `db:"id" json:"id"`
	CustomerID            int64           `db:"customer_id" json:"customer_id"`
	CarrierID             *int64          `db:"carrier_id" json:"carrier_id,omitempty"`
	Status                string          `db:"status" json:"status"`
	OrderTime             *time.Time      `db:"order_time" json:"order_time,omitempty"`
	RequestedDeliveryDate *time.Time      `db:"requested_delivery_date" json:"requested_delivery_date,omitempty"`
	PickedUpAt            *time.Time      `db:"picked_up_at" json:"picked_up_at,omitempty"`
	DeliveryTime          *time.Time      `db:"delivery_time" json:"delivery_time,omitempty"`
	Subtotal              decimal.Decimal `db:"subtotal" json:"subtotal"`
	VAT                   decimal.Decimal `db:"vat" json:"vat"`
	CouponDiscount        decimal.Decimal `db:"coupon_discount" json:"coupon_discount"`
	LoyaltyDiscount       decimal.Decimal `db:"loyalty_discount" json:"loyalty_discount"`
	TotalCost             decimal.Decimal `db:"total_cost" json:"total_cost"`
	UsedCouponID          *int64          `db:"used_coupon_id" json:"used_coupon_id,omitempty"`
	Invoice               string          `db:"invoice" json:"-"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	Items                 []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem represents a line of an order (or of the open cart)
type OrderItem struct {
	ID              int64           `db:"id" json:"id"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	ProductName     string          `db:"product_name" json:"product_name"`
	Unit            string          `db:"unit" json:"unit"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase" json:"price_at_purchase"`
}

// LineTotal returns price at purchase times quantity, in cents
func (i OrderItem) LineTotal() decimal.Decimal {
	return pricing.LineTotal(i.PriceAtPurchase, i.Quantity)
}

// PricingLines converts order lines into pricing input
func PricingLines(items []OrderItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceAtPurchase,
		})
	}
	return lines
}

// Order statuses. CART precedes checkout; the remaining four form the
// persisted lifecycle.
const (
	OrderStatusCart      = "CART"
	OrderStatusAvailable = "AVAILABLE"
	OrderStatusSelected  = "SELECTED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Coupon represents an owner-issued fixed-amount discount
type Coupon struct {
	ID             int64           `db:"id" json:"id"`
	Code           string          `db:"code" json:"code"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	Active         bool            `db:"active" json:"active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// CarrierRating is a customer's rating of the carrier that delivered an order
type CarrierRating struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	CarrierID  int64     `db:"carrier_id" json:"carrier_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ProductRating is a customer's rating of a product bought in an order
type ProductRating struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RatingSummary is an average computed on read
type RatingSummary struct {
	SubjectID int64           `json:"subject_id"`
	Average   decimal.Decimal `json:"average"`
	Count     int             `json:"count"`
}

// User represents any account: customer, carrier or owner
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Address      string    `db:"address" json:"address,omitempty"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleCustomer = "CUSTOMER"
	RoleCarrier  = "CARRIER"
	RoleOwner    = "OWNER"
)

// LoyaltyRules configures the completed-order loyalty discount
type LoyaltyRules struct {
	MinOrderCount int             `json:"min_order_count"`
	Rate          decimal.Decimal `json:"rate"`
}

// SalesLedgerEntry is one delivered order line in the sales projection
type SalesLedgerEntry struct {
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
	CompletedAt time.Time       `db:"completed_at" json:"completed_at"`
}

// ProductSales aggregates ledger rows per product
type ProductSales struct {
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
}

// CarrierStats summarises a carrier's deliveries and ratings
type CarrierStats struct {
	CarrierID     int64           `db:"carrier_id" json:"carrier_id"`
	Username      string          `db:"username" json:"username"`
	Deliveries    int             `db:"deliveries" json:"deliveries"`
	AverageRating decimal.Decimal `db:"average_rating" json:"average_rating"`
	RatingCount   int             `db:"rating_count" json:"rating_count"`
}

// ProcessedEvent records a consumed event so redeliveries are skipped
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
