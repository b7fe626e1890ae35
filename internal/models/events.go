package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderClaimed   = "ORDER_CLAIMED"
	EventTypeOrderReleased  = "ORDER_RELEASED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id
func NewBaseEvent(eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}

// OrderPlacedEvent published after a successful checkout
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	CouponID   *int64          `json:"coupon_id,omitempty"`
	Items      []OrderItemData `json:"items"`
}

// OrderClaimedEvent published when a carrier claims an available order
type OrderClaimedEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	CarrierID int64 `json:"carrier_id"`
}

// OrderReleasedEvent published when a carrier hands an order back
type OrderReleasedEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	CarrierID int64 `json:"carrier_id"`
}

// OrderCompletedEvent published when a carrier delivers an order
type OrderCompletedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	CarrierID   int64           `json:"carrier_id"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	DeliveredAt time.Time       `json:"delivered_at"`
	Items       []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	CancelledBy   int64  `json:"cancelled_by"`
	PreviousState string `json:"previous_state"`
	StockRestored bool   `json:"stock_restored"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemData converts order lines for event payloads
func ItemData(items []OrderItem) []OrderItemData {
	out := make([]OrderItemData, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceAtPurchase,
		})
	}
	return out
}
