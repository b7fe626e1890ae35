package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-service/config"
	"grocery-service/internal/models"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const checkoutLockTTL = 30 * time.Second

// CheckoutGuard keeps duplicate checkout submissions of one customer apart.
// Correctness of the checkout never depends on it.
type CheckoutGuard interface {
	AcquireCheckoutLock(ctx context.Context, customerID int64, ttl time.Duration) (string, bool, error)
	ReleaseCheckoutLock(ctx context.Context, customerID int64, token string) error
	RememberCheckout(ctx context.Context, customerID int64, key string, orderID int64, ttl time.Duration) error
	LookupCheckout(ctx context.Context, customerID int64, key string) (int64, bool, error)
}

// EventPublisher announces order lifecycle changes
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderClaimed(ctx context.Context, event *models.OrderClaimedEvent) error
	PublishOrderReleased(ctx context.Context, event *models.OrderReleasedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderService handles checkout and the order lifecycle
type OrderService struct {
	store     *store.Store
	registry  *RegistryService
	guard     CheckoutGuard
	publisher EventPublisher
	biz       config.BusinessConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service. guard and publisher may be
// nil, in which case checkouts are not de-duplicated and no events are sent.
func NewOrderService(
	store *store.Store,
	registry *RegistryService,
	guard CheckoutGuard,
	publisher EventPublisher,
	biz config.BusinessConfig,
) *OrderService {
	return &OrderService{
		store:     store,
		registry:  registry,
		guard:     guard,
		publisher: publisher,
		biz:       biz,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CheckoutRequest represents a checkout of the open cart
type CheckoutRequest struct {
	CouponCode        string     `json:"coupon_code,omitempty"`
	RequestedDelivery *time.Time `json:"requested_delivery,omitempty"`
	IdempotencyKey    string     `json:"-"`
}

// CheckoutResult is the placed order and how it was priced
type CheckoutResult struct {
	Order          *models.Order `json:"order"`
	Invoice        *Invoice      `json:"invoice"`
	CouponRejected string        `json:"coupon_rejected,omitempty"`
	Replayed       bool          `json:"replayed"`
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicate):
		return "in_progress"
	case errors.Is(err, ErrInvalidTransition):
		return "stale_cart"
	}
	return "error"
}

// Checkout turns the customer's open cart into an AVAILABLE order. Stock is
// re-validated for every line before anything is written; the header
// transition, stock decrements and invoice commit together or not at all.
func (s *OrderService) Checkout(ctx context.Context, customerID int64, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout", attribute.Int64("customer_id", customerID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := s.checkout(ctx, customerID, req)
	if err != nil {
		reason := checkoutFailureReason(err)
		util.CheckoutFailedTotal.WithLabelValues(reason).Inc()
		s.logger.Warn("Checkout rejected",
			zap.Int64("customer_id", customerID),
			zap.String("reason", reason),
			zap.Error(err))
		return nil, util.SpanError(span, err)
	}
	return result, nil
}

func (s *OrderService) checkout(ctx context.Context, customerID int64, req CheckoutRequest) (*CheckoutResult, error) {
	if req.IdempotencyKey != "" && s.guard != nil {
		if replay, err := s.replay(ctx, customerID, req.IdempotencyKey); err != nil || replay != nil {
			return replay, err
		}
	}

	if s.guard != nil {
		token, ok, err := s.guard.AcquireCheckoutLock(ctx, customerID, checkoutLockTTL)
		switch {
		case err != nil:
			s.logger.Error("Checkout lock unavailable, continuing without it",
				zap.Int64("customer_id", customerID), zap.Error(err))
		case !ok:
			return nil, fmt.Errorf("%w: checkout already in progress", ErrDuplicate)
		default:
			defer func() {
				if err := s.guard.ReleaseCheckoutLock(context.WithoutCancel(ctx), customerID, token); err != nil {
					s.logger.Error("Failed to release checkout lock",
						zap.Int64("customer_id", customerID), zap.Error(err))
				}
			}()
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	if req.RequestedDelivery != nil {
		at := req.RequestedDelivery.UTC().Truncate(time.Second)
		if at.Before(now) || at.After(now.Add(s.biz.DeliveryWindow)) {
			return nil, invalid("requested_delivery", fmt.Sprintf("must be within %s from now", s.biz.DeliveryWindow))
		}
		req.RequestedDelivery = &at
	}

	var (
		order   *models.Order
		invoice *Invoice
		p       *priced
	)
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		cart, err := tx.GetOpenCart(ctx, customerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		items, err := tx.GetOrderItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		if err := s.validateStock(ctx, tx, items); err != nil {
			return err
		}

		p, err = s.registry.priceItems(ctx, tx, s.biz, customerID, items, req.CouponCode)
		if err != nil {
			return err
		}
		if p.breakdown.Subtotal.LessThan(s.biz.MinCartValue) {
			return invalid("subtotal", fmt.Sprintf("must be at least %s", s.biz.MinCartValue.StringFixed(2)))
		}
		if err := p.breakdown.Check(p.lines); err != nil {
			return fmt.Errorf("pricing identity violated: %w", err)
		}

		for _, it := range items {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity.Neg()); err != nil {
				if errors.Is(err, store.ErrStockConflict) {
					return &StockError{ProductID: it.ProductID, Requested: it.Quantity}
				}
				return err
			}
		}

		cart.OrderTime = &now
		cart.RequestedDeliveryDate = req.RequestedDelivery
		cart.Subtotal = p.breakdown.Subtotal
		cart.VAT = p.breakdown.VAT
		cart.CouponDiscount = p.breakdown.CouponDiscount
		cart.LoyaltyDiscount = p.breakdown.LoyaltyDiscount
		cart.TotalCost = p.breakdown.Total
		couponCode := ""
		if p.coupon != nil {
			cart.UsedCouponID = &p.coupon.ID
			couponCode = p.coupon.Code
		}

		invoice = newInvoice(cart, items, p.breakdown, couponCode)
		if cart.Invoice, err = invoice.encode(); err != nil {
			return err
		}

		if err := tx.PlaceOrder(ctx, cart); err != nil {
			return err
		}
		cart.Items = items
		order = cart
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID),
		zap.String("total", order.TotalCost.String()))

	if req.IdempotencyKey != "" && s.guard != nil {
		if err := s.guard.RememberCheckout(ctx, customerID, req.IdempotencyKey, order.ID, s.biz.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to record checkout idempotency key",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	s.publish(ctx, models.EventTypeOrderPlaced, order.ID, func(ctx context.Context) error {
		return s.publisher.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypeOrderPlaced, now),
			OrderID:    order.ID,
			CustomerID: customerID,
			TotalCost:  order.TotalCost,
			CouponID:   order.UsedCouponID,
			Items:      models.ItemData(order.Items),
		})
	})

	return &CheckoutResult{
		Order:          order,
		Invoice:        invoice,
		CouponRejected: p.couponRejection,
	}, nil
}

// replay returns the order an earlier checkout with the same key produced
func (s *OrderService) replay(ctx context.Context, customerID int64, key string) (*CheckoutResult, error) {
	orderID, found, err := s.guard.LookupCheckout(ctx, customerID, key)
	if err != nil {
		s.logger.Error("Idempotency lookup failed, continuing",
			zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, nil
	}
	if !found {
		return nil, nil
	}

	order, err := s.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	invoice, err := decodeInvoice(order.Invoice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", order.ID))
	return &CheckoutResult{Order: order, Invoice: invoice, Replayed: true}, nil
}

// validateStock rejects the checkout when any line exceeds current stock
func (s *OrderService) validateStock(ctx context.Context, tx *store.Store, items []models.OrderItem) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	products, err := tx.GetProductsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
		}
		if err := checkStock(p, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// publish sends an event after the state change committed. Failures are
// logged and never undo the change.
func (s *OrderService) publish(ctx context.Context, eventType string, orderID int64, send func(context.Context) error) {
	if s.publisher == nil {
		return
	}
	if err := send(ctx); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}

// ListAvailableOrders returns orders waiting for a carrier, oldest first
func (s *OrderService) ListAvailableOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAvailableOrders")
	defer span.End()

	orders, err := s.store.ListOrdersByStatus(ctx, models.OrderStatusAvailable)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	return orders, nil
}

// AssignOrderToCarrier claims an AVAILABLE order for carrierID. Of several
// carriers racing for the same order exactly one gets true; the others get
// false and a nil error and should re-read the available list.
func (s *OrderService) AssignOrderToCarrier(ctx context.Context, orderID, carrierID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AssignOrderToCarrier",
		attribute.Int64("order_id", orderID),
		attribute.Int64("carrier_id", carrierID))
	defer span.End()

	carrier, err := s.store.GetUser(ctx, carrierID)
	if err != nil {
		return false, util.SpanError(span, translate(err))
	}
	if carrier.Role != models.RoleCarrier {
		return false, util.SpanError(span, fmt.Errorf("%w: user %d is not a carrier", ErrForbidden, carrierID))
	}
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return false, util.SpanError(span, translate(err))
	}

	claimed, err := s.store.ClaimOrder(ctx, orderID, carrierID)
	if err != nil {
		return false, util.SpanError(span, translate(err))
	}
	if !claimed {
		util.ClaimConflictsTotal.Inc()
		s.logger.Warn("Order no longer available",
			zap.Int64("order_id", orderID),
			zap.Int64("carrier_id", carrierID))
		return false, nil
	}

	util.OrdersClaimedTotal.Inc()
	s.logger.Info("Order claimed", zap.Int64("order_id", orderID), zap.Int64("carrier_id", carrierID))

	s.publish(ctx, models.EventTypeOrderClaimed, orderID, func(ctx context.Context) error {
		return s.publisher.PublishOrderClaimed(ctx, &models.OrderClaimedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderClaimed, s.now()),
			OrderID:   orderID,
			CarrierID: carrierID,
		})
	})
	return true, nil
}

// StartDelivery records that the assigned carrier picked the order up. The
// order stays SELECTED.
func (s *OrderService) StartDelivery(ctx context.Context, orderID, carrierID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.StartDelivery", attribute.Int64("order_id", orderID))
	defer span.End()

	if err := s.store.MarkPickedUp(ctx, orderID, carrierID, s.now()); err != nil {
		return util.SpanError(span, translate(err))
	}

	s.logger.Info("Order picked up", zap.Int64("order_id", orderID), zap.Int64("carrier_id", carrierID))
	return nil
}

// ReleaseOrder hands a claimed order back to the available pool. Only the
// assigned carrier may release it, and only before pickup.
func (s *OrderService) ReleaseOrder(ctx context.Context, orderID, carrierID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ReleaseOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	if err := s.store.ReleaseOrder(ctx, orderID, carrierID); err != nil {
		return util.SpanError(span, translate(err))
	}

	util.OrdersReleasedTotal.Inc()
	s.logger.Info("Order released", zap.Int64("order_id", orderID), zap.Int64("carrier_id", carrierID))

	s.publish(ctx, models.EventTypeOrderReleased, orderID, func(ctx context.Context) error {
		return s.publisher.PublishOrderReleased(ctx, &models.OrderReleasedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderReleased, s.now()),
			OrderID:   orderID,
			CarrierID: carrierID,
		})
	})
	return nil
}

// CompleteOrder marks a SELECTED order delivered by its carrier. A zero
// deliveredAt means now; otherwise it must lie between the order time and
// now.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID, carrierID int64, deliveredAt time.Time) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	now := s.now()
	if deliveredAt.IsZero() {
		deliveredAt = now
	}
	deliveredAt = deliveredAt.UTC().Truncate(time.Second)
	if deliveredAt.After(now) {
		return util.SpanError(span, invalid("delivered_at", "must not be in the future"))
	}

	var order *models.Order
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		placed, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if placed.OrderTime != nil && deliveredAt.Before(placed.OrderTime.Truncate(time.Second)) {
			return invalid("delivered_at", "must not precede the order time")
		}
		if err := tx.CompleteOrder(ctx, orderID, carrierID, deliveredAt); err != nil {
			return err
		}
		order, err = tx.GetOrderWithItems(ctx, orderID)
		return err
	})
	if err != nil {
		return util.SpanError(span, translate(err))
	}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed", zap.Int64("order_id", orderID), zap.Int64("carrier_id", carrierID))

	s.publish(ctx, models.EventTypeOrderCompleted, orderID, func(ctx context.Context) error {
		return s.publisher.PublishOrderCompleted(ctx, &models.OrderCompletedEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCompleted, deliveredAt),
			OrderID:     orderID,
			CustomerID:  order.CustomerID,
			CarrierID:   carrierID,
			TotalCost:   order.TotalCost,
			DeliveredAt: deliveredAt,
			Items:       models.ItemData(order.Items),
		})
	})
	return nil
}

// CancelOrder cancels an AVAILABLE or SELECTED order on behalf of its
// customer or an owner. With stock restore enabled the line quantities go
// back on the shelf in the same transaction.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	var previous string
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		order, err := tx.GetOrderWithItems(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsOwner() && !(actor.IsCustomer() && order.CustomerID == actor.UserID) {
			return fmt.Errorf("%w: order %d belongs to another customer", ErrForbidden, orderID)
		}
		if order.Status != models.OrderStatusAvailable && order.Status != models.OrderStatusSelected {
			return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, order.Status)
		}

		previous = order.Status
		if err := tx.CancelOrder(ctx, orderID, order.Status); err != nil {
			return err
		}

		if !s.biz.RestoreStockOnCancel {
			return nil
		}
		for _, it := range order.Items {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return util.SpanError(span, translate(err))
	}

	util.OrdersCancelledTotal.WithLabelValues(previous).Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.Int64("cancelled_by", actor.UserID),
		zap.String("previous_state", previous),
		zap.Bool("stock_restored", s.biz.RestoreStockOnCancel))

	s.publish(ctx, models.EventTypeOrderCancelled, orderID, func(ctx context.Context) error {
		return s.publisher.PublishOrderCancelled(ctx, &models.OrderCancelledEvent{
			BaseEvent:     models.NewBaseEvent(models.EventTypeOrderCancelled, s.now()),
			OrderID:       orderID,
			CancelledBy:   actor.UserID,
			PreviousState: previous,
			StockRestored: s.biz.RestoreStockOnCancel,
		})
	})
	return nil
}

// canView reports whether actor may read order: owners see everything,
// customers their own orders, carriers the pool and what they hold.
func canView(actor Actor, order *models.Order) bool {
	switch {
	case actor.IsOwner():
		return true
	case actor.IsCustomer():
		return order.CustomerID == actor.UserID
	case actor.IsCarrier():
		if order.Status == models.OrderStatusAvailable {
			return true
		}
		return order.CarrierID != nil && *order.CarrierID == actor.UserID
	}
	return false
}

// GetOrder returns a placed order with its lines
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := s.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	if order.Status == models.OrderStatusCart {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if !canView(actor, order) {
		return nil, fmt.Errorf("%w: order %d", ErrForbidden, orderID)
	}
	return order, nil
}

// ListCustomerOrders returns a customer's placed orders, newest first
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	orders, err := s.store.ListCustomerOrders(ctx, customerID)
	return orders, translate(err)
}

// ListCarrierOrders returns orders held or delivered by a carrier. An empty
// status lists all of them.
func (s *OrderService) ListCarrierOrders(ctx context.Context, carrierID int64, status string) ([]models.Order, error) {
	orders, err := s.store.ListCarrierOrders(ctx, carrierID, status)
	return orders, translate(err)
}

// ListAllOrders returns every placed order
func (s *OrderService) ListAllOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	orders, err := s.store.ListAllOrders(ctx)
	return orders, translate(err)
}

// Invoice returns the summary stored at checkout
func (s *OrderService) Invoice(ctx context.Context, actor Actor, orderID int64) (*Invoice, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	inv, err := decodeInvoice(order.Invoice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return inv, nil
}

// Tracking stages shown to customers
const (
	StageWaiting   = "WAITING"
	StageReceived  = "RECEIVED"
	StagePreparing = "PREPARING"
	StageOnTheWay  = "ON_THE_WAY"
	StageDelivered = "DELIVERED"
	StageCancelled = "CANCELLED"
)

// Tracking projects the persisted status and pickup time onto the stage
// labels customers see. Nothing about it is stored.
func Tracking(order *models.Order) string {
	switch order.Status {
	case models.OrderStatusCart:
		return StageWaiting
	case models.OrderStatusAvailable:
		return StageReceived
	case models.OrderStatusSelected:
		if order.PickedUpAt != nil {
			return StageOnTheWay
		}
		return StagePreparing
	case models.OrderStatusCompleted:
		return StageDelivered
	case models.OrderStatusCancelled:
		return StageCancelled
	}
	return StageWaiting
}

// TrackingView is the customer-facing progress of an order
type TrackingView struct {
	OrderID      int64      `json:"order_id"`
	Status       string     `json:"status"`
	Stage        string     `json:"stage"`
	CarrierID    *int64     `json:"carrier_id,omitempty"`
	OrderTime    *time.Time `json:"order_time,omitempty"`
	PickedUpAt   *time.Time `json:"picked_up_at,omitempty"`
	DeliveryTime *time.Time `json:"delivery_time,omitempty"`
}

// Track returns the tracking view of an order
func (s *OrderService) Track(ctx context.Context, actor Actor, orderID int64) (*TrackingView, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return &TrackingView{
		OrderID:      order.ID,
		Status:       order.Status,
		Stage:        Tracking(order),
		CarrierID:    order.CarrierID,
		OrderTime:    order.OrderTime,
		PickedUpAt:   order.PickedUpAt,
		DeliveryTime: order.DeliveryTime,
	}, nil
}
