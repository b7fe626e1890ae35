package service

import (
	"context"
	"errors"
	"fmt"

	"grocery-service/config"
	"grocery-service/internal/models"
	"grocery-service/internal/pricing"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService manages the open cart of each customer. The cart is the
// customer's single order row in status CART.
type CartService struct {
	store    *store.Store
	registry *RegistryService
	biz      config.BusinessConfig
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store, registry *RegistryService, biz config.BusinessConfig) *CartService {
	return &CartService{
		store:    store,
		registry: registry,
		biz:      biz,
		logger:   util.GetLogger(),
	}
}

// Cart is the open cart with its lines
type Cart struct {
	OrderID    int64              `json:"order_id"`
	CustomerID int64              `json:"customer_id"`
	Items      []models.OrderItem `json:"items"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
}

// Quote is a priced preview of the cart
type Quote struct {
	pricing.Breakdown
	Items          []models.OrderItem `json:"items"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	CouponRejected string             `json:"coupon_rejected,omitempty"`
	LoyaltyApplied bool               `json:"loyalty_applied"`
}

func validQuantity(p *models.Product, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidQuantity)
	}
	if p.Unit == models.UnitPiece && !amount.IsInteger() {
		return fmt.Errorf("%w: %s is sold by the piece", ErrInvalidQuantity, p.Name)
	}
	return nil
}

func checkStock(p *models.Product, amount decimal.Decimal) error {
	if amount.GreaterThan(p.Stock) {
		return &StockError{ProductID: p.ID, Requested: amount, Available: p.Stock}
	}
	return nil
}

// openCart returns the customer's cart, creating it on first access
func (s *CartService) openCart(ctx context.Context, customerID int64) (*models.Order, error) {
	cart, err := s.store.GetOpenCart(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	cart, err = s.store.CreateCart(ctx, customerID)
	if errors.Is(err, store.ErrDuplicate) {
		// created concurrently by another request of the same customer
		return s.store.GetOpenCart(ctx, customerID)
	}
	return cart, err
}

// mutate runs fn on the open cart inside a transaction and returns the
// resulting cart
func (s *CartService) mutate(ctx context.Context, op string, customerID int64, fn func(tx *store.Store, cart *models.Order) error) (*Cart, error) {
	cart, err := s.openCart(ctx, customerID)
	if err != nil {
		return nil, translate(err)
	}

	var result *Cart
	err = s.store.RunAtomically(ctx, func(tx *store.Store) error {
		current, err := tx.GetOrder(ctx, cart.ID)
		if err != nil {
			return err
		}
		if current.Status != models.OrderStatusCart {
			return fmt.Errorf("%w: cart %d was checked out concurrently", ErrInvalidTransition, cart.ID)
		}

		if err := fn(tx, current); err != nil {
			return err
		}

		result, err = loadCart(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	util.CartMutationsTotal.WithLabelValues(op).Inc()
	return result, nil
}

func loadCart(ctx context.Context, st *store.Store, order *models.Order) (*Cart, error) {
	items, err := st.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}

	return &Cart{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Items:      items,
		Subtotal:   subtotal,
	}, nil
}

// AddToCart adds amount of a product. An existing line for the product is
// merged and keeps the price captured when it was first added.
func (s *CartService) AddToCart(ctx context.Context, customerID, productID int64, amount decimal.Decimal) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddToCart",
		attribute.Int64("customer_id", customerID),
		attribute.Int64("product_id", productID))
	defer span.End()

	cart, err := s.mutate(ctx, "add", customerID, func(tx *store.Store, cart *models.Order) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if err := validQuantity(product, amount); err != nil {
			return err
		}

		line, err := tx.GetOrderItem(ctx, cart.ID, productID)
		switch {
		case err == nil:
			total := line.Quantity.Add(amount)
			if err := checkStock(product, total); err != nil {
				return err
			}
			return tx.SetOrderItemQuantity(ctx, cart.ID, productID, total)

		case errors.Is(err, store.ErrNotFound):
			if err := checkStock(product, amount); err != nil {
				return err
			}
			return tx.CreateOrderItem(ctx, &models.OrderItem{
				OrderID:         cart.ID,
				ProductID:       productID,
				Quantity:        amount,
				PriceAtPurchase: product.EffectivePrice(),
			})

		default:
			return err
		}
	})
	if err != nil {
		return nil, util.SpanError(span, err)
	}

	s.logger.Debug("Added to cart",
		zap.Int64("customer_id", customerID),
		zap.Int64("product_id", productID),
		zap.String("amount", amount.String()))
	return cart, nil
}

// UpdateQuantity replaces the quantity of an existing line. Zero removes
// the line.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, productID int64, amount decimal.Decimal) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity",
		attribute.Int64("customer_id", customerID),
		attribute.Int64("product_id", productID))
	defer span.End()

	if amount.IsZero() {
		return s.RemoveFromCart(ctx, customerID, productID)
	}

	cart, err := s.mutate(ctx, "update", customerID, func(tx *store.Store, cart *models.Order) error {
		if _, err := tx.GetOrderItem(ctx, cart.ID, productID); err != nil {
			return err
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if err := validQuantity(product, amount); err != nil {
			return err
		}
		if err := checkStock(product, amount); err != nil {
			return err
		}
		return tx.SetOrderItemQuantity(ctx, cart.ID, productID, amount)
	})
	return cart, util.SpanError(span, err)
}

// RemoveFromCart drops the line for a product
func (s *CartService) RemoveFromCart(ctx context.Context, customerID, productID int64) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveFromCart",
		attribute.Int64("customer_id", customerID),
		attribute.Int64("product_id", productID))
	defer span.End()

	cart, err := s.mutate(ctx, "remove", customerID, func(tx *store.Store, cart *models.Order) error {
		return tx.DeleteOrderItem(ctx, cart.ID, productID)
	})
	return cart, util.SpanError(span, err)
}

// ClearCart drops every line
func (s *CartService) ClearCart(ctx context.Context, customerID int64) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart", attribute.Int64("customer_id", customerID))
	defer span.End()

	cart, err := s.mutate(ctx, "clear", customerID, func(tx *store.Store, cart *models.Order) error {
		return tx.ClearOrderItems(ctx, cart.ID)
	})
	return cart, util.SpanError(span, err)
}

// GetCart returns the open cart, creating an empty one on first access
func (s *CartService) GetCart(ctx context.Context, customerID int64) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart", attribute.Int64("customer_id", customerID))
	defer span.End()

	order, err := s.openCart(ctx, customerID)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	cart, err := loadCart(ctx, s.store, order)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	return cart, nil
}

// Quote prices the cart as checkout would, without changing anything
func (s *CartService) Quote(ctx context.Context, customerID int64, couponCode string) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Quote", attribute.Int64("customer_id", customerID))
	defer span.End()

	cart, err := s.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	p, err := s.registry.priceItems(ctx, s.store, s.biz, customerID, cart.Items, couponCode)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	q := &Quote{
		Breakdown:      p.breakdown,
		Items:          cart.Items,
		CouponRejected: p.couponRejection,
		LoyaltyApplied: p.loyalty.Eligible,
	}
	if p.coupon != nil {
		q.CouponCode = p.coupon.Code
	}
	return q, nil
}
