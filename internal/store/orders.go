package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-service/internal/models"

	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, carrier_id, status, order_time, requested_delivery_date,
	picked_up_at, delivery_time, subtotal, vat, coupon_discount, loyalty_discount, total_cost,
	used_coupon_id, invoice, created_at`

const itemColumns = `i.id, i.order_id, i.product_id, p.name AS product_name, p.unit,
	i.quantity, i.price_at_purchase`

// GetOrder retrieves an order header by ID
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// GetOrderWithItems retrieves an order header and its lines
func (s *Store) GetOrderWithItems(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	order.Items, err = s.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOpenCart retrieves the customer's CART order
func (s *Store) GetOpenCart(ctx context.Context, customerID int64) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = ? AND status = ?",
		customerID, models.OrderStatusCart)
	if err != nil {
		return nil, notFound(err, "cart of customer", customerID)
	}
	return &order, nil
}

// CreateCart opens a CART order. A second open cart for the same customer
// fails with ErrDuplicate.
func (s *Store) CreateCart(ctx context.Context, customerID int64) (*models.Order, error) {
	order := &models.Order{
		CustomerID: customerID,
		Status:     models.OrderStatusCart,
		CreatedAt:  timestamp(time.Now()),
	}

	id, err := s.insert(ctx,
		"INSERT INTO orders (customer_id, status, invoice, created_at) VALUES (?, ?, '', ?)",
		order.CustomerID, order.Status, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("cart of customer %d: %w", customerID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	order.ID = id
	return order, nil
}

// GetOrderItems retrieves the lines of an order with product name and unit
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.selectAll(ctx, &items, `
		SELECT `+itemColumns+`
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ? ORDER BY i.id`, orderID)
	return items, err
}

// GetOrderItem retrieves the line of an order for one product
func (s *Store) GetOrderItem(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.get(ctx, &item, `
		SELECT `+itemColumns+`
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ? AND i.product_id = ?`, orderID, productID)
	if err != nil {
		return nil, notFound(err, "order line for product", productID)
	}
	return &item, nil
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	id, err := s.insert(ctx,
		"INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase) VALUES (?, ?, ?, ?)",
		item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %d product %d: %w", item.OrderID, item.ProductID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	item.ID = id
	return nil
}

// SetOrderItemQuantity overwrites the quantity of a line
func (s *Store) SetOrderItemQuantity(ctx context.Context, orderID, productID int64, quantity decimal.Decimal) error {
	n, err := s.exec(ctx,
		"UPDATE order_items SET quantity = ? WHERE order_id = ? AND product_id = ?",
		quantity, orderID, productID)
	if err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order line for product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// DeleteOrderItem removes the line of an order for one product
func (s *Store) DeleteOrderItem(ctx context.Context, orderID, productID int64) error {
	n, err := s.exec(ctx, "DELETE FROM order_items WHERE order_id = ? AND product_id = ?", orderID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete order item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order line for product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// ClearOrderItems removes every line of an order
func (s *Store) ClearOrderItems(ctx context.Context, orderID int64) error {
	if _, err := s.exec(ctx, "DELETE FROM order_items WHERE order_id = ?", orderID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}
	return nil
}

// PlaceOrder turns the CART row into an AVAILABLE order carrying the priced
// totals and invoice. It fails with ErrStaleState when the row is no longer
// a cart.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order) error {
	n, err := s.exec(ctx, `
		UPDATE orders SET status = ?, order_time = ?, requested_delivery_date = ?,
			subtotal = ?, vat = ?, coupon_discount = ?, loyalty_discount = ?, total_cost = ?,
			used_coupon_id = ?, invoice = ?
		WHERE id = ? AND status = ?`,
		models.OrderStatusAvailable, order.OrderTime, order.RequestedDeliveryDate,
		order.Subtotal, order.VAT, order.CouponDiscount, order.LoyaltyDiscount, order.TotalCost,
		order.UsedCouponID, order.Invoice,
		order.ID, models.OrderStatusCart)
	if err != nil {
		return fmt.Errorf("failed to place order: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order %d is not an open cart: %w", order.ID, ErrStaleState)
	}

	order.Status = models.OrderStatusAvailable
	return nil
}

// ClaimOrder assigns an AVAILABLE order to a carrier. It returns false when
// the order was no longer AVAILABLE at the time of the write.
func (s *Store) ClaimOrder(ctx context.Context, orderID, carrierID int64) (bool, error) {
	n, err := s.exec(ctx,
		"UPDATE orders SET status = ?, carrier_id = ? WHERE id = ? AND status = ?",
		models.OrderStatusSelected, carrierID, orderID, models.OrderStatusAvailable)
	if err != nil {
		return false, fmt.Errorf("failed to claim order: %w", err)
	}
	return n == 1, nil
}

// MarkPickedUp records that the assigned carrier left with the order
func (s *Store) MarkPickedUp(ctx context.Context, orderID, carrierID int64, at time.Time) error {
	return s.guardedUpdate(ctx, orderID, `
		UPDATE orders SET picked_up_at = ?
		WHERE id = ? AND status = ? AND carrier_id = ? AND picked_up_at IS NULL`,
		timestamp(at), orderID, models.OrderStatusSelected, carrierID)
}

// ReleaseOrder hands a claimed order back to the pool before pickup
func (s *Store) ReleaseOrder(ctx context.Context, orderID, carrierID int64) error {
	return s.guardedUpdate(ctx, orderID, `
		UPDATE orders SET status = ?, carrier_id = NULL
		WHERE id = ? AND status = ? AND carrier_id = ? AND picked_up_at IS NULL`,
		models.OrderStatusAvailable, orderID, models.OrderStatusSelected, carrierID)
}

// CompleteOrder marks a SELECTED order delivered by its carrier
func (s *Store) CompleteOrder(ctx context.Context, orderID, carrierID int64, deliveredAt time.Time) error {
	return s.guardedUpdate(ctx, orderID, `
		UPDATE orders SET status = ?, delivery_time = ?
		WHERE id = ? AND status = ? AND carrier_id = ?`,
		models.OrderStatusCompleted, timestamp(deliveredAt), orderID, models.OrderStatusSelected, carrierID)
}

// CancelOrder moves the order to CANCELLED provided it is still in the
// status the caller observed
func (s *Store) CancelOrder(ctx context.Context, orderID int64, observed string) error {
	return s.guardedUpdate(ctx, orderID,
		"UPDATE orders SET status = ? WHERE id = ? AND status = ?",
		models.OrderStatusCancelled, orderID, observed)
}

func (s *Store) guardedUpdate(ctx context.Context, orderID int64, query string, args ...interface{}) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	if n == 0 {
		if _, err := s.GetOrder(ctx, orderID); errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("order %d: %w", orderID, ErrStaleState)
	}
	return nil
}

// ListOrdersByStatus retrieves orders in one status, oldest first
func (s *Store) ListOrdersByStatus(ctx context.Context, status string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE status = ? ORDER BY order_time, id", status)
	return orders, err
}

// ListCustomerOrders retrieves a customer's checked-out orders, newest first
func (s *Store) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = ? AND status <> ? ORDER BY id DESC",
		customerID, models.OrderStatusCart)
	return orders, err
}

// ListCarrierOrders retrieves orders assigned to a carrier, optionally
// filtered by status
func (s *Store) ListCarrierOrders(ctx context.Context, carrierID int64, status string) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE carrier_id = ?"
	args := []interface{}{carrierID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"

	orders := []models.Order{}
	err := s.selectAll(ctx, &orders, query, args...)
	return orders, err
}

// ListAllOrders retrieves every checked-out order, newest first
func (s *Store) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE status <> ? ORDER BY id DESC", models.OrderStatusCart)
	return orders, err
}

// CountCompletedOrders counts a customer's delivered orders
func (s *Store) CountCompletedOrders(ctx context.Context, customerID int64) (int, error) {
	return s.count(ctx,
		"SELECT COUNT(*) FROM orders WHERE customer_id = ? AND status = ?",
		customerID, models.OrderStatusCompleted)
}

// CountCarrierOrders counts every order ever assigned to a carrier,
// delivered and cancelled ones included
func (s *Store) CountCarrierOrders(ctx context.Context, carrierID int64) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM orders WHERE carrier_id = ?", carrierID)
}
