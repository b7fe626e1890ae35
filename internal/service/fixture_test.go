package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"grocery-service/config"
	"grocery-service/internal/broker"
	"grocery-service/internal/models"
	"grocery-service/internal/redisclient"
	"grocery-service/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// eventLog captures what the broker would have written
type eventLog struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (l *eventLog) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msgs...)
	return nil
}

func (l *eventLog) Close() error { return nil }

// types returns the event type of every captured message in order
func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.msgs))
	for _, m := range l.msgs {
		var base models.BaseEvent
		if err := json.Unmarshal(m.Value, &base); err == nil {
			out = append(out, base.EventType)
		}
	}
	return out
}

func (l *eventLog) last(t *testing.T, into interface{}) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.msgs)
	require.NoError(t, json.Unmarshal(l.msgs[len(l.msgs)-1].Value, into))
}

func defaultBusiness() config.BusinessConfig {
	return config.BusinessConfig{
		VATRate:          dec("0.10"),
		MinCartValue:     decimal.Zero,
		CouponPolicy:     config.CouponPolicySoft,
		DeliveryWindow:   48 * time.Hour,
		LoyaltyMinOrders: 5,
		LoyaltyRate:      dec("10"),
		IdempotencyTTL:   time.Hour,
	}
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	st       *store.Store
	redis    *miniredis.Miniredis
	events   *eventLog
	clock    time.Time
	registry *RegistryService
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
	ratings  *RatingService
	reports  *ReportService
	users    *UserService
	owner    Actor
}

func newFixture(t *testing.T, biz config.BusinessConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewTestStore(t)
	require.NoError(t, st.EnsureLoyaltyRules(ctx, models.LoyaltyRules{
		MinOrderCount: biz.LoyaltyMinOrders,
		Rate:          biz.LoyaltyRate,
	}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	guard := redisclient.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	events := &eventLog{}
	publisher := broker.NewEventPublisher(broker.NewProducerWithWriter(events))

	f := &fixture{
		t:      t,
		ctx:    ctx,
		st:     st,
		redis:  mr,
		events: events,
		clock:  time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.registry = NewRegistryService(st)
	f.registry.now = now
	f.catalog = NewCatalogService(st)
	f.carts = NewCartService(st, f.registry, biz)
	f.orders = NewOrderService(st, f.registry, guard, publisher, biz)
	f.orders.now = now
	f.ratings = NewRatingService(st)
	f.reports = NewReportService(st)
	f.users = NewUserService(st, "test-secret", time.Hour)
	f.users.now = now

	owner := f.user("boss", models.RoleOwner)
	f.owner = Actor{UserID: owner.ID, Role: models.RoleOwner}
	return f
}

func (f *fixture) user(username, role string) *models.User {
	f.t.Helper()
	u := &models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         role,
		Address:      "1 Market St",
		Phone:        "+905551112233",
	}
	require.NoError(f.t, f.st.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) customer(username string) Actor {
	u := f.user(username, models.RoleCustomer)
	return Actor{UserID: u.ID, Role: models.RoleCustomer}
}

func (f *fixture) carrier(username string) Actor {
	u := f.user(username, models.RoleCarrier)
	return Actor{UserID: u.ID, Role: models.RoleCarrier}
}

func (f *fixture) product(name, unit, price, stock, threshold string) *models.Product {
	f.t.Helper()
	view, err := f.catalog.Create(f.ctx, f.owner, ProductInput{
		Name:      name,
		Category:  models.CategoryFruit,
		Unit:      unit,
		Price:     dec(price),
		Stock:     dec(stock),
		Threshold: dec(threshold),
	})
	require.NoError(f.t, err)
	return &view.Product
}

func (f *fixture) stock(productID int64) decimal.Decimal {
	f.t.Helper()
	p, err := f.st.GetProduct(f.ctx, productID)
	require.NoError(f.t, err)
	return p.Stock
}

func (f *fixture) coupon(code, amount string, expiry time.Time) *models.Coupon {
	f.t.Helper()
	c, err := f.registry.CreateCoupon(f.ctx, f.owner, CouponInput{
		Code:           code,
		DiscountAmount: dec(amount),
		ExpiryDate:     expiry,
	})
	require.NoError(f.t, err)
	return c
}

// placed adds qty of product to the customer's cart and checks out
func (f *fixture) placed(customer Actor, product *models.Product, qty string) *models.Order {
	f.t.Helper()
	_, err := f.carts.AddToCart(f.ctx, customer.UserID, product.ID, dec(qty))
	require.NoError(f.t, err)
	res, err := f.orders.Checkout(f.ctx, customer.UserID, CheckoutRequest{})
	require.NoError(f.t, err)
	return res.Order
}

// delivered places an order and runs it through claim and delivery
func (f *fixture) delivered(customer, carrier Actor, product *models.Product, qty string) *models.Order {
	f.t.Helper()
	order := f.placed(customer, product, qty)
	ok, err := f.orders.AssignOrderToCarrier(f.ctx, order.ID, carrier.UserID)
	require.NoError(f.t, err)
	require.True(f.t, ok)
	require.NoError(f.t, f.orders.CompleteOrder(f.ctx, order.ID, carrier.UserID, f.clock))
	return order
}
