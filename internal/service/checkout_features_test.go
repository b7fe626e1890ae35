package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"grocery-service/internal/models"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type checkoutScenario struct {
	t        *testing.T
	f        *fixture
	actors   map[string]Actor
	products map[string]*models.Product
	result   *CheckoutResult
	err      error
	orderID  int64
}

func (sc *checkoutScenario) reset() {
	sc.f = newFixture(sc.t, defaultBusiness())
	sc.actors = map[string]Actor{}
	sc.products = map[string]*models.Product{}
	sc.result = nil
	sc.err = nil
	sc.orderID = 0
}

func (sc *checkoutScenario) actor(name string) (Actor, error) {
	a, ok := sc.actors[name]
	if !ok {
		return Actor{}, fmt.Errorf("unknown user %q", name)
	}
	return a, nil
}

func (sc *checkoutScenario) product(name string) (*models.Product, error) {
	p, ok := sc.products[name]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", name)
	}
	return p, nil
}

func (sc *checkoutScenario) vatIsPercent(pct int) error {
	sc.f.orders.biz.VATRate = decimal.NewFromInt(int64(pct)).Shift(-2)
	return nil
}

func (sc *checkoutScenario) couponPolicyIs(policy string) error {
	sc.f.orders.biz.CouponPolicy = policy
	return nil
}

func (sc *checkoutScenario) aCustomer(name string) error {
	sc.actors[name] = sc.f.customer(name)
	return nil
}

func (sc *checkoutScenario) aCarrier(name string) error {
	sc.actors[name] = sc.f.carrier(name)
	return nil
}

func (sc *checkoutScenario) aProduct(name, price, stock, threshold string) error {
	sc.products[name] = sc.f.product(name, models.UnitKg, price, stock, threshold)
	return nil
}

func (sc *checkoutScenario) aCoupon(code, amount string, days int) error {
	_, err := sc.f.registry.CreateCoupon(sc.f.ctx, sc.f.owner, CouponInput{
		Code:           code,
		DiscountAmount: dec(amount),
		ExpiryDate:     sc.f.clock.AddDate(0, 0, days),
	})
	return err
}

func (sc *checkoutScenario) daysPass(days int) error {
	sc.f.clock = sc.f.clock.AddDate(0, 0, days)
	return nil
}

func (sc *checkoutScenario) addsToCart(name, qty, productName string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	p, err := sc.product(productName)
	if err != nil {
		return err
	}
	_, err = sc.f.carts.AddToCart(sc.f.ctx, a.UserID, p.ID, dec(qty))
	return err
}

func (sc *checkoutScenario) checksOutWithCoupon(name, code string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	sc.result, sc.err = sc.f.orders.Checkout(sc.f.ctx, a.UserID, CheckoutRequest{CouponCode: code})
	if sc.err == nil {
		sc.orderID = sc.result.Order.ID
	}
	return nil
}

func (sc *checkoutScenario) checksOut(name string) error {
	return sc.checksOutWithCoupon(name, "")
}

func (sc *checkoutScenario) checkoutSucceeds() error {
	if sc.err != nil {
		return fmt.Errorf("checkout failed: %w", sc.err)
	}
	return nil
}

func (sc *checkoutScenario) checkoutFailsWithCouponReason(reason string) error {
	var couponErr *CouponError
	if !errors.As(sc.err, &couponErr) {
		return fmt.Errorf("expected a coupon error, got %v", sc.err)
	}
	if couponErr.Reason != reason {
		return fmt.Errorf("coupon reason %q, want %q", couponErr.Reason, reason)
	}
	return nil
}

func (sc *checkoutScenario) couponRejectedAs(reason string) error {
	if sc.result == nil || sc.result.CouponRejected != reason {
		return fmt.Errorf("coupon rejection %v, want %q", sc.result, reason)
	}
	return nil
}

func (sc *checkoutScenario) orderAmount(field string) func(string) error {
	return func(want string) error {
		if sc.result == nil {
			return errors.New("no order placed")
		}
		var got decimal.Decimal
		switch field {
		case "subtotal":
			got = sc.result.Order.Subtotal
		case "vat":
			got = sc.result.Order.VAT
		default:
			got = sc.result.Order.TotalCost
		}
		if !dec(want).Equal(got) {
			return fmt.Errorf("order %s is %s, want %s", field, got, want)
		}
		return nil
	}
}

func (sc *checkoutScenario) stockIs(productName, want string) error {
	p, err := sc.product(productName)
	if err != nil {
		return err
	}
	got, err := sc.f.st.GetProduct(sc.f.ctx, p.ID)
	if err != nil {
		return err
	}
	if !dec(want).Equal(got.Stock) {
		return fmt.Errorf("stock of %s is %s, want %s", productName, got.Stock, want)
	}
	return nil
}

func (sc *checkoutScenario) claimsOrder(name string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	ok, err := sc.f.orders.AssignOrderToCarrier(sc.f.ctx, sc.orderID, a.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("order was already claimed")
	}
	return nil
}

func (sc *checkoutScenario) deliversOrder(name string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	return sc.f.orders.CompleteOrder(sc.f.ctx, sc.orderID, a.UserID, sc.f.clock)
}

func (sc *checkoutScenario) canCancel(name string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	return sc.f.orders.CancelOrder(sc.f.ctx, a, sc.orderID)
}

func (sc *checkoutScenario) cancelFailsWithInvalidTransition(name string) error {
	a, err := sc.actor(name)
	if err != nil {
		return err
	}
	if err := sc.f.orders.CancelOrder(sc.f.ctx, a, sc.orderID); !errors.Is(err, ErrInvalidTransition) {
		return fmt.Errorf("cancel returned %v, want an invalid transition", err)
	}
	return nil
}

func (sc *checkoutScenario) orderStatusIs(want string) error {
	order, err := sc.f.st.GetOrder(sc.f.ctx, sc.orderID)
	if err != nil {
		return err
	}
	if order.Status != want {
		return fmt.Errorf("order status %s, want %s", order.Status, want)
	}
	return nil
}

func initializeCheckoutScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		sc := &checkoutScenario{t: t}

		ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
			sc.reset()
			return ctx, nil
		})

		ctx.Step(`^VAT is (\d+) percent$`, sc.vatIsPercent)
		ctx.Step(`^the coupon policy is "([^"]*)"$`, sc.couponPolicyIs)
		ctx.Step(`^a customer "([^"]*)"$`, sc.aCustomer)
		ctx.Step(`^a carrier "([^"]*)"$`, sc.aCarrier)
		ctx.Step(`^a product "([^"]*)" priced ([\d.]+) with stock ([\d.]+) and threshold ([\d.]+)$`, sc.aProduct)
		ctx.Step(`^a coupon "([^"]*)" worth ([\d.]+) expiring in (-?\d+) days$`, sc.aCoupon)
		ctx.Step(`^(\d+) days pass$`, sc.daysPass)

		ctx.Step(`^"([^"]*)" adds ([\d.]+) of "([^"]*)" to the cart$`, sc.addsToCart)
		ctx.Step(`^"([^"]*)" checks out$`, sc.checksOut)
		ctx.Step(`^"([^"]*)" checks out with coupon "([^"]*)"$`, sc.checksOutWithCoupon)
		ctx.Step(`^"([^"]*)" claims the order$`, sc.claimsOrder)
		ctx.Step(`^"([^"]*)" delivers the order$`, sc.deliversOrder)

		ctx.Step(`^the checkout succeeds$`, sc.checkoutSucceeds)
		ctx.Step(`^the checkout fails with coupon reason "([^"]*)"$`, sc.checkoutFailsWithCouponReason)
		ctx.Step(`^the coupon was rejected as "([^"]*)"$`, sc.couponRejectedAs)
		ctx.Step(`^the order subtotal is ([\d.]+)$`, sc.orderAmount("subtotal"))
		ctx.Step(`^the order VAT is ([\d.]+)$`, sc.orderAmount("vat"))
		ctx.Step(`^the order total is ([\d.]+)$`, sc.orderAmount("total"))
		ctx.Step(`^the stock of "([^"]*)" is ([\d.]+)$`, sc.stockIs)
		ctx.Step(`^"([^"]*)" can cancel the order$`, sc.canCancel)
		ctx.Step(`^cancelling the order as "([^"]*)" fails with an invalid transition$`, sc.cancelFailsWithInvalidTransition)
		ctx.Step(`^the order status is "([^"]*)"$`, sc.orderStatusIs)
	}
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCheckoutScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
