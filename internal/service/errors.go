package service

import (
	"errors"
	"fmt"

	"grocery-service/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidCoupon     = errors.New("invalid coupon")
	ErrAlreadyRated      = errors.New("already rated")
	ErrClaimConflict     = errors.New("order is no longer available")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrDuplicate         = errors.New("already exists")
	ErrInUse             = errors.New("still referenced")
	ErrPersistence       = errors.New("persistence failure")
)

var domainErrors = []error{
	ErrValidation, ErrInsufficientStock, ErrInvalidQuantity, ErrInvalidCoupon, ErrAlreadyRated,
	ErrClaimConflict, ErrInvalidTransition, ErrNotFound, ErrForbidden, ErrUnauthenticated,
	ErrEmptyCart, ErrDuplicate, ErrInUse, ErrPersistence,
}

// ValidationError reports one malformed input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Coupon rejection reasons
const (
	CouponNotFound = "not_found"
	CouponInactive = "inactive"
	CouponExpired  = "expired"
)

// CouponError says why a coupon code was rejected
type CouponError struct {
	Code   string
	Reason string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

func (e *CouponError) Unwrap() error {
	return ErrInvalidCoupon
}

// StockError reports a line that exceeds what is on the shelf
type StockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%s, available=%s",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// translate maps store errors onto the service taxonomy. Errors that
// already belong to it pass through; anything else is a persistence
// failure with the cause kept in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, store.ErrReferenced):
		return fmt.Errorf("%w: %v", ErrInUse, err)
	case errors.Is(err, store.ErrStockConflict):
		return fmt.Errorf("%w: %v", ErrInsufficientStock, err)
	case errors.Is(err, store.ErrStaleState):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
