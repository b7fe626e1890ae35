package api

import (
	"errors"
	"io"
	"net/http"

	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type quantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type quoteRequest struct {
	CouponCode string `json:"coupon_code"`
}

// bindOptional decodes the JSON body when one was sent
func bindOptional(c *gin.Context, into interface{}) bool {
	if err := c.ShouldBindJSON(into); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Carts.GetCart(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addToCart(c *gin.Context) {
	var req addItemRequest
	if !bind(c, &req) {
		return
	}

	cart, err := h.svc.Carts.AddToCart(c.Request.Context(), actorFrom(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var req quantityRequest
	if !bind(c, &req) {
		return
	}

	cart, err := h.svc.Carts.UpdateQuantity(c.Request.Context(), actorFrom(c).UserID, productID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	cart, err := h.svc.Carts.RemoveFromCart(c.Request.Context(), actorFrom(c).UserID, productID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.svc.Carts.ClearCart(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) quote(c *gin.Context) {
	var req quoteRequest
	if !bindOptional(c, &req) {
		return
	}

	q, err := h.svc.Carts.Quote(c.Request.Context(), actorFrom(c).UserID, req.CouponCode)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// checkout places the open cart. A repeated Idempotency-Key returns the
// order placed the first time.
func (h *Handler) checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if !bindOptional(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	res, err := h.svc.Orders.Checkout(c.Request.Context(), actorFrom(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}
