package api

import (
	"errors"
	"net/http"
	"strings"

	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// authenticate resolves the bearer token into the request's actor
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actor, err := h.svc.Users.ParseToken(strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).Role != role {
			abort(c, http.StatusForbidden, "requires role "+role)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(service.Actor); ok {
			return a
		}
	}
	return service.Actor{}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusOf maps the service error taxonomy onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicate), errors.Is(err, service.ErrInUse),
		errors.Is(err, service.ErrAlreadyRated), errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrClaimConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrInvalidCoupon),
		errors.Is(err, service.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Internal failures are logged and
// their details withheld from the client.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := gin.H{"error": err.Error()}

	var verr *service.ValidationError
	var cerr *service.CouponError
	var serr *service.StockError
	switch {
	case errors.As(err, &verr):
		body["field"] = verr.Field
	case errors.As(err, &cerr):
		body["coupon_reason"] = cerr.Reason
	case errors.As(err, &serr):
		body["product_id"] = serr.ProductID
		body["available"] = serr.Available
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		body = gin.H{"error": "internal error"}
	}
	c.AbortWithStatusJSON(status, body)
}
