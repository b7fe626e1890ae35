package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"grocery-service/internal/models"
	"grocery-service/internal/service"
	"grocery-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Orders   *service.OrderService
	Ratings  *service.RatingService
	Registry *service.RegistryService
	Users    *service.UserService
	Reports  *service.ReportService
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	ready  map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. Every entry of ready must answer a
// ping for /ready to report the service as ready.
func NewHandler(svc Services, ready map[string]Pinger) *Handler {
	return &Handler{
		svc:    svc,
		ready:  ready,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/ratings", h.productRating)
	}

	authed := v1.Group("", h.authenticate())

	owner := authed.Group("", requireRole(models.RoleOwner))
	{
		owner.POST("/products", h.createProduct)
		owner.PUT("/products/:id", h.updateProduct)
		owner.DELETE("/products/:id", h.deleteProduct)
		owner.POST("/products/:id/restock", h.restockProduct)

		owner.GET("/coupons", h.listCoupons)
		owner.POST("/coupons", h.createCoupon)
		owner.POST("/coupons/:id/deactivate", h.deactivateCoupon)
		owner.DELETE("/coupons/:id", h.deleteCoupon)

		owner.PUT("/loyalty", h.updateLoyaltyRules)

		owner.GET("/carriers", h.listCarriers)
		owner.POST("/carriers", h.createCarrier)
		owner.DELETE("/carriers/:id", h.deleteCarrier)

		owner.GET("/orders", h.listAllOrders)

		owner.GET("/reports/sales", h.salesReport)
		owner.GET("/reports/carriers", h.carrierPerformance)
	}

	customer := authed.Group("", requireRole(models.RoleCustomer))
	{
		customer.GET("/cart", h.getCart)
		customer.POST("/cart/items", h.addToCart)
		customer.PATCH("/cart/items/:productId", h.updateCartItem)
		customer.DELETE("/cart/items/:productId", h.removeCartItem)
		customer.DELETE("/cart", h.clearCart)
		customer.POST("/cart/quote", h.quote)
		customer.POST("/cart/checkout", h.checkout)

		customer.GET("/me/orders", h.listMyOrders)
		customer.GET("/me/loyalty", h.myLoyalty)

		customer.POST("/orders/:id/ratings/carrier", h.rateCarrier)
		customer.POST("/orders/:id/ratings/products", h.rateProducts)
	}

	carrier := authed.Group("/deliveries", requireRole(models.RoleCarrier))
	{
		carrier.GET("/available", h.listAvailableOrders)
		carrier.GET("", h.listMyDeliveries)
		carrier.POST("/:id/claim", h.claimOrder)
		carrier.POST("/:id/pickup", h.pickupOrder)
		carrier.POST("/:id/release", h.releaseOrder)
		carrier.POST("/:id/complete", h.completeOrder)
	}

	// shared by every role; the service decides what each actor may see
	{
		authed.GET("/orders/:id", h.getOrder)
		authed.GET("/orders/:id/invoice", h.getInvoice)
		authed.GET("/orders/:id/tracking", h.trackOrder)
		authed.POST("/orders/:id/cancel", h.cancelOrder)
		authed.GET("/orders/:id/ratings", h.orderRatings)
		authed.GET("/loyalty", h.loyaltyRules)
		authed.GET("/carriers/:id/ratings", h.carrierRating)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.ready {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
