package api

import (
	"fmt"
	"net/http"
	"time"

	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
)

type completeRequest struct {
	DeliveredAt *time.Time `json:"delivered_at"`
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListCustomerOrders(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListAllOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.svc.Orders.Invoice(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) trackOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.Orders.Track(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Orders.CancelOrder(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "CANCELLED"})
}

func (h *Handler) listAvailableOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListAvailableOrders(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// listMyDeliveries lists the carrier's orders, optionally filtered by ?status=
func (h *Handler) listMyDeliveries(c *gin.Context) {
	orders, err := h.svc.Orders.ListCarrierOrders(c.Request.Context(), actorFrom(c).UserID, c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) claimOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	claimed, err := h.svc.Orders.AssignOrderToCarrier(c.Request.Context(), id, actorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !claimed {
		h.fail(c, fmt.Errorf("%w: order %d", service.ErrClaimConflict, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "SELECTED"})
}

func (h *Handler) pickupOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Orders.StartDelivery(c.Request.Context(), id, actorFrom(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "SELECTED"})
}

func (h *Handler) releaseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Orders.ReleaseOrder(c.Request.Context(), id, actorFrom(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "AVAILABLE"})
}

func (h *Handler) completeOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}

	var at time.Time
	if req.DeliveredAt != nil {
		at = *req.DeliveredAt
	}
	if err := h.svc.Orders.CompleteOrder(c.Request.Context(), id, actorFrom(c).UserID, at); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "COMPLETED"})
}
