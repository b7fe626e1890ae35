package api

import (
	"net/http"

	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type restockRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// listProducts serves the catalog. ?q= searches by name and
// ?available=true hides sold out products.
func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		views []service.ProductView
		err   error
	)
	switch {
	case c.Query("q") != "":
		views, err = h.svc.Catalog.Search(ctx, c.Query("q"))
	case c.Query("available") == "true":
		views, err = h.svc.Catalog.ListAvailable(ctx)
	default:
		views, err = h.svc.Catalog.List(ctx)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": views})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) productRating(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	summary, err := h.svc.Ratings.ProductAverage(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if !bind(c, &in) {
		return
	}

	view, err := h.svc.Catalog.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.ProductInput
	if !bind(c, &in) {
		return
	}

	view, err := h.svc.Catalog.Update(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Catalog.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) restockProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req restockRequest
	if !bind(c, &req) {
		return
	}

	view, err := h.svc.Catalog.Restock(c.Request.Context(), actorFrom(c), id, req.Delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
