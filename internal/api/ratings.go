package api

import (
	"net/http"

	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
)

type carrierRatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type productRatingsRequest struct {
	Ratings []service.ProductScore `json:"ratings"`
}

func (h *Handler) rateCarrier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req carrierRatingRequest
	if !bind(c, &req) {
		return
	}

	rating, err := h.svc.Ratings.RateCarrier(c.Request.Context(), id, actorFrom(c).UserID, req.Score, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

func (h *Handler) rateProducts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req productRatingsRequest
	if !bind(c, &req) {
		return
	}

	ratings, err := h.svc.Ratings.RateProducts(c.Request.Context(), id, actorFrom(c).UserID, req.Ratings)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ratings": ratings})
}

// orderRatings lists the product ratings left on an order the actor can see
func (h *Handler) orderRatings(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.svc.Orders.GetOrder(ctx, actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	ratings, err := h.svc.Ratings.ListOrderProductRatings(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings})
}

func (h *Handler) carrierRating(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	summary, err := h.svc.Ratings.CarrierAverage(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"summary": summary}
	if actorFrom(c).IsOwner() {
		ratings, err := h.svc.Ratings.ListCarrierRatings(ctx, id)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp["ratings"] = ratings
	}
	c.JSON(http.StatusOK, resp)
}
