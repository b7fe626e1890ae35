package api

import (
	"net/http"
	"time"

	"grocery-service/internal/models"
	"grocery-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.svc.Registry.ListCoupons(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

func (h *Handler) createCoupon(c *gin.Context) {
	var in service.CouponInput
	if !bind(c, &in) {
		return
	}

	coupon, err := h.svc.Registry.CreateCoupon(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *Handler) deactivateCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Registry.DeactivateCoupon(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Registry.DeleteCoupon(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) loyaltyRules(c *gin.Context) {
	rules, err := h.svc.Registry.LoyaltyRules(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) updateLoyaltyRules(c *gin.Context) {
	var rules models.LoyaltyRules
	if !bind(c, &rules) {
		return
	}

	if err := h.svc.Registry.UpdateLoyaltyRules(c.Request.Context(), actorFrom(c), rules); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) myLoyalty(c *gin.Context) {
	status, err := h.svc.Registry.GetLoyaltyDiscount(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) listCarriers(c *gin.Context) {
	carriers, err := h.svc.Users.ListCarriers(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"carriers": carriers})
}

func (h *Handler) createCarrier(c *gin.Context) {
	var in service.NewUser
	if !bind(c, &in) {
		return
	}
	in.Role = models.RoleCarrier

	u, err := h.svc.Users.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) deleteCarrier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Users.DeleteCarrier(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// salesReport takes ?from= and ?to= as RFC 3339 timestamps or dates;
// both default to the last 30 days
func (h *Handler) salesReport(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = parseTime(v); err != nil {
			abort(c, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = parseTime(v); err != nil {
			abort(c, http.StatusBadRequest, "invalid to")
			return
		}
	}

	report, err := h.svc.Reports.SalesReport(c.Request.Context(), actorFrom(c), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) carrierPerformance(c *gin.Context) {
	stats, err := h.svc.Reports.CarrierPerformance(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"carriers": stats})
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
