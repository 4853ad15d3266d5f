package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/domains/coupon/service"
	"plantshop-backend/internal/shared/middleware"
	"plantshop-backend/internal/shared/response"
)

// PublicHandler serves the shopper facing coupon endpoints.
type PublicHandler struct {
	service service.ServiceInterface
}

func NewPublicHandler(service service.ServiceInterface) *PublicHandler {
	return &PublicHandler{service: service}
}

// ValidateCoupon previews a coupon against explicit items or the caller's cart.
// @Router /v1/coupons/validate [post]
func (h *PublicHandler) ValidateCoupon(c *gin.Context) {
	var req model.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	// optional auth: uuid.Nil when anonymous
	callerID, _ := middleware.UserIDFromContext(c)

	result, err := h.service.ValidateCoupon(c.Request.Context(), callerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ApplyToOrder records one use of a coupon against an order the caller owns.
// @Router /v1/coupons/apply [post]
func (h *PublicHandler) ApplyToOrder(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req model.ApplyToOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.ApplyToOrder(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
