package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantshop-backend/internal/domains/cart/model"
	"plantshop-backend/internal/domains/cart/service"
	"plantshop-backend/internal/shared/middleware"
	"plantshop-backend/internal/shared/response"
)

type CartHandler struct {
	service service.ServiceInterface
}

func NewCartHandler(service service.ServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

// GetCart returns the caller's cart, creating an empty one on first access.
// @Router /v1/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// @Router /v1/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req model.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	cart, err := h.service.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// @Router /v1/cart/items/{productId} [put]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	productID, ok := parseParam(c, "productId")
	if !ok {
		return
	}

	var req model.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	cart, err := h.service.UpdateItem(c.Request.Context(), userID, productID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// @Router /v1/cart/items/{productId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	productID, ok := parseParam(c, "productId")
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(c.Request.Context(), userID, productID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// @Router /v1/cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cart, err := h.service.Clear(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// ApplyCoupon checks the coupon against the cart and applies it.
// @Router /v1/cart/apply-coupon [post]
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req model.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.ApplyCoupon(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// @Router /v1/cart/remove-coupon/{couponId} [delete]
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	couponID, ok := parseParam(c, "couponId")
	if !ok {
		return
	}

	result, err := h.service.RemoveCoupon(c.Request.Context(), userID, couponID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// AvailableCoupons lists every live coupon with the discount it would give this cart.
// @Router /v1/cart/available-coupons [get]
func (h *CartHandler) AvailableCoupons(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.service.ListAvailableCoupons(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

func parseParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
