package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/domains/coupon/service"
	"plantshop-backend/internal/shared/middleware"
	"plantshop-backend/internal/shared/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves coupon management. Routes are mounted behind auth and admin middleware.
type AdminHandler struct {
	service service.ServiceInterface
}

func NewAdminHandler(service service.ServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// -------------------------------------------------------------------
// CREATE & UPDATE
// -------------------------------------------------------------------

// CreateCoupon
// @Router /v1/coupons [post]
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req model.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	adminID, _ := middleware.UserIDFromContext(c)
	coupon, err := h.service.CreateCoupon(c.Request.Context(), adminID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, coupon)
}

// UpdateCoupon applies a partial update.
// @Router /v1/coupons/:id [put]
func (h *AdminHandler) UpdateCoupon(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	coupon, err := h.service.UpdateCoupon(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, coupon)
}

// DeleteCoupon removes a coupon that was never used.
// @Router /v1/coupons/:id [delete]
func (h *AdminHandler) DeleteCoupon(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCoupon(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// BulkUpdate
// @Router /v1/coupons/bulk [post]
func (h *AdminHandler) BulkUpdate(c *gin.Context) {
	var req model.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.BulkUpdate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

// GetCoupon
// @Router /v1/coupons/:id [get]
func (h *AdminHandler) GetCoupon(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	coupon, err := h.service.GetCoupon(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, coupon)
}

// ListCoupons supports isActive, type, search, page and limit.
// @Router /v1/coupons [get]
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	coupons, total, err := h.service.ListCoupons(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter.Normalize()
	response.SuccessWithMeta(c, http.StatusOK, coupons, &response.Meta{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	})
}

// GetStats
// @Router /v1/coupons/:id/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ExportCoupons streams the filtered coupons as an xlsx file.
// @Router /v1/coupons/export [get]
func (h *AdminHandler) ExportCoupons(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	data, err := h.service.ExportCoupons(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("coupons_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid coupon ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (model.ListCouponsFilter, bool) {
	filter := model.ListCouponsFilter{
		Type:   model.CouponType(c.Query("type")),
		Search: c.Query("search"),
	}

	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "isActive must be true or false")
			return filter, false
		}
		filter.IsActive = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return filter, true
}
