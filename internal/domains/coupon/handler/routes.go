package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes mounts /coupons/validate and /coupons/apply.
// optionalAuth lets anonymous shoppers preview; auth is required to apply.
func RegisterPublicRoutes(rg *gin.RouterGroup, h *PublicHandler, optionalAuth, auth gin.HandlerFunc) {
	coupons := rg.Group("/coupons")
	coupons.POST("/validate", optionalAuth, h.ValidateCoupon)
	coupons.POST("/apply", auth, h.ApplyToOrder)
}

// RegisterAdminRoutes mounts coupon management behind the given middleware chain.
func RegisterAdminRoutes(rg *gin.RouterGroup, h *AdminHandler, guards ...gin.HandlerFunc) {
	admin := rg.Group("/coupons", guards...)
	admin.POST("", h.CreateCoupon)
	admin.GET("", h.ListCoupons)
	admin.GET("/export", h.ExportCoupons)
	admin.POST("/bulk", h.BulkUpdate)
	admin.GET("/:id", h.GetCoupon)
	admin.PUT("/:id", h.UpdateCoupon)
	admin.DELETE("/:id", h.DeleteCoupon)
	admin.GET("/:id/stats", h.GetStats)
}
