package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts /cart. Every cart route needs an authenticated user.
func RegisterRoutes(rg *gin.RouterGroup, h *CartHandler, auth gin.HandlerFunc) {
	cart := rg.Group("/cart", auth)
	{
		cart.GET("", h.GetCart)
		cart.DELETE("", h.Clear)

		cart.POST("/items", h.AddItem)
		cart.PUT("/items/:productId", h.UpdateItem)
		cart.DELETE("/items/:productId", h.RemoveItem)

		cart.GET("/available-coupons", h.AvailableCoupons)
		cart.POST("/apply-coupon", h.ApplyCoupon)
		cart.DELETE("/remove-coupon/:couponId", h.RemoveCoupon)
	}
}
