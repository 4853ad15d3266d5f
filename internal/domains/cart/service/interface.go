package service

import (
	"context"

	"github.com/google/uuid"

	"plantshop-backend/internal/domains/cart/model"
	couponService "plantshop-backend/internal/domains/coupon/service"
)

type ServiceInterface interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, req model.AddItemRequest) (*model.Cart, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, req model.UpdateItemRequest) (*model.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*model.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	ApplyCoupon(ctx context.Context, userID uuid.UUID, req model.ApplyCouponRequest) (*model.ApplyCouponResponse, error)
	RemoveCoupon(ctx context.Context, userID, couponID uuid.UUID) (*model.RemoveCouponResponse, error)
	ListAvailableCoupons(ctx context.Context, userID uuid.UUID) (*model.AvailableCouponsResponse, error)

	// Snapshot feeds the coupon preview endpoint.
	couponService.CartSource
}
