package service

import (
	"context"

	"github.com/google/uuid"

	"plantshop-backend/internal/domains/coupon/model"
)

type ServiceInterface interface {
	// Public
	ValidateCoupon(ctx context.Context, callerID uuid.UUID, req model.ValidateCouponRequest) (*model.ValidateCouponResponse, error)
	ApplyToOrder(ctx context.Context, userID uuid.UUID, req model.ApplyToOrderRequest) (*model.ApplyToOrderResponse, error)

	// Admin
	CreateCoupon(ctx context.Context, adminID uuid.UUID, req model.CreateCouponRequest) (*model.CouponResponse, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (*model.CouponResponse, error)
	ListCoupons(ctx context.Context, filter model.ListCouponsFilter) ([]model.CouponResponse, int, error)
	UpdateCoupon(ctx context.Context, id uuid.UUID, req model.UpdateCouponRequest) (*model.CouponResponse, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
	BulkUpdate(ctx context.Context, req model.BulkRequest) (*model.BulkResult, error)
	GetStats(ctx context.Context, id uuid.UUID) (*model.CouponStats, error)
	ExportCoupons(ctx context.Context, filter model.ListCouponsFilter) ([]byte, error)

	// Jobs
	DeactivateExpired(ctx context.Context, batchSize int) (int, error)
}

// CartSource exposes the caller's cart to the preview endpoint without
// importing the cart domain.
type CartSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*CartSnapshot, error)
}
