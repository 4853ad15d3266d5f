package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantshop-backend/internal/domains/coupon/model"
)

// CouponRepository defines coupon data access.
// Methods taking a pgx.Tx run inside the caller's transaction; a nil tx uses the pool.
type CouponRepository interface {
	// Read operations
	FindByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	ListActive(ctx context.Context, at time.Time) ([]*model.Coupon, error)
	List(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, int, error)
	ListForExport(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, error)

	// Write operations
	Create(ctx context.Context, coupon *model.Coupon) error
	Update(ctx context.Context, coupon *model.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Bulk
	SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int, error)
	DeleteUnused(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	UpdateExpiry(ctx context.Context, ids []uuid.UUID, validTo time.Time) ([]uuid.UUID, error)
	DeactivateExpired(ctx context.Context, at time.Time, limit int) (int, error)

	// Usage ledger
	GetUserUsage(ctx context.Context, couponID, userID uuid.UUID) (*model.UserUsage, error)
	GetUserUsages(ctx context.Context, couponIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]model.UserUsage, error)
	ListUserUsages(ctx context.Context, couponID uuid.UUID) ([]model.UserUsage, error)
	RecordUsage(ctx context.Context, tx pgx.Tx, coupon *model.Coupon, record model.UsageRecord) error

	// Stats
	GetUsageAggregate(ctx context.Context, couponID uuid.UUID) (*model.UsageAggregate, error)
	GetDailyUsage(ctx context.Context, couponID uuid.UUID, since time.Time) ([]model.DailyUsage, error)
}
