package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/shared/apperror"
	"plantshop-backend/pkg/logger"
)

// -------------------------------------------------------------------
// CRUD
// -------------------------------------------------------------------

func (s *couponService) CreateCoupon(ctx context.Context, adminID uuid.UUID, req model.CreateCouponRequest) (*model.CouponResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	var createdBy *uuid.UUID
	if adminID != uuid.Nil {
		createdBy = &adminID
	}
	coupon := req.ToCoupon(createdBy)
	if err := coupon.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if errors.Is(err, model.ErrDuplicateCode) {
			return nil, model.ErrDuplicate
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	logger.Info("coupon created", map[string]interface{}{
		"coupon_id":  coupon.ID,
		"code":       coupon.Code,
		"type":       coupon.Type,
		"created_by": adminID,
	})

	resp := coupon.ToResponse(s.now())
	return &resp, nil
}

func (s *couponService) GetCoupon(ctx context.Context, id uuid.UUID) (*model.CouponResponse, error) {
	coupon, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	usages, err := s.repo.ListUserUsages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list user usages: %w", err)
	}
	coupon.UsageCount.ByUser = usages

	resp := coupon.ToResponse(s.now())
	return &resp, nil
}

func (s *couponService) ListCoupons(ctx context.Context, filter model.ListCouponsFilter) ([]model.CouponResponse, int, error) {
	filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, 0, apperror.Validation(err)
	}

	coupons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}

	now := s.now()
	items := make([]model.CouponResponse, 0, len(coupons))
	for _, c := range coupons {
		items = append(items, c.ToResponse(now))
	}
	return items, total, nil
}

// UpdateCoupon merges a partial update. The code is frozen once the coupon was used.
func (s *couponService) UpdateCoupon(ctx context.Context, id uuid.UUID, req model.UpdateCouponRequest) (*model.CouponResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	coupon, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != coupon.Version {
		return nil, model.ErrUpdateConflict
	}
	if req.Code != nil && *req.Code != coupon.Code && coupon.IsUsed() {
		return nil, model.ErrCodeImmutable
	}

	req.ApplyTo(coupon)
	if err := coupon.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	if err := s.repo.Update(ctx, coupon); err != nil {
		switch {
		case errors.Is(err, model.ErrVersionConflict):
			return nil, model.ErrUpdateConflict
		case errors.Is(err, model.ErrDuplicateCode):
			return nil, model.ErrDuplicate
		default:
			return nil, fmt.Errorf("update coupon: %w", err)
		}
	}

	s.invalidateStats(ctx, coupon.ID)
	logger.Info("coupon updated", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
		"version":   coupon.Version,
	})

	resp := coupon.ToResponse(s.now())
	return &resp, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	coupon, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if coupon.IsUsed() {
		return model.ErrDeleteUsed
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, model.ErrCouponInUse):
			return model.ErrDeleteUsed
		case errors.Is(err, model.ErrCouponNotFound):
			return model.ErrNotFound
		default:
			return fmt.Errorf("delete coupon: %w", err)
		}
	}

	s.invalidateStats(ctx, id)
	logger.Info("coupon deleted", map[string]interface{}{"coupon_id": id, "code": coupon.Code})
	return nil
}

// -------------------------------------------------------------------
// BULK
// -------------------------------------------------------------------

const (
	skipUsedOrMissing = "coupon has been used or does not exist"
	skipInvalidWindow = "validTo must be after validFrom, or coupon does not exist"
)

func (s *couponService) BulkUpdate(ctx context.Context, req model.BulkRequest) (*model.BulkResult, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}
	ids := uniqueIDs(req.CouponIDs)

	result := &model.BulkResult{
		Operation: req.Operation,
		Requested: len(ids),
		Skipped:   []model.BulkSkip{},
	}

	switch req.Operation {
	case model.BulkActivate, model.BulkDeactivate:
		n, err := s.repo.SetActive(ctx, ids, req.Operation == model.BulkActivate)
		if err != nil {
			return nil, fmt.Errorf("bulk %s: %w", req.Operation, err)
		}
		// coupons already in the requested state count as requested but not modified
		result.Modified = n

	case model.BulkDelete:
		deleted, err := s.repo.DeleteUnused(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("bulk delete: %w", err)
		}
		result.Modified = len(deleted)
		result.Skipped = skipped(ids, deleted, skipUsedOrMissing)

	case model.BulkUpdateExpiry:
		updated, err := s.repo.UpdateExpiry(ctx, ids, req.Data.ValidTo.UTC())
		if err != nil {
			return nil, fmt.Errorf("bulk update expiry: %w", err)
		}
		result.Modified = len(updated)
		result.Skipped = skipped(ids, updated, skipInvalidWindow)
	}

	s.invalidateStats(ctx, uuid.Nil)
	logger.Info("coupon bulk operation", map[string]interface{}{
		"operation": req.Operation,
		"requested": result.Requested,
		"modified":  result.Modified,
	})
	return result, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// skipped lists the requested ids missing from done.
func skipped(requested, done []uuid.UUID, reason string) []model.BulkSkip {
	doneSet := idSet(done)
	out := []model.BulkSkip{}
	for _, id := range requested {
		if !doneSet[id] {
			out = append(out, model.BulkSkip{CouponID: id, Reason: reason})
		}
	}
	return out
}

// -------------------------------------------------------------------
// JOBS
// -------------------------------------------------------------------

// DeactivateExpired switches off coupons past validTo in batches.
// Coupons already frozen into carts are left there.
func (s *couponService) DeactivateExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	total := 0
	for {
		n, err := s.repo.DeactivateExpired(ctx, s.now(), batchSize)
		if err != nil {
			return total, fmt.Errorf("deactivate expired coupons: %w", err)
		}
		total += n
		if n < batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}

	if total > 0 {
		s.invalidateStats(ctx, uuid.Nil)
	}
	return total, nil
}
