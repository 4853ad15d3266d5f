package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"plantshop-backend/internal/domains/cart/model"
	couponModel "plantshop-backend/internal/domains/coupon/model"
	couponService "plantshop-backend/internal/domains/coupon/service"
	"plantshop-backend/internal/shared/apperror"
	"plantshop-backend/pkg/logger"
	"plantshop-backend/pkg/metrics"
)

// -------------------------------------------------------------------
// APPLY
// -------------------------------------------------------------------

// ApplyCoupon runs the eligibility gate, then records the use and appends the
// coupon to the cart in one transaction. Either both persist or neither does.
func (s *cartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, req model.ApplyCouponRequest) (*model.ApplyCouponResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	ctx, span := s.tracer.Start(ctx, "CartService.ApplyCoupon")
	defer span.End()
	span.SetAttributes(attribute.String("coupon.code", req.CouponCode))

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.findCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	in := couponService.EligibilityInput{Coupon: coupon, UserID: userID, Cart: snapshotOf(*cart)}
	if coupon != nil {
		if err := s.loadUserUsage(ctx, coupon, userID); err != nil {
			return nil, err
		}
		if coupon.FirstTimeOnly {
			if in.PriorOrders, err = s.orders.CountNonCancelledOrders(ctx, userID); err != nil {
				return nil, fmt.Errorf("count prior orders: %w", err)
			}
		}
	}

	result := s.checker.Check(in)
	if !result.OK {
		s.metrics.ObserveApplication(metrics.ResultRejected, string(result.Code))
		span.SetAttributes(attribute.String("coupon.rejection", string(result.Code)))
		return nil, result.Err()
	}

	discount := result.Discount.Round(2)
	appliedAt := s.now().UTC()
	cart = cart.Clone()
	cart.AppliedCoupons = append(cart.AppliedCoupons, model.AppliedCoupon{
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		DiscountAmount: discount,
		FreeShipping:   coupon.Type == couponModel.TypeFreeShipping,
		Stackable:      coupon.Stackable,
		AppliedAt:      appliedAt,
	})
	*cart = model.RecomputeTotals(*cart)

	record := couponModel.UsageRecord{
		CouponID:       coupon.ID,
		UserID:         userID,
		CartID:         &cart.ID,
		DiscountAmount: discount,
		UsedAt:         appliedAt,
	}
	err = s.tx.WithinTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.coupons.RecordUsage(ctx, tx, coupon, record); err != nil {
			return err
		}
		return s.carts.Save(ctx, tx, cart)
	})
	if err != nil {
		switch {
		case errors.Is(err, couponModel.ErrUsageLimitRace), errors.Is(err, couponModel.ErrUserLimitRace):
			s.metrics.ObserveApplication(metrics.ResultConflict, string(couponModel.CodeUsageConflict))
			return nil, couponModel.ErrUsageConflict
		case errors.Is(err, model.ErrVersionConflict):
			s.metrics.ObserveApplication(metrics.ResultConflict, string(model.CodeUpdateConflict))
			return nil, model.ErrUpdateConflict
		default:
			s.metrics.ObserveApplication(metrics.ResultError, "")
			return nil, fmt.Errorf("apply coupon: %w", err)
		}
	}

	s.metrics.ObserveApplication(metrics.ResultApplied, "")
	s.metrics.AddDiscount(discount.InexactFloat64())
	s.invalidateStats(ctx, coupon.ID)
	logger.Info("coupon applied to cart", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
		"cart_id":   cart.ID,
		"user_id":   userID,
		"discount":  discount.String(),
	})

	return &model.ApplyCouponResponse{Cart: cart, DiscountAmount: discount}, nil
}

// RemoveCoupon drops the coupon from the cart. The recorded use is kept, so
// removing and re-applying counts against the per-user limit again.
func (s *cartService) RemoveCoupon(ctx context.Context, userID, couponID uuid.UUID) (*model.RemoveCouponResponse, error) {
	cart, err := s.mutate(ctx, userID, func(cart *model.Cart) error {
		i := cart.FindCoupon(couponID)
		if i < 0 {
			return couponModel.ErrNotAppliedToCart
		}
		cart.AppliedCoupons = append(cart.AppliedCoupons[:i], cart.AppliedCoupons[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRemoval()
	logger.Info("coupon removed from cart", map[string]interface{}{
		"coupon_id": couponID,
		"cart_id":   cart.ID,
		"user_id":   userID,
	})
	return &model.RemoveCouponResponse{Cart: cart}, nil
}

// -------------------------------------------------------------------
// AVAILABLE COUPONS
// -------------------------------------------------------------------

// ListAvailableCoupons runs every currently valid coupon that is not in the cart
// through the gate. Nothing is written.
func (s *cartService) ListAvailableCoupons(ctx context.Context, userID uuid.UUID) (*model.AvailableCouponsResponse, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	active, err := s.coupons.ListActive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active coupons: %w", err)
	}

	candidates := make([]*couponModel.Coupon, 0, len(active))
	ids := make([]uuid.UUID, 0, len(active))
	for _, c := range active {
		if cart.FindCoupon(c.ID) >= 0 {
			continue
		}
		candidates = append(candidates, c)
		ids = append(ids, c.ID)
	}

	usages, err := s.coupons.GetUserUsages(ctx, ids, userID)
	if err != nil {
		return nil, fmt.Errorf("load user usages: %w", err)
	}
	priorOrders, err := s.orders.CountNonCancelledOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count prior orders: %w", err)
	}

	snapshot := snapshotOf(*cart)
	available := make([]model.AvailableCoupon, 0, len(candidates))
	for _, c := range candidates {
		if usage, ok := usages[c.ID]; ok {
			c.UsageCount.ByUser = []couponModel.UserUsage{usage}
		}

		result := s.checker.Check(couponService.EligibilityInput{
			Coupon:      c,
			UserID:      userID,
			Cart:        snapshot,
			PriorOrders: priorOrders,
		})
		available = append(available, s.annotate(c, result, snapshot.Items))
	}

	sort.SliceStable(available, func(i, j int) bool {
		if !available[i].PotentialDiscount.Equal(available[j].PotentialDiscount) {
			return available[i].PotentialDiscount.GreaterThan(available[j].PotentialDiscount)
		}
		return available[i].Code < available[j].Code
	})

	return &model.AvailableCouponsResponse{
		CartSubtotal:        cart.Subtotal,
		AvailableCoupons:    available,
		IsFirstTimeCustomer: priorOrders == 0,
	}, nil
}

func (s *cartService) annotate(c *couponModel.Coupon, result couponService.EligibilityResult, items []couponModel.LineItem) model.AvailableCoupon {
	entry := model.AvailableCoupon{
		ID:            c.ID,
		Code:          c.Code,
		Name:          c.Name,
		Description:   c.Description,
		Type:          c.Type,
		Value:         c.Value,
		MaxDiscount:   c.MaxDiscount,
		MinOrderValue: c.MinOrderValue,
		ValidTo:       c.ValidTo,
		Stackable:     c.Stackable,
		FirstTimeOnly: c.FirstTimeOnly,
		Eligible:      result.OK,
	}

	if result.OK {
		entry.ApplicableItemCount = len(result.ApplicableItems)
		entry.PotentialDiscount = result.Discount.Round(2)
		return entry
	}

	applicable, discount := s.checker.Estimate(c, items)
	entry.ApplicableItemCount = len(applicable)
	entry.PotentialDiscount = discount.Round(2)
	entry.ReasonCode = string(result.Code)
	entry.Reason = result.Reason
	return entry
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

// findCoupon returns (nil, nil) for an unknown code so the gate reports it.
func (s *cartService) findCoupon(ctx context.Context, code string) (*couponModel.Coupon, error) {
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, couponModel.ErrCouponNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return coupon, nil
}

func (s *cartService) loadUserUsage(ctx context.Context, coupon *couponModel.Coupon, userID uuid.UUID) error {
	usage, err := s.coupons.GetUserUsage(ctx, coupon.ID, userID)
	if err != nil {
		return fmt.Errorf("load user usage: %w", err)
	}
	if usage.Count > 0 {
		coupon.UsageCount.ByUser = []couponModel.UserUsage{*usage}
	}
	return nil
}

func (s *cartService) invalidateStats(ctx context.Context, couponID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, couponService.StatsCacheKey(couponID)); err != nil {
		logger.Warn("coupon stats cache invalidation failed", map[string]interface{}{
			"coupon_id": couponID,
			"error":     err.Error(),
		})
	}
}
