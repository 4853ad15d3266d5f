package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogModel "plantshop-backend/internal/domains/catalog/model"
	catalogRepo "plantshop-backend/internal/domains/catalog/repository"
	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/domains/coupon/repository"
	orderModel "plantshop-backend/internal/domains/order/model"
	orderRepo "plantshop-backend/internal/domains/order/repository"
	"plantshop-backend/internal/shared/apperror"
	"plantshop-backend/pkg/cache"
	"plantshop-backend/pkg/database"
	"plantshop-backend/pkg/logger"
	"plantshop-backend/pkg/metrics"
	"plantshop-backend/pkg/tracing"
)

const (
	statsCacheKeyPrefix = "coupon:stats:"
	statsCachePattern   = statsCacheKeyPrefix + "*"
	statsWindowDays     = 30
)

type couponService struct {
	repo       repository.CouponRepository
	products   catalogRepo.ProductRepository
	orders     orderRepo.OrderRepository
	carts      CartSource
	tx         database.Transactor
	cache      cache.Cache
	metrics    *metrics.CouponMetrics
	calculator *DiscountCalculator
	checker    *EligibilityChecker
	tracer     trace.Tracer
	statsTTL   time.Duration
}

// NewCouponService wires the coupon use cases. cache and metrics may be nil.
func NewCouponService(
	repo repository.CouponRepository,
	products catalogRepo.ProductRepository,
	orders orderRepo.OrderRepository,
	carts CartSource,
	tx database.Transactor,
	cache cache.Cache,
	couponMetrics *metrics.CouponMetrics,
	checker *EligibilityChecker,
	statsTTL time.Duration,
) ServiceInterface {
	return &couponService{
		repo:       repo,
		products:   products,
		orders:     orders,
		carts:      carts,
		tx:         tx,
		cache:      cache,
		metrics:    couponMetrics,
		calculator: checker.calculator,
		checker:    checker,
		tracer:     tracing.Tracer("coupon-service"),
		statsTTL:   statsTTL,
	}
}

func (s *couponService) now() time.Time {
	return s.calculator.now()
}

// -------------------------------------------------------------------
// VALIDATE (preview, never commits)
// -------------------------------------------------------------------

// ValidateCoupon previews a coupon. callerID is uuid.Nil for anonymous requests,
// in which case req.UserID (if any) drives the per-user checks only; the stored
// cart is read for authenticated callers alone.
func (s *couponService) ValidateCoupon(ctx context.Context, callerID uuid.UUID, req model.ValidateCouponRequest) (*model.ValidateCouponResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	ctx, span := s.tracer.Start(ctx, "CouponService.ValidateCoupon")
	defer span.End()
	span.SetAttributes(attribute.String("coupon.code", req.Code))

	userID := callerID
	if userID == uuid.Nil && req.UserID != nil {
		userID = *req.UserID
	}

	cart, err := s.previewCart(ctx, callerID, req.CartItems)
	if err != nil {
		return nil, err
	}

	coupon, err := s.findByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	in, err := s.eligibilityInput(ctx, coupon, userID, *cart)
	if err != nil {
		return nil, err
	}

	result := s.checker.Check(in)
	if !result.OK {
		s.metrics.ObserveValidation(metrics.ResultInvalid)
		span.SetAttributes(attribute.String("coupon.rejection", string(result.Code)))
		return nil, result.Err()
	}
	s.metrics.ObserveValidation(metrics.ResultValid)

	return &model.ValidateCouponResponse{
		Coupon:             coupon.ToResponse(s.now()),
		Discount:           result.Discount,
		DiscountDetails:    result.Breakdown,
		ApplicableProducts: result.ApplicableItems,
	}, nil
}

// previewCart builds the cart the preview runs against: explicit items first,
// otherwise the authenticated caller's stored cart.
func (s *couponService) previewCart(ctx context.Context, callerID uuid.UUID, items []model.CartItemInput) (*CartSnapshot, error) {
	if len(items) > 0 {
		lines, err := s.lineItems(ctx, items)
		if err != nil {
			return nil, err
		}
		return &CartSnapshot{Subtotal: model.SumLineItems(lines), Items: lines}, nil
	}

	if callerID == uuid.Nil || s.carts == nil {
		return nil, apperror.BadRequest(apperror.CodeValidationFailed, "cartItems are required when no cart is available.")
	}

	cart, err := s.carts.Snapshot(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// lineItems prices request items from the catalog; quantities of repeated products are merged.
func (s *couponService) lineItems(ctx context.Context, items []model.CartItemInput) ([]model.LineItem, error) {
	quantities := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, seen := quantities[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	products, err := s.products.GetProductsByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uuid.UUID]catalogModel.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]model.LineItem, 0, len(order))
	for _, id := range order {
		p, ok := byID[id]
		if !ok {
			return nil, catalogModel.ErrNotFound.WithDetails(map[string]interface{}{"productId": id})
		}
		lines = append(lines, model.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Quantity:  quantities[id],
		})
	}
	return lines, nil
}

// eligibilityInput loads the user specific state the gate needs.
func (s *couponService) eligibilityInput(ctx context.Context, coupon *model.Coupon, userID uuid.UUID, cart CartSnapshot) (EligibilityInput, error) {
	in := EligibilityInput{Coupon: coupon, UserID: userID, Cart: cart}
	if coupon == nil || userID == uuid.Nil {
		return in, nil
	}

	if err := s.loadUserUsage(ctx, coupon, userID); err != nil {
		return in, err
	}

	if coupon.FirstTimeOnly {
		count, err := s.orders.CountNonCancelledOrders(ctx, userID)
		if err != nil {
			return in, fmt.Errorf("count prior orders: %w", err)
		}
		in.PriorOrders = count
	}
	return in, nil
}

func (s *couponService) loadUserUsage(ctx context.Context, coupon *model.Coupon, userID uuid.UUID) error {
	usage, err := s.repo.GetUserUsage(ctx, coupon.ID, userID)
	if err != nil {
		return fmt.Errorf("load user usage: %w", err)
	}
	if usage.Count > 0 {
		coupon.UsageCount.ByUser = []model.UserUsage{*usage}
	}
	return nil
}

// findByCode returns (nil, nil) for an unknown code so the gate reports it.
func (s *couponService) findByCode(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return coupon, nil
}

func (s *couponService) findByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return coupon, nil
}

// -------------------------------------------------------------------
// APPLY TO ORDER (commits one use)
// -------------------------------------------------------------------

func (s *couponService) ApplyToOrder(ctx context.Context, userID uuid.UUID, req model.ApplyToOrderRequest) (*model.ApplyToOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	ctx, span := s.tracer.Start(ctx, "CouponService.ApplyToOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("coupon.id", req.CouponID.String()),
		attribute.String("order.id", req.OrderID.String()),
	)

	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orderModel.ErrOrderNotFound) {
			return nil, orderModel.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	// someone else's order is reported as missing
	if order.UserID != userID {
		return nil, orderModel.ErrNotFound
	}
	if order.IsCancelled() {
		return nil, orderModel.ErrCancelled
	}

	coupon, err := s.findByID(ctx, req.CouponID)
	if err != nil {
		return nil, err
	}
	if err := s.loadUserUsage(ctx, coupon, userID); err != nil {
		return nil, err
	}

	if result := s.checker.CheckUsable(coupon, userID); !result.OK {
		s.metrics.ObserveApplication(metrics.ResultRejected, string(result.Code))
		return nil, result.Err()
	}

	discount := s.calculator.Calculate(coupon, order.Total, nil)
	record := model.UsageRecord{
		CouponID:       coupon.ID,
		UserID:         userID,
		OrderID:        &order.ID,
		DiscountAmount: discount,
		UsedAt:         s.now(),
	}

	err = s.tx.WithinTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.RecordUsage(ctx, tx, coupon, record)
	})
	if err != nil {
		if errors.Is(err, model.ErrUsageLimitRace) || errors.Is(err, model.ErrUserLimitRace) {
			s.metrics.ObserveApplication(metrics.ResultConflict, string(model.CodeUsageConflict))
			return nil, model.ErrUsageConflict
		}
		s.metrics.ObserveApplication(metrics.ResultError, "")
		return nil, fmt.Errorf("record coupon usage: %w", err)
	}

	s.metrics.ObserveApplication(metrics.ResultApplied, "")
	s.invalidateStats(ctx, coupon.ID)
	logger.Info("coupon applied to order", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
		"order_id":  order.ID,
		"user_id":   userID,
		"discount":  discount.String(),
	})

	return &model.ApplyToOrderResponse{Coupon: coupon.ToResponse(s.now())}, nil
}
