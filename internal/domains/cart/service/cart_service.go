package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"plantshop-backend/internal/domains/cart/model"
	"plantshop-backend/internal/domains/cart/repository"
	catalogModel "plantshop-backend/internal/domains/catalog/model"
	catalogRepo "plantshop-backend/internal/domains/catalog/repository"
	couponRepo "plantshop-backend/internal/domains/coupon/repository"
	couponService "plantshop-backend/internal/domains/coupon/service"
	orderRepo "plantshop-backend/internal/domains/order/repository"
	"plantshop-backend/internal/shared/apperror"
	"plantshop-backend/pkg/cache"
	"plantshop-backend/pkg/database"
	"plantshop-backend/pkg/metrics"
	"plantshop-backend/pkg/tracing"
)

type cartService struct {
	carts    repository.CartRepository
	coupons  couponRepo.CouponRepository
	products catalogRepo.ProductRepository
	orders   orderRepo.OrderRepository
	checker  *couponService.EligibilityChecker
	tx       database.Transactor
	cache    cache.Cache
	metrics  *metrics.CouponMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCartService wires the cart aggregate. cache and metrics may be nil.
func NewCartService(
	carts repository.CartRepository,
	coupons couponRepo.CouponRepository,
	products catalogRepo.ProductRepository,
	orders orderRepo.OrderRepository,
	checker *couponService.EligibilityChecker,
	tx database.Transactor,
	cache cache.Cache,
	couponMetrics *metrics.CouponMetrics,
) ServiceInterface {
	return &cartService{
		carts:    carts,
		coupons:  coupons,
		products: products,
		orders:   orders,
		checker:  checker,
		tx:       tx,
		cache:    cache,
		metrics:  couponMetrics,
		tracer:   tracing.Tracer("cart-service"),
		now:      time.Now,
	}
}

// -------------------------------------------------------------------
// READ
// -------------------------------------------------------------------

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// Snapshot returns the user's cart as the pricing engine sees it. A missing cart is empty.
func (s *cartService) Snapshot(ctx context.Context, userID uuid.UUID) (*couponService.CartSnapshot, error) {
	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrCartNotFound) {
			cart = &model.Cart{UserID: userID}
		} else {
			return nil, fmt.Errorf("get cart: %w", err)
		}
	}
	snapshot := snapshotOf(model.RecomputeTotals(*cart))
	return &snapshot, nil
}

func snapshotOf(cart model.Cart) couponService.CartSnapshot {
	refs := make([]couponService.AppliedCouponRef, 0, len(cart.AppliedCoupons))
	for _, applied := range cart.AppliedCoupons {
		refs = append(refs, couponService.AppliedCouponRef{CouponID: applied.CouponID, Stackable: applied.Stackable})
	}
	return couponService.CartSnapshot{
		Subtotal:       cart.Subtotal,
		Items:          cart.LineItems(),
		AppliedCoupons: refs,
	}
}

// -------------------------------------------------------------------
// ITEMS
// -------------------------------------------------------------------

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req model.AddItemRequest) (*model.Cart, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(cart *model.Cart) error {
		if i := cart.FindItem(product.ID); i >= 0 {
			quantity := cart.Items[i].Quantity + req.Quantity
			if quantity > model.MaxItemQuantity {
				return model.ErrQuantityExceeded
			}
			cart.Items[i].Quantity = quantity
			return nil
		}

		cart.Items = append(cart.Items, model.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Quantity:  req.Quantity,
			Price:     product.Price,
			AddedAt:   s.now().UTC(),
		})
		return nil
	})
}

func (s *cartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, req model.UpdateItemRequest) (*model.Cart, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	return s.mutate(ctx, userID, func(cart *model.Cart) error {
		i := cart.FindItem(productID)
		if i < 0 {
			return model.ErrItemNotFound
		}
		cart.Items[i].Quantity = req.Quantity
		return nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart *model.Cart) error {
		i := cart.FindItem(productID)
		if i < 0 {
			return model.ErrItemNotFound
		}
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return nil
	})
}

// Clear empties items and coupons together. Recorded coupon uses stay recorded.
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart *model.Cart) error {
		cart.Items = []model.CartItem{}
		cart.AppliedCoupons = []model.AppliedCoupon{}
		return nil
	})
}

// mutate loads the cart, applies fn to a copy, recomputes totals and saves the copy
// with the version check. Applied coupons keep their frozen discount.
func (s *cartService) mutate(ctx context.Context, userID uuid.UUID, fn func(cart *model.Cart) error) (*model.Cart, error) {
	current, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	*next = model.RecomputeTotals(*next)

	if err := s.carts.Save(ctx, nil, next); err != nil {
		return nil, mapSaveError(err)
	}
	return next, nil
}

func (s *cartService) product(ctx context.Context, productID uuid.UUID) (*catalogModel.Product, error) {
	products, err := s.products.GetProductsByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if len(products) == 0 {
		return nil, catalogModel.ErrNotFound.WithDetails(map[string]interface{}{"productId": productID})
	}
	return &products[0], nil
}

func mapSaveError(err error) error {
	if errors.Is(err, model.ErrVersionConflict) {
		return model.ErrUpdateConflict
	}
	return fmt.Errorf("save cart: %w", err)
}
