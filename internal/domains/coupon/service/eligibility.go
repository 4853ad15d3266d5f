package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/shared/apperror"
)

// AppliedCouponRef is what the gate needs to know about coupons already in a cart.
type AppliedCouponRef struct {
	CouponID  uuid.UUID
	Stackable bool
}

// CartSnapshot is the cart state the gate evaluates against.
type CartSnapshot struct {
	Subtotal       decimal.Decimal
	Items          []model.LineItem
	AppliedCoupons []AppliedCouponRef
}

// EligibilityInput carries everything the gate reads. The gate never loads data itself.
// UserID uuid.Nil marks an anonymous preview: per-user and first-order checks are skipped.
// PriorOrders is the user's non-cancelled order count and only matters for first-time coupons.
type EligibilityInput struct {
	Coupon      *model.Coupon
	UserID      uuid.UUID
	Cart        CartSnapshot
	PriorOrders int
}

type EligibilityResult struct {
	OK                 bool
	Code               apperror.ErrorCode
	Reason             string
	ApplicableItems    []model.LineItem
	ApplicableSubtotal decimal.Decimal
	Discount           decimal.Decimal
	Breakdown          model.DiscountBreakdown
}

// Err converts a failed result into the IneligibleCoupon error shown to the shopper.
func (r EligibilityResult) Err() error {
	if r.OK {
		return nil
	}
	return model.Rejection(r.Code, r.Reason)
}

// EligibilityChecker is the read-only gate run before previewing or applying a coupon.
type EligibilityChecker struct {
	calculator *DiscountCalculator
}

// NewEligibilityChecker shares the calculator's clock so both sides agree on "now".
func NewEligibilityChecker(calculator *DiscountCalculator) *EligibilityChecker {
	return &EligibilityChecker{calculator: calculator}
}

func (e *EligibilityChecker) now() time.Time {
	return e.calculator.now()
}

// CheckUsable runs the coupon and user rules (steps 1 to 4) that do not depend on a cart.
func (e *EligibilityChecker) CheckUsable(c *model.Coupon, userID uuid.UUID) EligibilityResult {
	now := e.now()

	// 1. found and active
	if c == nil {
		return reject(model.CodeNotFound, "We couldn't find a coupon with that code.")
	}
	if !c.IsActive {
		return reject(model.CodeInactive, "This coupon is no longer active.")
	}

	// 2. validity window
	if now.Before(c.ValidFrom) {
		return reject(model.CodeNotStarted, model.NotStartedMessage(c.ValidFrom))
	}
	if now.After(c.ValidTo) {
		return reject(model.CodeExpired, model.ExpiredMessage(c.ValidTo))
	}

	// 3. global cap
	if c.IsExhausted() {
		return reject(model.CodeUsageLimitReached, "This coupon has reached its usage limit.")
	}

	// 4. per-user cap
	if userID != uuid.Nil && !c.CanUserUse(userID) {
		return reject(model.CodeUserLimitReached, "You have already reached the usage limit for this coupon.")
	}

	return EligibilityResult{OK: true}
}

// Check runs the rules in order and stops at the first failure.
func (e *EligibilityChecker) Check(in EligibilityInput) EligibilityResult {
	c := in.Coupon
	if result := e.CheckUsable(c, in.UserID); !result.OK {
		return result
	}

	// 5. already applied, then stacking
	for _, applied := range in.Cart.AppliedCoupons {
		if applied.CouponID == c.ID {
			return reject(model.CodeAlreadyApplied, "This coupon is already applied to your cart.")
		}
	}
	if len(in.Cart.AppliedCoupons) > 0 {
		if !c.Stackable {
			return reject(model.CodeNotStackable, "This coupon cannot be combined with the coupons already in your cart.")
		}
		for _, applied := range in.Cart.AppliedCoupons {
			if !applied.Stackable {
				return reject(model.CodeNotStackable, "Your cart already has a coupon that cannot be combined with others.")
			}
		}
	}

	// 6. minimum order
	if c.MinOrderValue.IsPositive() && in.Cart.Subtotal.LessThan(c.MinOrderValue) {
		return reject(model.CodeMinOrderNotMet, model.MinOrderMessage(c.MinOrderValue, in.Cart.Subtotal))
	}

	// 7. first-time customers
	if c.FirstTimeOnly && in.UserID != uuid.Nil && in.PriorOrders > 0 {
		return reject(model.CodeFirstOrderOnly, "This coupon is only available on your first order.")
	}

	// 8. applicability
	applicable := ResolveApplicable(c, in.Cart.Items)
	if c.ApplicableProducts.Type != model.ApplicableAll && len(applicable) == 0 {
		return reject(model.CodeNotApplicable, "This coupon doesn't apply to any of the items in your cart.")
	}

	// 9. must save something; free shipping saves on the shipping fee instead
	applicableSubtotal := model.SumLineItems(applicable)
	breakdown := e.calculator.CalculateWithBreakdown(c, applicableSubtotal, applicable)
	if c.Type != model.TypeFreeShipping && !breakdown.FinalDiscount.IsPositive() {
		result := reject(model.CodeNoDiscount, "This coupon doesn't give any discount on your current cart.")
		result.ApplicableItems = applicable
		result.ApplicableSubtotal = applicableSubtotal
		result.Breakdown = breakdown
		return result
	}

	return EligibilityResult{
		OK:                 true,
		ApplicableItems:    applicable,
		ApplicableSubtotal: applicableSubtotal,
		Discount:           breakdown.FinalDiscount,
		Breakdown:          breakdown,
	}
}

// Estimate resolves the items c covers and the discount it would give on them,
// ignoring every other rule.
func (e *EligibilityChecker) Estimate(c *model.Coupon, items []model.LineItem) ([]model.LineItem, decimal.Decimal) {
	applicable := ResolveApplicable(c, items)
	return applicable, e.calculator.Calculate(c, model.SumLineItems(applicable), applicable)
}

func reject(code apperror.ErrorCode, reason string) EligibilityResult {
	return EligibilityResult{
		Code:     code,
		Reason:   reason,
		Discount: decimal.Zero,
	}
}
