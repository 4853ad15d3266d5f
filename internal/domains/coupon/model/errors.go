package model

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"plantshop-backend/internal/shared/apperror"
)

// Repository level sentinels, translated to AppError by the service.
var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrDuplicateCode   = errors.New("coupon code already exists")
	ErrVersionConflict = errors.New("coupon was modified concurrently")
	ErrUsageLimitRace  = errors.New("coupon usage limit reached during update")
	ErrUserLimitRace   = errors.New("coupon per-user limit reached during update")
	ErrCouponInUse     = errors.New("coupon has recorded usage")
)

const (
	// Eligibility (400 unless noted)
	CodeNotFound          apperror.ErrorCode = "COUPON_NOT_FOUND" // 404
	CodeInactive          apperror.ErrorCode = "COUPON_INACTIVE"
	CodeNotStarted        apperror.ErrorCode = "COUPON_NOT_STARTED"
	CodeExpired           apperror.ErrorCode = "COUPON_EXPIRED"
	CodeUsageLimitReached apperror.ErrorCode = "COUPON_USAGE_LIMIT_REACHED"
	CodeUserLimitReached  apperror.ErrorCode = "COUPON_USER_LIMIT_REACHED"
	CodeAlreadyApplied    apperror.ErrorCode = "COUPON_ALREADY_APPLIED"
	CodeNotStackable      apperror.ErrorCode = "COUPON_NOT_STACKABLE"
	CodeMinOrderNotMet    apperror.ErrorCode = "COUPON_MIN_ORDER_NOT_MET"
	CodeFirstOrderOnly    apperror.ErrorCode = "COUPON_FIRST_ORDER_ONLY"
	CodeNotApplicable     apperror.ErrorCode = "COUPON_NOT_APPLICABLE"
	CodeNoDiscount        apperror.ErrorCode = "COUPON_NO_DISCOUNT"
	CodeNotApplied        apperror.ErrorCode = "COUPON_NOT_APPLIED"

	// Mutation (409)
	CodeUsageConflict     apperror.ErrorCode = "COUPON_USAGE_CONFLICT"
	CodeUpdateConflict    apperror.ErrorCode = "COUPON_UPDATE_CONFLICT"
	CodeDuplicateCode     apperror.ErrorCode = "VAL_DUPLICATE_CODE"
	CodeImmutableAfterUse apperror.ErrorCode = "COUPON_IMMUTABLE_AFTER_USE"
)

// Predefined errors
var (
	ErrNotFound = apperror.NotFound(CodeNotFound, "We couldn't find a coupon with that code.")

	ErrUsageConflict = apperror.Conflict(CodeUsageConflict,
		"This coupon just reached its usage limit. Please try another coupon.")

	ErrUpdateConflict = apperror.Conflict(CodeUpdateConflict,
		"The coupon was changed by someone else. Reload it and try again.")

	ErrDuplicate = apperror.Conflict(CodeDuplicateCode, "A coupon with this code already exists.")

	ErrCodeImmutable = apperror.Conflict(CodeImmutableAfterUse,
		"The code of a coupon that has already been used cannot be changed.")

	ErrDeleteUsed = apperror.Conflict(CodeImmutableAfterUse,
		"A coupon that has already been used cannot be deleted. Deactivate it instead.")

	ErrNotAppliedToCart = apperror.BadRequest(CodeNotApplied, "This coupon is not applied to your cart.")
)

const DisplayDateLayout = "Jan 2, 2006"

// FormatMoney renders an amount for user-facing sentences, e.g. $100.00.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// Rejection builds the IneligibleCoupon error for a gate failure.
func Rejection(code apperror.ErrorCode, message string) *apperror.AppError {
	status := http.StatusBadRequest
	if code == CodeNotFound {
		status = http.StatusNotFound
	}
	return apperror.New(status, code, message)
}

func NotStartedMessage(from time.Time) string {
	return fmt.Sprintf("This coupon is not yet active. It becomes valid on %s.", from.Format(DisplayDateLayout))
}

func ExpiredMessage(to time.Time) string {
	return fmt.Sprintf("This coupon expired on %s.", to.Format(DisplayDateLayout))
}

func MinOrderMessage(min, subtotal decimal.Decimal) string {
	return fmt.Sprintf("This coupon requires a %s minimum order. Add %s more to use it.",
		FormatMoney(min), FormatMoney(min.Sub(subtotal)))
}
