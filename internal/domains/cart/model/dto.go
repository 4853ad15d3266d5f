package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	couponModel "plantshop-backend/internal/domains/coupon/model"
)

// MaxItemQuantity bounds a single cart line.
const MaxItemQuantity = 99

type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, couponModel.RequiredID),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(MaxItemQuantity)),
	)
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (r UpdateItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(MaxItemQuantity)),
	)
}

type ApplyCouponRequest struct {
	CouponCode string `json:"couponCode"`
}

func (r *ApplyCouponRequest) Normalize() {
	r.CouponCode = couponModel.NormalizeCode(r.CouponCode)
}

func (r ApplyCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CouponCode, couponModel.CodeRules...),
	)
}

type ApplyCouponResponse struct {
	Cart           *Cart           `json:"cart"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

type RemoveCouponResponse struct {
	Cart *Cart `json:"cart"`
}

// AvailableCoupon is one entry of the cart's coupon suggestions.
type AvailableCoupon struct {
	ID                  uuid.UUID              `json:"id"`
	Code                string                 `json:"code"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	Type                couponModel.CouponType `json:"type"`
	Value               decimal.Decimal        `json:"value"`
	MaxDiscount         *decimal.Decimal       `json:"maxDiscount,omitempty"`
	MinOrderValue       decimal.Decimal        `json:"minOrderValue"`
	ValidTo             time.Time              `json:"validTo"`
	Stackable           bool                   `json:"stackable"`
	FirstTimeOnly       bool                   `json:"firstTimeOnly"`
	ApplicableItemCount int                    `json:"applicableItemCount"`
	PotentialDiscount   decimal.Decimal        `json:"potentialDiscount"`
	Eligible            bool                   `json:"eligible"`
	ReasonCode          string                 `json:"reasonCode,omitempty"`
	Reason              string                 `json:"reason,omitempty"`
}

type AvailableCouponsResponse struct {
	CartSubtotal        decimal.Decimal   `json:"cartSubtotal"`
	AvailableCoupons    []AvailableCoupon `json:"availableCoupons"`
	IsFirstTimeCustomer bool              `json:"isFirstTimeCustomer"`
}
