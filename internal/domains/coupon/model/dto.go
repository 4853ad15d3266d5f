package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ========================================
// ADMIN REQUESTS
// ========================================

type UsageLimitInput struct {
	Total   *int `json:"total"`
	PerUser *int `json:"perUser"`
}

// UsageLimitUpdate tells an omitted total apart from an explicit null,
// which removes the global cap.
type UsageLimitUpdate struct {
	Total    *int
	TotalSet bool
	PerUser  *int
}

func (u *UsageLimitUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Total   json.RawMessage `json:"total"`
		PerUser *int            `json:"perUser"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = UsageLimitUpdate{PerUser: raw.PerUser, TotalSet: raw.Total != nil}
	if u.TotalSet && string(raw.Total) != "null" {
		var total int
		if err := json.Unmarshal(raw.Total, &total); err != nil {
			return err
		}
		u.Total = &total
	}
	return nil
}

type ApplicableProductsInput struct {
	Type             ApplicabilityType `json:"type"`
	Products         []uuid.UUID       `json:"products"`
	Categories       []string          `json:"categories"`
	ExcludedProducts []uuid.UUID       `json:"excludedProducts"`
}

type CreateCouponRequest struct {
	Code               string                   `json:"code"`
	Name               string                   `json:"name"`
	Description        string                   `json:"description"`
	Type               CouponType               `json:"type"`
	Value              decimal.Decimal          `json:"value"`
	MaxDiscount        *decimal.Decimal         `json:"maxDiscount"`
	MinOrderValue      decimal.Decimal          `json:"minOrderValue"`
	UsageLimit         UsageLimitInput          `json:"usageLimit"`
	ValidFrom          time.Time                `json:"validFrom"`
	ValidTo            time.Time                `json:"validTo"`
	ApplicableProducts *ApplicableProductsInput `json:"applicableProducts"`
	BuyXGetY           *BuyXGetY                `json:"buyXGetY"`
	IsActive           *bool                    `json:"isActive"`
	IsAutomatic        bool                     `json:"isAutomatic"`
	Stackable          bool                     `json:"stackable"`
	FirstTimeOnly      bool                     `json:"firstTimeOnly"`
}

func (r *CreateCouponRequest) Normalize() {
	r.Code = NormalizeCode(r.Code)
	r.Name = strings.TrimSpace(r.Name)
}

// Validate checks request shape; cross-field rules run on the mapped entity.
func (r CreateCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, CodeRules...),
		validation.Field(&r.Name, validation.Length(0, 120)),
		validation.Field(&r.Type, validation.Required, validation.In(CouponTypes...)),
		validation.Field(&r.ValidFrom, validation.Required),
		validation.Field(&r.ValidTo, validation.Required),
	)
}

// ToCoupon maps the request onto a new entity with defaults applied.
func (r CreateCouponRequest) ToCoupon(createdBy *uuid.UUID) *Coupon {
	perUser := DefaultPerUserLimit
	if r.UsageLimit.PerUser != nil {
		perUser = *r.UsageLimit.PerUser
	}
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}

	applicable := ApplicableProducts{Type: ApplicableAll}
	if r.ApplicableProducts != nil {
		applicable = ApplicableProducts(*r.ApplicableProducts)
		if applicable.Type == "" {
			applicable.Type = ApplicableAll
		}
	}

	c := &Coupon{
		ID:                 uuid.New(),
		Code:               r.Code,
		Name:               r.Name,
		Description:        r.Description,
		Type:               r.Type,
		Value:              r.Value,
		MaxDiscount:        r.MaxDiscount,
		MinOrderValue:      r.MinOrderValue,
		UsageLimit:         UsageLimit{Total: r.UsageLimit.Total, PerUser: perUser},
		ValidFrom:          r.ValidFrom.UTC(),
		ValidTo:            r.ValidTo.UTC(),
		ApplicableProducts: applicable,
		IsActive:           isActive,
		IsAutomatic:        r.IsAutomatic,
		Stackable:          r.Stackable,
		FirstTimeOnly:      r.FirstTimeOnly,
		Version:            1,
		CreatedBy:          createdBy,
	}
	if r.Type == TypeBuyXGetY {
		c.BuyXGetY = r.BuyXGetY
	}
	return c
}

// UpdateCouponRequest is a partial update; nil fields are left untouched.
type UpdateCouponRequest struct {
	Code               *string                  `json:"code"`
	Name               *string                  `json:"name"`
	Description        *string                  `json:"description"`
	Value              *decimal.Decimal         `json:"value"`
	MaxDiscount        *decimal.Decimal         `json:"maxDiscount"`
	MinOrderValue      *decimal.Decimal         `json:"minOrderValue"`
	UsageLimit         *UsageLimitUpdate        `json:"usageLimit"`
	ValidFrom          *time.Time               `json:"validFrom"`
	ValidTo            *time.Time               `json:"validTo"`
	ApplicableProducts *ApplicableProductsInput `json:"applicableProducts"`
	BuyXGetY           *BuyXGetY                `json:"buyXGetY"`
	IsActive           *bool                    `json:"isActive"`
	IsAutomatic        *bool                    `json:"isAutomatic"`
	Stackable          *bool                    `json:"stackable"`
	FirstTimeOnly      *bool                    `json:"firstTimeOnly"`

	// Version, when sent, must match the stored version.
	Version *int `json:"version"`
}

func (r *UpdateCouponRequest) Normalize() {
	if r.Code != nil {
		code := NormalizeCode(*r.Code)
		r.Code = &code
	}
}

func (r UpdateCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.NilOrNotEmpty, validation.By(func(value interface{}) error {
			code, _ := value.(*string)
			if code == nil {
				return nil
			}
			return validation.Validate(*code, CodeRules...)
		})),
	)
}

// ApplyTo merges the request into c. The caller validates the result.
func (r UpdateCouponRequest) ApplyTo(c *Coupon) {
	if r.Code != nil {
		c.Code = *r.Code
	}
	if r.Name != nil {
		c.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Value != nil {
		c.Value = *r.Value
	}
	if r.MaxDiscount != nil {
		c.MaxDiscount = r.MaxDiscount
	}
	if r.MinOrderValue != nil {
		c.MinOrderValue = *r.MinOrderValue
	}
	if r.UsageLimit != nil {
		if r.UsageLimit.TotalSet {
			c.UsageLimit.Total = r.UsageLimit.Total
		}
		if r.UsageLimit.PerUser != nil {
			c.UsageLimit.PerUser = *r.UsageLimit.PerUser
		}
	}
	if r.ValidFrom != nil {
		c.ValidFrom = r.ValidFrom.UTC()
	}
	if r.ValidTo != nil {
		c.ValidTo = r.ValidTo.UTC()
	}
	if r.ApplicableProducts != nil {
		c.ApplicableProducts = ApplicableProducts(*r.ApplicableProducts)
	}
	if r.BuyXGetY != nil {
		c.BuyXGetY = r.BuyXGetY
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	if r.IsAutomatic != nil {
		c.IsAutomatic = *r.IsAutomatic
	}
	if r.Stackable != nil {
		c.Stackable = *r.Stackable
	}
	if r.FirstTimeOnly != nil {
		c.FirstTimeOnly = *r.FirstTimeOnly
	}
}

// ListCouponsFilter backs GET /coupons.
type ListCouponsFilter struct {
	IsActive *bool
	Type     CouponType
	Search   string
	Page     int
	Limit    int
}

func (f *ListCouponsFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	f.Search = NormalizeCode(f.Search)
}

func (f ListCouponsFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

func (f ListCouponsFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.In(CouponTypes...)),
	)
}

// ========================================
// BULK OPERATIONS
// ========================================

type BulkOperation string

const (
	BulkActivate     BulkOperation = "activate"
	BulkDeactivate   BulkOperation = "deactivate"
	BulkDelete       BulkOperation = "delete"
	BulkUpdateExpiry BulkOperation = "updateExpiry"
)

const MaxBulkCoupons = 100

type BulkData struct {
	ValidTo *time.Time `json:"validTo"`
}

type BulkRequest struct {
	Operation BulkOperation `json:"operation"`
	CouponIDs []uuid.UUID   `json:"couponIds"`
	Data      *BulkData     `json:"data"`
}

func (r BulkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Operation, validation.Required,
			validation.In(BulkActivate, BulkDeactivate, BulkDelete, BulkUpdateExpiry)),
		validation.Field(&r.CouponIDs, validation.Required, validation.Length(1, MaxBulkCoupons)),
		validation.Field(&r.Data, validation.When(r.Operation == BulkUpdateExpiry,
			validation.Required,
			validation.By(func(value interface{}) error {
				data, _ := value.(*BulkData)
				if data == nil || data.ValidTo == nil {
					return errors.New("validTo is required for updateExpiry")
				}
				return nil
			}),
		)),
	)
}

type BulkSkip struct {
	CouponID uuid.UUID `json:"couponId"`
	Reason   string    `json:"reason"`
}

type BulkResult struct {
	Operation BulkOperation `json:"operation"`
	Requested int           `json:"requested"`
	Modified  int           `json:"modified"`
	Skipped   []BulkSkip    `json:"skipped"`
}

// ========================================
// PUBLIC REQUESTS
// ========================================

type CartItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (i CartItemInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ProductID, RequiredID),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
	)
}

// ValidateCouponRequest previews a coupon without committing anything.
type ValidateCouponRequest struct {
	Code      string          `json:"code"`
	CartItems []CartItemInput `json:"cartItems"`
	UserID    *uuid.UUID      `json:"userId"`
}

func (r *ValidateCouponRequest) Normalize() {
	r.Code = NormalizeCode(r.Code)
}

func (r ValidateCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, CodeRules...),
		validation.Field(&r.CartItems),
	)
}

// ApplyToOrderRequest commits a use against an existing order.
type ApplyToOrderRequest struct {
	CouponID uuid.UUID `json:"couponId"`
	OrderID  uuid.UUID `json:"orderId"`
}

func (r ApplyToOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CouponID, RequiredID),
		validation.Field(&r.OrderID, RequiredID),
	)
}

// ========================================
// RESPONSES
// ========================================

type CouponResponse struct {
	*Coupon
	RemainingUses    *int   `json:"remainingUses"`
	IsCurrentlyValid bool   `json:"isCurrentlyValid"`
	Status           string `json:"status"`
}

func (c *Coupon) ToResponse(at time.Time) CouponResponse {
	return CouponResponse{
		Coupon:           c,
		RemainingUses:    c.RemainingUses(),
		IsCurrentlyValid: c.IsCurrentlyValid(at),
		Status:           c.Status(at),
	}
}

// DiscountBreakdown explains how a discount was reached.
type DiscountBreakdown struct {
	Type                CouponType      `json:"type"`
	ApplicableSubtotal  decimal.Decimal `json:"applicableSubtotal"`
	RawDiscount         decimal.Decimal `json:"rawDiscount"`
	FinalDiscount       decimal.Decimal `json:"finalDiscount"`
	Capped              bool            `json:"capped"`
	CapReason           string          `json:"capReason,omitempty"`
	FreeItems           int             `json:"freeItems,omitempty"`
	QualifyingProductID *uuid.UUID      `json:"qualifyingProductId,omitempty"`
	FreeShipping        bool            `json:"freeShipping,omitempty"`
}

type ValidateCouponResponse struct {
	Coupon             CouponResponse    `json:"coupon"`
	Discount           decimal.Decimal   `json:"discount"`
	DiscountDetails    DiscountBreakdown `json:"discountDetails"`
	ApplicableProducts []LineItem        `json:"applicableProducts"`
}

type ApplyToOrderResponse struct {
	Coupon CouponResponse `json:"coupon"`
}

// ========================================
// STATS
// ========================================

type DailyUsage struct {
	Date     time.Time       `json:"date"`
	Uses     int             `json:"uses"`
	Discount decimal.Decimal `json:"discount"`
}

type CouponStats struct {
	CouponID         uuid.UUID       `json:"couponId"`
	Code             string          `json:"code"`
	TotalUses        int             `json:"totalUses"`
	UniqueUsers      int             `json:"uniqueUsers"`
	TotalDiscount    decimal.Decimal `json:"totalDiscount"`
	AverageDiscount  decimal.Decimal `json:"averageDiscount"`
	OrdersAttributed int             `json:"ordersAttributed"`
	ConversionRate   float64         `json:"conversionRate"`
	RemainingUses    *int            `json:"remainingUses"`
	LastUsedAt       *time.Time      `json:"lastUsedAt,omitempty"`
	DailyUsage       []DailyUsage    `json:"dailyUsage"`
}

// UsageAggregate is the raw aggregate read by the repository.
type UsageAggregate struct {
	TotalUses        int
	UniqueUsers      int
	TotalDiscount    decimal.Decimal
	OrdersAttributed int
	LastUsedAt       *time.Time
}

// UsageRecord is one committed use written by the ledger.
type UsageRecord struct {
	CouponID       uuid.UUID
	UserID         uuid.UUID
	CartID         *uuid.UUID
	OrderID        *uuid.UUID
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}
