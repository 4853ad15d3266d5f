package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponType string

const (
	TypePercentage   CouponType = "percentage"
	TypeFixed        CouponType = "fixed"
	TypeFreeShipping CouponType = "free_shipping"
	TypeBuyXGetY     CouponType = "buy_x_get_y"
)

var CouponTypes = []interface{}{TypePercentage, TypeFixed, TypeFreeShipping, TypeBuyXGetY}

// ApplicabilityType decides which cart lines a coupon covers.
// ApplicableAll and ApplicableExclude resolve identically; both are kept for reporting.
type ApplicabilityType string

const (
	ApplicableAll      ApplicabilityType = "all"
	ApplicableSpecific ApplicabilityType = "specific"
	ApplicableCategory ApplicabilityType = "category"
	ApplicableExclude  ApplicabilityType = "exclude"
)

var ApplicabilityTypes = []interface{}{ApplicableAll, ApplicableSpecific, ApplicableCategory, ApplicableExclude}

const DefaultPerUserLimit = 1

// Coupon is a discount rule. UsageCount is only ever changed by the usage ledger.
type Coupon struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        CouponType `json:"type"`

	Value         decimal.Decimal  `json:"value"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`

	UsageLimit UsageLimit `json:"usageLimit"`
	UsageCount UsageCount `json:"usageCount"`

	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`

	ApplicableProducts ApplicableProducts `json:"applicableProducts"`
	BuyXGetY           *BuyXGetY          `json:"buyXGetY,omitempty"`

	IsActive      bool `json:"isActive"`
	IsAutomatic   bool `json:"isAutomatic"`
	Stackable     bool `json:"stackable"`
	FirstTimeOnly bool `json:"firstTimeOnly"`

	Version   int        `json:"version"`
	CreatedBy *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UsageLimit: Total nil means no global cap.
type UsageLimit struct {
	Total   *int `json:"total,omitempty"`
	PerUser int  `json:"perUser"`
}

type UsageCount struct {
	Total  int         `json:"total"`
	ByUser []UserUsage `json:"byUser,omitempty"`
}

type UserUsage struct {
	UserID   uuid.UUID `json:"user"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"lastUsed"`
}

type ApplicableProducts struct {
	Type             ApplicabilityType `json:"type"`
	Products         []uuid.UUID       `json:"products"`
	Categories       []string          `json:"categories"`
	ExcludedProducts []uuid.UUID       `json:"excludedProducts"`
}

type BuyXGetY struct {
	BuyQuantity int `json:"buyQuantity"`
	GetQuantity int `json:"getQuantity"`
	MaxSets     int `json:"maxSets"`
}

// LineItem is the read-only cart line snapshot the pricing engine works on.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// SumLineItems returns Σ price × quantity.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsWithinWindow reports validFrom <= at <= validTo.
func (c *Coupon) IsWithinWindow(at time.Time) bool {
	return !at.Before(c.ValidFrom) && !at.After(c.ValidTo)
}

func (c *Coupon) IsExhausted() bool {
	return c.UsageLimit.Total != nil && c.UsageCount.Total >= *c.UsageLimit.Total
}

// IsCurrentlyValid = active, inside the window and below the global cap.
func (c *Coupon) IsCurrentlyValid(at time.Time) bool {
	return c.IsActive && c.IsWithinWindow(at) && !c.IsExhausted()
}

// RemainingUses is nil when the coupon has no global cap.
func (c *Coupon) RemainingUses() *int {
	if c.UsageLimit.Total == nil {
		return nil
	}
	remaining := *c.UsageLimit.Total - c.UsageCount.Total
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

func (c *Coupon) PerUserLimit() int {
	if c.UsageLimit.PerUser <= 0 {
		return DefaultPerUserLimit
	}
	return c.UsageLimit.PerUser
}

// UserUseCount looks the user up in UsageCount.ByUser.
func (c *Coupon) UserUseCount(userID uuid.UUID) int {
	for _, u := range c.UsageCount.ByUser {
		if u.UserID == userID {
			return u.Count
		}
	}
	return 0
}

func (c *Coupon) CanUserUse(userID uuid.UUID) bool {
	return c.UserUseCount(userID) < c.PerUserLimit()
}

// IsUsed is true once any use was recorded; code and existence are frozen from then on.
func (c *Coupon) IsUsed() bool {
	return c.UsageCount.Total > 0
}

// Status is a derived label used by admin listings.
func (c *Coupon) Status(at time.Time) string {
	switch {
	case !c.IsActive:
		return "inactive"
	case at.Before(c.ValidFrom):
		return "scheduled"
	case at.After(c.ValidTo):
		return "expired"
	case c.IsExhausted():
		return "exhausted"
	default:
		return "active"
	}
}
