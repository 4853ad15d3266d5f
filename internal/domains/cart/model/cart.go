package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	couponModel "plantshop-backend/internal/domains/coupon/model"
)

// Cart is owned by exactly one user. Totals are derived by RecomputeTotals and never set by hand.
type Cart struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	Items          []CartItem      `json:"items"`
	AppliedCoupons []AppliedCoupon `json:"appliedCoupons"`

	ItemCount     int             `json:"itemCount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	FinalAmount   decimal.Decimal `json:"finalAmount"`
	FreeShipping  bool            `json:"freeShipping"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartItem keeps the price the product had when it was added.
type CartItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   time.Time       `json:"addedAt"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppliedCoupon freezes the discount computed at apply time. It only changes
// when the coupon is removed and applied again.
type AppliedCoupon struct {
	CouponID       uuid.UUID       `json:"couponId"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FreeShipping   bool            `json:"freeShipping"`
	Stackable      bool            `json:"stackable"`
	AppliedAt      time.Time       `json:"appliedAt"`
}

// RecomputeTotals returns c with subtotal, total discount and final amount derived
// from its items and applied coupons. finalAmount never drops below zero.
func RecomputeTotals(c Cart) Cart {
	subtotal := decimal.Zero
	count := 0
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}

	discount := decimal.Zero
	freeShipping := false
	for _, applied := range c.AppliedCoupons {
		discount = discount.Add(applied.DiscountAmount)
		freeShipping = freeShipping || applied.FreeShipping
	}

	final := subtotal.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	c.ItemCount = count
	c.Subtotal = subtotal.Round(2)
	c.TotalDiscount = discount.Round(2)
	c.FinalAmount = final.Round(2)
	c.FreeShipping = freeShipping
	return c
}

// FindItem returns the index of the product's line, or -1.
func (c *Cart) FindItem(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// FindCoupon returns the index of the applied coupon, or -1.
func (c *Cart) FindCoupon(couponID uuid.UUID) int {
	for i, applied := range c.AppliedCoupons {
		if applied.CouponID == couponID {
			return i
		}
	}
	return -1
}

// LineItems converts the cart into the read-only view the pricing engine works on.
func (c *Cart) LineItems() []couponModel.LineItem {
	lines := make([]couponModel.LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, couponModel.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Category:  item.Category,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// Clone copies the cart so changes staged for a write never alias the loaded value.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	cp.AppliedCoupons = append([]AppliedCoupon(nil), c.AppliedCoupons...)
	return &cp
}
