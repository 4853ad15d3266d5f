package service

import (
	"time"

	"github.com/shopspring/decimal"

	"plantshop-backend/internal/domains/coupon/model"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// DiscountCalculator turns a coupon and the lines it covers into an amount.
type DiscountCalculator struct {
	now func() time.Time
}

func NewDiscountCalculator() *DiscountCalculator {
	return &DiscountCalculator{now: time.Now}
}

// Calculate returns the discount for the applicable lines, never negative.
// Coupons that are not currently valid yield zero.
func (c *DiscountCalculator) Calculate(coupon *model.Coupon, applicableSubtotal decimal.Decimal, items []model.LineItem) decimal.Decimal {
	return c.CalculateWithBreakdown(coupon, applicableSubtotal, items).FinalDiscount
}

// CalculateWithBreakdown is Calculate plus the intermediate values shown by the validate endpoint.
//
// percentage: subtotal × value / 100, capped at MaxDiscount, rounded half-up to cents.
// fixed: value, never above the subtotal.
// free_shipping: zero here; the shipping fee waiver happens at checkout.
// buy_x_get_y: only the first line with quantity >= BuyQuantity counts.
func (c *DiscountCalculator) CalculateWithBreakdown(coupon *model.Coupon, applicableSubtotal decimal.Decimal, items []model.LineItem) model.DiscountBreakdown {
	breakdown := model.DiscountBreakdown{
		ApplicableSubtotal: applicableSubtotal.Round(moneyPlaces),
		RawDiscount:        decimal.Zero,
		FinalDiscount:      decimal.Zero,
	}
	if coupon == nil {
		return breakdown
	}
	breakdown.Type = coupon.Type

	if !coupon.IsCurrentlyValid(c.now()) || applicableSubtotal.IsNegative() {
		return breakdown
	}

	switch coupon.Type {
	case model.TypePercentage:
		raw := applicableSubtotal.Mul(coupon.Value).Div(hundred)
		breakdown.RawDiscount = raw
		breakdown.FinalDiscount = raw
		if coupon.MaxDiscount != nil && raw.GreaterThan(*coupon.MaxDiscount) {
			breakdown.FinalDiscount = *coupon.MaxDiscount
			breakdown.Capped = true
			breakdown.CapReason = "max_discount"
		}

	case model.TypeFixed:
		breakdown.RawDiscount = coupon.Value
		breakdown.FinalDiscount = coupon.Value
		if coupon.Value.GreaterThan(applicableSubtotal) {
			breakdown.FinalDiscount = applicableSubtotal
			breakdown.Capped = true
			breakdown.CapReason = "exceeds_subtotal"
		}

	case model.TypeFreeShipping:
		breakdown.FreeShipping = true

	case model.TypeBuyXGetY:
		c.buyXGetY(coupon, applicableSubtotal, items, &breakdown)
	}

	breakdown.RawDiscount = breakdown.RawDiscount.Round(moneyPlaces)
	breakdown.FinalDiscount = breakdown.FinalDiscount.Round(moneyPlaces)
	if breakdown.FinalDiscount.IsNegative() {
		breakdown.FinalDiscount = decimal.Zero
	}
	return breakdown
}

func (c *DiscountCalculator) buyXGetY(coupon *model.Coupon, applicableSubtotal decimal.Decimal, items []model.LineItem, breakdown *model.DiscountBreakdown) {
	rule := coupon.BuyXGetY
	if rule == nil || rule.BuyQuantity <= 0 || rule.GetQuantity <= 0 {
		return
	}

	for _, item := range items {
		if item.Quantity < rule.BuyQuantity {
			continue
		}

		sets := item.Quantity / rule.BuyQuantity
		if rule.MaxSets > 0 && sets > rule.MaxSets {
			sets = rule.MaxSets
		}
		freeItems := sets * rule.GetQuantity
		raw := item.Price.Mul(decimal.NewFromInt(int64(freeItems)))

		productID := item.ProductID
		breakdown.QualifyingProductID = &productID
		breakdown.FreeItems = freeItems
		breakdown.RawDiscount = raw
		breakdown.FinalDiscount = raw
		if raw.GreaterThan(applicableSubtotal) {
			breakdown.FinalDiscount = applicableSubtotal
			breakdown.Capped = true
			breakdown.CapReason = "exceeds_subtotal"
		}
		return
	}
}
