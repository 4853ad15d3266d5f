package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"plantshop-backend/internal/domains/coupon/model"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func newTestCalculator() *DiscountCalculator {
	return &DiscountCalculator{now: fixedClock()}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int {
	return &i
}

// activeCoupon is valid at testNow and applies to everything.
func activeCoupon(code string, typ model.CouponType, value string) *model.Coupon {
	return &model.Coupon{
		ID:                 uuid.New(),
		Code:               code,
		Type:               typ,
		Value:              dec(value),
		MinOrderValue:      decimal.Zero,
		UsageLimit:         model.UsageLimit{PerUser: 1},
		ValidFrom:          testNow.AddDate(0, -1, 0),
		ValidTo:            testNow.AddDate(0, 1, 0),
		ApplicableProducts: model.ApplicableProducts{Type: model.ApplicableAll},
		IsActive:           true,
		Version:            1,
	}
}

func line(price string, qty int, category string) model.LineItem {
	return model.LineItem{
		ProductID: uuid.New(),
		Name:      "plant",
		Category:  category,
		Price:     dec(price),
		Quantity:  qty,
	}
}
