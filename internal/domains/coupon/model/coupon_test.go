package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func validCoupon() *Coupon {
	maxDiscount := decimal.NewFromInt(50)
	return &Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		Name:          "Save 10%",
		Type:          TypePercentage,
		Value:         decimal.NewFromInt(10),
		MaxDiscount:   &maxDiscount,
		MinOrderValue: decimal.Zero,
		UsageLimit:    UsageLimit{PerUser: 1},
		ValidFrom:     now.AddDate(0, -1, 0),
		ValidTo:       now.AddDate(0, 1, 0),
		ApplicableProducts: ApplicableProducts{
			Type: ApplicableAll,
		},
		IsActive: true,
	}
}

func intPtr(i int) *int { return &i }

func TestCouponValidity(t *testing.T) {
	c := validCoupon()
	assert.True(t, c.IsCurrentlyValid(now))
	assert.Equal(t, "active", c.Status(now))

	assert.True(t, c.IsWithinWindow(c.ValidFrom))
	assert.True(t, c.IsWithinWindow(c.ValidTo))
	assert.False(t, c.IsWithinWindow(c.ValidTo.Add(time.Nanosecond)))

	assert.Equal(t, "scheduled", c.Status(c.ValidFrom.Add(-time.Hour)))
	assert.Equal(t, "expired", c.Status(c.ValidTo.Add(time.Hour)))

	c.UsageLimit.Total = intPtr(2)
	c.UsageCount.Total = 2
	assert.False(t, c.IsCurrentlyValid(now))
	assert.Equal(t, "exhausted", c.Status(now))

	c.IsActive = false
	assert.Equal(t, "inactive", c.Status(now))
}

func TestRemainingUses(t *testing.T) {
	c := validCoupon()
	assert.Nil(t, c.RemainingUses())

	c.UsageLimit.Total = intPtr(10)
	c.UsageCount.Total = 4
	require.NotNil(t, c.RemainingUses())
	assert.Equal(t, 6, *c.RemainingUses())

	c.UsageCount.Total = 12
	assert.Equal(t, 0, *c.RemainingUses())
}

func TestCanUserUse(t *testing.T) {
	c := validCoupon()
	userID := uuid.New()

	assert.True(t, c.CanUserUse(userID))

	c.UsageCount.ByUser = []UserUsage{{UserID: userID, Count: 1}}
	assert.False(t, c.CanUserUse(userID))
	assert.True(t, c.CanUserUse(uuid.New()))

	c.UsageLimit.PerUser = 3
	assert.True(t, c.CanUserUse(userID))

	c.UsageLimit.PerUser = 0
	assert.Equal(t, DefaultPerUserLimit, c.PerUserLimit())
}

func TestSumLineItems(t *testing.T) {
	items := []LineItem{
		{Price: decimal.RequireFromString("12.50"), Quantity: 2},
		{Price: decimal.RequireFromString("3.99"), Quantity: 3},
	}
	assert.True(t, decimal.RequireFromString("36.97").Equal(SumLineItems(items)))
	assert.True(t, SumLineItems(nil).IsZero())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SPRING25", NormalizeCode("  spring25 "))
}

func TestCouponValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Coupon)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Coupon) {}},
		{name: "short code", mutate: func(c *Coupon) { c.Code = "AB" }, wantErr: "code"},
		{name: "lowercase code", mutate: func(c *Coupon) { c.Code = "save10" }, wantErr: "code"},
		{name: "unknown type", mutate: func(c *Coupon) { c.Type = "bogus" }, wantErr: "type"},
		{name: "percentage above 100", mutate: func(c *Coupon) { c.Value = decimal.NewFromInt(101) }, wantErr: "value"},
		{name: "percentage zero", mutate: func(c *Coupon) { c.Value = decimal.Zero }, wantErr: "value"},
		{name: "percentage without cap", mutate: func(c *Coupon) { c.MaxDiscount = nil }, wantErr: "maxDiscount"},
		{name: "negative minimum order", mutate: func(c *Coupon) { c.MinOrderValue = decimal.NewFromInt(-1) }, wantErr: "minOrderValue"},
		{name: "window inverted", mutate: func(c *Coupon) { c.ValidTo = c.ValidFrom.Add(-time.Hour) }, wantErr: "validTo"},
		{name: "zero total limit", mutate: func(c *Coupon) { c.UsageLimit.Total = intPtr(0) }, wantErr: "usageLimit"},
		{
			name: "total limit below usage",
			mutate: func(c *Coupon) {
				c.UsageLimit.Total = intPtr(3)
				c.UsageCount.Total = 5
			},
			wantErr: "usageLimit",
		},
		{
			name: "specific without products",
			mutate: func(c *Coupon) {
				c.ApplicableProducts = ApplicableProducts{Type: ApplicableSpecific}
			},
			wantErr: "applicableProducts",
		},
		{
			name: "category without categories",
			mutate: func(c *Coupon) {
				c.ApplicableProducts = ApplicableProducts{Type: ApplicableCategory}
			},
			wantErr: "applicableProducts",
		},
		{
			name: "fixed coupon",
			mutate: func(c *Coupon) {
				c.Type = TypeFixed
				c.Value = decimal.NewFromInt(20)
				c.MaxDiscount = nil
			},
		},
		{
			name: "buy x get y without rule",
			mutate: func(c *Coupon) {
				c.Type = TypeBuyXGetY
				c.MaxDiscount = nil
				c.Value = decimal.Zero
			},
			wantErr: "buyXGetY",
		},
		{
			name: "buy x get y complete",
			mutate: func(c *Coupon) {
				c.Type = TypeBuyXGetY
				c.MaxDiscount = nil
				c.Value = decimal.Zero
				c.BuyXGetY = &BuyXGetY{BuyQuantity: 2, GetQuantity: 1, MaxSets: 3}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMinOrderMessage(t *testing.T) {
	msg := MinOrderMessage(decimal.NewFromInt(100), decimal.NewFromInt(80))
	assert.Equal(t, "This coupon requires a $100.00 minimum order. Add $20.00 more to use it.", msg)
}
