package model

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

var hundred = decimal.NewFromInt(100)

// CodeRules validate an already normalized code.
var CodeRules = []validation.Rule{
	validation.Required,
	validation.Length(3, 20),
	validation.Match(codePattern).Error("must contain only uppercase letters and digits"),
}

// RequiredID rejects uuid.Nil; validation.Required treats any 16 byte array as set.
var RequiredID = validation.By(func(value interface{}) error {
	switch id := value.(type) {
	case uuid.UUID:
		if id == uuid.Nil {
			return validation.ErrRequired
		}
	case *uuid.UUID:
		if id == nil || *id == uuid.Nil {
			return validation.ErrRequired
		}
	}
	return nil
})

// Validate checks the full set of coupon invariants. Used after create mapping and after update merge.
func (c *Coupon) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Code, CodeRules...),
		validation.Field(&c.Type, validation.Required, validation.In(CouponTypes...)),
		validation.Field(&c.Value, validation.By(c.validateValue)),
		validation.Field(&c.MaxDiscount, validation.By(c.validateMaxDiscount)),
		validation.Field(&c.MinOrderValue, validation.By(nonNegative)),
		validation.Field(&c.UsageLimit, validation.By(c.validateUsageLimit)),
		validation.Field(&c.ValidFrom, validation.Required),
		validation.Field(&c.ValidTo, validation.Required, validation.By(c.validateWindow)),
		validation.Field(&c.ApplicableProducts, validation.By(c.validateApplicability)),
		validation.Field(&c.BuyXGetY, validation.By(c.validateBuyXGetY)),
	)
}

func (c *Coupon) validateValue(value interface{}) error {
	v, _ := value.(decimal.Decimal)
	if v.IsNegative() {
		return errors.New("must not be negative")
	}
	switch c.Type {
	case TypePercentage:
		if !v.IsPositive() || v.GreaterThan(hundred) {
			return errors.New("must be between 0 and 100 for percentage coupons")
		}
	case TypeFixed:
		if !v.IsPositive() {
			return errors.New("must be greater than 0")
		}
	}
	return nil
}

func (c *Coupon) validateMaxDiscount(value interface{}) error {
	v, _ := value.(*decimal.Decimal)
	if c.Type == TypePercentage && v == nil {
		return errors.New("is required for percentage coupons")
	}
	if v != nil && !v.IsPositive() {
		return errors.New("must be greater than 0")
	}
	return nil
}

func (c *Coupon) validateUsageLimit(value interface{}) error {
	limit, _ := value.(UsageLimit)
	if limit.Total != nil && *limit.Total < 1 {
		return errors.New("total must be at least 1")
	}
	if limit.Total != nil && *limit.Total < c.UsageCount.Total {
		return errors.New("total cannot be lower than the current usage")
	}
	if limit.PerUser < 1 {
		return errors.New("perUser must be at least 1")
	}
	return nil
}

func (c *Coupon) validateWindow(value interface{}) error {
	if !c.ValidTo.After(c.ValidFrom) {
		return errors.New("must be after validFrom")
	}
	return nil
}

func (c *Coupon) validateApplicability(value interface{}) error {
	ap, _ := value.(ApplicableProducts)
	if err := validation.Validate(ap.Type, validation.Required, validation.In(ApplicabilityTypes...)); err != nil {
		return errors.New("type " + err.Error())
	}
	switch ap.Type {
	case ApplicableSpecific:
		if len(ap.Products) == 0 {
			return errors.New("products are required for specific coupons")
		}
	case ApplicableCategory:
		if len(ap.Categories) == 0 {
			return errors.New("categories are required for category coupons")
		}
	case ApplicableExclude:
		if len(ap.ExcludedProducts) == 0 {
			return errors.New("excludedProducts are required for exclude coupons")
		}
	}
	return nil
}

func (c *Coupon) validateBuyXGetY(value interface{}) error {
	rule, _ := value.(*BuyXGetY)
	if c.Type != TypeBuyXGetY {
		return nil
	}
	if rule == nil {
		return errors.New("is required for buy_x_get_y coupons")
	}
	if rule.BuyQuantity < 1 || rule.GetQuantity < 1 || rule.MaxSets < 1 {
		return errors.New("buyQuantity, getQuantity and maxSets must be at least 1")
	}
	return nil
}

func nonNegative(value interface{}) error {
	v, _ := value.(decimal.Decimal)
	if v.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
