package service

import (
	"github.com/google/uuid"

	"plantshop-backend/internal/domains/coupon/model"
)

// ResolveApplicable returns the line items the coupon covers, in cart order.
// Unknown applicability types resolve to nothing.
func ResolveApplicable(coupon *model.Coupon, items []model.LineItem) []model.LineItem {
	if coupon == nil {
		return nil
	}
	rules := coupon.ApplicableProducts

	var keep func(model.LineItem) bool
	switch rules.Type {
	case model.ApplicableAll, model.ApplicableExclude:
		excluded := idSet(rules.ExcludedProducts)
		keep = func(item model.LineItem) bool { return !excluded[item.ProductID] }
	case model.ApplicableSpecific:
		products := idSet(rules.Products)
		keep = func(item model.LineItem) bool { return products[item.ProductID] }
	case model.ApplicableCategory:
		categories := make(map[string]bool, len(rules.Categories))
		for _, c := range rules.Categories {
			categories[c] = true
		}
		keep = func(item model.LineItem) bool { return categories[item.Category] }
	default:
		return []model.LineItem{}
	}

	applicable := make([]model.LineItem, 0, len(items))
	for _, item := range items {
		if keep(item) {
			applicable = append(applicable, item)
		}
	}
	return applicable
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
