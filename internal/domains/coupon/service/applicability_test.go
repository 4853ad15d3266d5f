package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"plantshop-backend/internal/domains/coupon/model"
)

func TestResolveApplicable(t *testing.T) {
	fern := line("10", 1, "indoor")
	cactus := line("20", 2, "succulents")
	rose := line("30", 1, "outdoor")
	items := []model.LineItem{fern, cactus, rose}

	tests := []struct {
		name  string
		rules model.ApplicableProducts
		want  []uuid.UUID
	}{
		{
			name:  "all covers everything",
			rules: model.ApplicableProducts{Type: model.ApplicableAll},
			want:  []uuid.UUID{fern.ProductID, cactus.ProductID, rose.ProductID},
		},
		{
			name:  "all honours exclusions",
			rules: model.ApplicableProducts{Type: model.ApplicableAll, ExcludedProducts: []uuid.UUID{cactus.ProductID}},
			want:  []uuid.UUID{fern.ProductID, rose.ProductID},
		},
		{
			name:  "exclude drops listed products",
			rules: model.ApplicableProducts{Type: model.ApplicableExclude, ExcludedProducts: []uuid.UUID{fern.ProductID}},
			want:  []uuid.UUID{cactus.ProductID, rose.ProductID},
		},
		{
			name:  "specific keeps listed products",
			rules: model.ApplicableProducts{Type: model.ApplicableSpecific, Products: []uuid.UUID{rose.ProductID, uuid.New()}},
			want:  []uuid.UUID{rose.ProductID},
		},
		{
			name:  "category matches tags",
			rules: model.ApplicableProducts{Type: model.ApplicableCategory, Categories: []string{"indoor", "outdoor"}},
			want:  []uuid.UUID{fern.ProductID, rose.ProductID},
		},
		{
			name:  "unknown type fails closed",
			rules: model.ApplicableProducts{Type: "seasonal"},
			want:  []uuid.UUID{},
		},
		{
			name:  "missing type fails closed",
			rules: model.ApplicableProducts{},
			want:  []uuid.UUID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon := activeCoupon("TEST10", model.TypePercentage, "10")
			coupon.ApplicableProducts = tt.rules

			got := ResolveApplicable(coupon, items)

			ids := make([]uuid.UUID, 0, len(got))
			for _, item := range got {
				ids = append(ids, item.ProductID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestResolveApplicableDoesNotMutateInput(t *testing.T) {
	items := []model.LineItem{line("10", 1, "indoor"), line("5", 3, "indoor")}
	before := append([]model.LineItem(nil), items...)
	coupon := activeCoupon("TEST10", model.TypePercentage, "10")
	coupon.ApplicableProducts = model.ApplicableProducts{Type: model.ApplicableExclude, ExcludedProducts: []uuid.UUID{items[0].ProductID}}

	_ = ResolveApplicable(coupon, items)

	assert.Equal(t, before, items)
}

func TestResolveApplicableNilCoupon(t *testing.T) {
	assert.Empty(t, ResolveApplicable(nil, []model.LineItem{line("1", 1, "x")}))
}
