package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// allowAllValidator accepts every discount.
type allowAllValidator struct{}

func (allowAllValidator) IsValid(_ context.Context, _ catalog.Discount, _ *catalog.Customer) (bool, error) {
	return true, nil
}

func percentDiscount(id int64, pct string) catalog.Discount {
	return catalog.Discount{
		ID:                 id,
		DiscountType:       catalog.DiscountAssignedToSKUs,
		UsePercentage:      true,
		DiscountPercentage: decimal.RequireFromString(pct),
	}
}

func fixedDiscount(id int64, amount string) catalog.Discount {
	return catalog.Discount{
		ID:             id,
		DiscountType:   catalog.DiscountAssignedToSKUs,
		DiscountAmount: decimal.RequireFromString(amount),
	}
}

func TestPreferredPicksLargestAmount(t *testing.T) {
	s := NewDiscountSelector(allowAllValidator{})
	base := decimal.NewFromInt(40)

	// 10% of 40 = 4 < flat 5: flat wins.
	best, amount := s.Preferred([]catalog.Discount{percentDiscount(1, "10"), fixedDiscount(2, "5")}, base)
	require.NotNil(t, best)
	assert.Equal(t, int64(2), best.ID)
	assert.True(t, decimal.NewFromInt(5).Equal(amount))

	// 20% of 40 = 8 > flat 5: percentage wins.
	best, amount = s.Preferred([]catalog.Discount{percentDiscount(1, "20"), fixedDiscount(2, "5")}, base)
	require.NotNil(t, best)
	assert.Equal(t, int64(1), best.ID)
	assert.True(t, decimal.NewFromInt(8).Equal(amount))
}

func TestPreferredTieKeepsFirst(t *testing.T) {
	s := NewDiscountSelector(allowAllValidator{})
	// Both yield 4 against base 40.
	best, _ := s.Preferred([]catalog.Discount{percentDiscount(7, "10"), fixedDiscount(8, "4")}, decimal.NewFromInt(40))
	require.NotNil(t, best)
	assert.Equal(t, int64(7), best.ID)
}

func TestPreferredEmpty(t *testing.T) {
	s := NewDiscountSelector(allowAllValidator{})
	best, amount := s.Preferred(nil, decimal.NewFromInt(40))
	assert.Nil(t, best)
	assert.True(t, amount.IsZero())
}

func TestDiscountAmountCappedAtBase(t *testing.T) {
	assert.True(t, decimal.NewFromInt(10).Equal(
		DiscountAmount(fixedDiscount(1, "25"), decimal.NewFromInt(10))))
	assert.True(t, decimal.NewFromInt(10).Equal(
		DiscountAmount(percentDiscount(1, "150"), decimal.NewFromInt(10))))
	assert.True(t, DiscountAmount(fixedDiscount(1, "-3"), decimal.NewFromInt(10)).IsZero())
}

func TestAllowedUnionAndDedup(t *testing.T) {
	s := NewDiscountSelector(allowAllValidator{})

	skuDiscount := fixedDiscount(1, "5")
	catDiscount := catalog.Discount{
		ID:             2,
		DiscountType:   catalog.DiscountAssignedToCategories,
		DiscountAmount: decimal.NewFromInt(3),
	}

	product := &catalog.Product{
		ID:                  1,
		HasDiscountsApplied: true,
		AppliedDiscounts:    []catalog.Discount{skuDiscount, skuDiscount},
	}
	categories := []catalog.ProductCategory{
		{CategoryID: 10, HasDiscountsApplied: true, Discounts: []catalog.Discount{catDiscount}},
		{CategoryID: 11, HasDiscountsApplied: true, Discounts: []catalog.Discount{catDiscount}},
		{CategoryID: 12, HasDiscountsApplied: false, Discounts: []catalog.Discount{fixedDiscount(3, "99")}},
	}

	allowed, err := s.Allowed(context.Background(), product, categories, nil)
	require.NoError(t, err)
	require.Len(t, allowed, 2)
	assert.Equal(t, int64(1), allowed[0].ID)
	assert.Equal(t, int64(2), allowed[1].ID)
}

func TestAllowedSkipsWrongAssignmentType(t *testing.T) {
	s := NewDiscountSelector(allowAllValidator{})

	// A category-type discount attached to the product directly is ignored,
	// and vice versa.
	product := &catalog.Product{
		ID:                  1,
		HasDiscountsApplied: true,
		AppliedDiscounts: []catalog.Discount{{
			ID:           1,
			DiscountType: catalog.DiscountAssignedToCategories,
		}},
	}
	categories := []catalog.ProductCategory{{
		CategoryID:          10,
		HasDiscountsApplied: true,
		Discounts:           []catalog.Discount{fixedDiscount(2, "5")},
	}}

	allowed, err := s.Allowed(context.Background(), product, categories, nil)
	require.NoError(t, err)
	assert.Empty(t, allowed)
}

func TestRuleValidator(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)
	role := int64(4)

	tests := []struct {
		name     string
		discount catalog.Discount
		customer *catalog.Customer
		want     bool
	}{
		{"no constraints", catalog.Discount{}, nil, true},
		{"inside window", catalog.Discount{StartDate: &past, EndDate: &future}, nil, true},
		{"not started", catalog.Discount{StartDate: &future}, nil, false},
		{"ended", catalog.Discount{EndDate: &past}, nil, false},
		{"usage exhausted", catalog.Discount{MaxUses: 3, Uses: 3}, nil, false},
		{"usage remaining", catalog.Discount{MaxUses: 3, Uses: 2}, nil, true},
		{"unlimited uses", catalog.Discount{MaxUses: 0, Uses: 999}, nil, true},
		{"role required and present", catalog.Discount{RequiresRoleID: &role}, &catalog.Customer{RoleIDs: []int64{4}}, true},
		{"role required and absent", catalog.Discount{RequiresRoleID: &role}, &catalog.Customer{RoleIDs: []int64{5}}, false},
		{"role required, nil customer", catalog.Discount{RequiresRoleID: &role}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRuleValidator()
			v.now = func() time.Time { return fixedNow }

			got, err := v.IsValid(context.Background(), tt.discount, tt.customer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
