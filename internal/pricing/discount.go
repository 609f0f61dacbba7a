package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// DiscountValidator decides whether a discount is currently applicable to a
// customer. Date ranges, usage limits, and customer restrictions live behind
// this contract, not in the selector.
type DiscountValidator interface {
	IsValid(ctx context.Context, d catalog.Discount, customer *catalog.Customer) (bool, error)
}

// RuleValidator validates a discount against its own rule fields: date
// window, usage limit, and an optional required customer role.
type RuleValidator struct {
	now func() time.Time
}

// NewRuleValidator creates a RuleValidator using the wall clock.
func NewRuleValidator() *RuleValidator {
	return &RuleValidator{now: time.Now}
}

// IsValid reports whether the discount may be applied for the customer now.
func (v *RuleValidator) IsValid(_ context.Context, d catalog.Discount, customer *catalog.Customer) (bool, error) {
	now := v.now().UTC()
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return false, nil
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return false, nil
	}
	if d.MaxUses > 0 && d.Uses >= d.MaxUses {
		return false, nil
	}
	if d.RequiresRoleID != nil && !customer.HasRole(*d.RequiresRoleID) {
		return false, nil
	}
	return true, nil
}

// DiscountSelector collects the discounts allowed for a product and picks the
// single best one for a given base price.
type DiscountSelector struct {
	validator DiscountValidator
}

// NewDiscountSelector creates a selector gated by the given validator.
func NewDiscountSelector(validator DiscountValidator) *DiscountSelector {
	return &DiscountSelector{validator: validator}
}

// Allowed returns the union of discounts directly assigned to the product and
// discounts of its categories, each checked against the validator and
// deduplicated by discount id. Category discounts are only considered for
// categories whose HasDiscountsApplied flag is set.
func (s *DiscountSelector) Allowed(ctx context.Context, product *catalog.Product, categories []catalog.ProductCategory, customer *catalog.Customer) ([]catalog.Discount, error) {
	var allowed []catalog.Discount
	seen := make(map[int64]struct{})

	appendValid := func(d catalog.Discount, want catalog.DiscountType) error {
		if d.DiscountType != want {
			return nil
		}
		if _, ok := seen[d.ID]; ok {
			return nil
		}
		ok, err := s.validator.IsValid(ctx, d, customer)
		if err != nil {
			return err
		}
		if ok {
			seen[d.ID] = struct{}{}
			allowed = append(allowed, d)
		}
		return nil
	}

	if product.HasDiscountsApplied {
		for _, d := range product.AppliedDiscounts {
			if err := appendValid(d, catalog.DiscountAssignedToSKUs); err != nil {
				return nil, err
			}
		}
	}
	for _, link := range categories {
		if !link.HasDiscountsApplied {
			continue
		}
		for _, d := range link.Discounts {
			if err := appendValid(d, catalog.DiscountAssignedToCategories); err != nil {
				return nil, err
			}
		}
	}
	return allowed, nil
}

// Preferred returns the discount yielding the largest absolute amount against
// basePrice, and that amount. Ties keep the first-encountered discount. An
// empty candidate set yields (nil, 0).
func (s *DiscountSelector) Preferred(discounts []catalog.Discount, basePrice decimal.Decimal) (*catalog.Discount, decimal.Decimal) {
	var best *catalog.Discount
	bestAmount := decimal.Zero

	for i := range discounts {
		amount := DiscountAmount(discounts[i], basePrice)
		if best == nil || amount.GreaterThan(bestAmount) {
			best = &discounts[i]
			bestAmount = amount
		}
	}
	return best, bestAmount
}

// DiscountAmount computes the absolute reduction the discount yields against
// the given base price. Percentage discounts take base*pct/100; fixed
// discounts take the flat amount. Both are capped at the base price and never
// negative.
func DiscountAmount(d catalog.Discount, basePrice decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	if d.UsePercentage {
		amount = basePrice.Mul(d.DiscountPercentage).Div(hundred)
	} else {
		amount = d.DiscountAmount
	}
	amount = decimal.Min(amount, basePrice)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
