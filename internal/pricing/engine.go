package pricing

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-pricing/internal/domain/attrs"
	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// ErrNilProduct is returned when a price is requested for a nil product.
// This is a programmer error, never a data condition.
var ErrNilProduct = errors.New("pricing: nil product")

// UnboundedQuantity forces the cheapest tier to apply when computing a
// product's lowest possible price.
const UnboundedQuantity = math.MaxInt32

// BundleItemSource loads the bundle items of a bundled product, with each
// item's child Product populated.
type BundleItemSource interface {
	BundleItems(ctx context.Context, productID int64) ([]catalog.BundleItemData, error)
}

// Settings hold global switches affecting every price evaluation.
type Settings struct {
	// IgnoreDiscounts disables discount selection entirely.
	IgnoreDiscounts bool
}

// Engine computes authoritative sale prices: final price with tier prices and
// discounts applied, lowest price across variants and grouped children, and
// the preselected price including default attribute selections.
//
// All collection reads go through a caller-owned PrefetchContext so that a
// whole evaluation batch costs one round trip per collection kind.
type Engine struct {
	products  catalog.Repository
	bundles   BundleItemSource
	discounts *DiscountSelector
	settings  Settings
	now       func() time.Time
}

// NewEngine creates a price engine with the required collaborators.
func NewEngine(products catalog.Repository, bundles BundleItemSource, discounts *DiscountSelector, settings Settings) *Engine {
	return &Engine{
		products:  products,
		bundles:   bundles,
		discounts: discounts,
		settings:  settings,
		now:       time.Now,
	}
}

// FinalPrice computes the sale price of one product at the given quantity.
//
// The algorithm: start from the base price, substitute the special price when
// inside its window, lower to the applicable tier price (never raised, and
// skipped inside bundle-item evaluation), add the additional charge, subtract
// the preferred discount when requested, and clamp at zero. A bundled product
// with per-item pricing instead sums its children's final prices, reusing and
// extending the same prefetch context.
//
// bundleItem is non-nil only when the product is being evaluated as a child
// of a bundle; an item carrying its own discount bypasses discount selection.
func (e *Engine) FinalPrice(
	ctx context.Context,
	pc *PrefetchContext,
	product *catalog.Product,
	customer *catalog.Customer,
	storeID int64,
	additionalCharge decimal.Decimal,
	includeDiscounts bool,
	quantity int,
	bundleItem *catalog.BundleItemData,
) (decimal.Decimal, error) {
	if product == nil {
		return decimal.Zero, ErrNilProduct
	}

	if product.ProductType == catalog.ProductTypeBundled && product.BundlePerItemPricing && bundleItem == nil {
		items, err := e.loadBundleItems(ctx, pc, product.ID)
		if err != nil {
			return decimal.Zero, err
		}
		return e.bundlePerItemPrice(ctx, pc, items, customer, storeID, includeDiscounts)
	}

	return e.finalPriceSingle(ctx, pc, product, customer, storeID, additionalCharge, includeDiscounts, quantity, bundleItem)
}

// loadBundleItems fetches a bundle's items and registers every child product
// in the prefetch context before any of them is evaluated, so the whole
// bundle tree costs one batched fetch per collection kind.
func (e *Engine) loadBundleItems(ctx context.Context, pc *PrefetchContext, productID int64) ([]catalog.BundleItemData, error) {
	items, err := e.bundles.BundleItems(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "load bundle items")
	}
	for i := range items {
		pc.Collect(items[i].Product)
	}
	return items, nil
}

func (e *Engine) bundlePerItemPrice(
	ctx context.Context,
	pc *PrefetchContext,
	items []catalog.BundleItemData,
	customer *catalog.Customer,
	storeID int64,
	includeDiscounts bool,
) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range items {
		item := &items[i]
		// Items with a missing child product contribute nothing.
		if item.Product == nil || item.Quantity <= 0 {
			continue
		}
		price, err := e.finalPriceSingle(ctx, pc, item.Product, customer, storeID,
			item.AdditionalCharge, includeDiscounts, 1, item)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return clampRound(total), nil
}

func (e *Engine) finalPriceSingle(
	ctx context.Context,
	pc *PrefetchContext,
	product *catalog.Product,
	customer *catalog.Customer,
	storeID int64,
	additionalCharge decimal.Decimal,
	includeDiscounts bool,
	quantity int,
	bundleItem *catalog.BundleItemData,
) (decimal.Decimal, error) {
	base := product.Price

	if sp, ok := e.specialPrice(product); ok {
		base = sp
	}

	// Tier prices never apply inside a bundle-item evaluation.
	if product.HasTierPrices && bundleItem == nil {
		tiers, err := pc.TierPrices(ctx, product.ID)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "load tier prices")
		}
		if tier, ok := ResolveTierPrice(tiers, customer, storeID, quantity); ok {
			base = decimal.Min(base, tier)
		}
	}

	result := base.Add(additionalCharge)

	if includeDiscounts {
		amount, err := e.discountAmount(ctx, pc, product, customer, result, bundleItem)
		if err != nil {
			return decimal.Zero, err
		}
		result = result.Sub(amount)
	}

	return clampRound(result), nil
}

// specialPrice returns the product's special price when it is set and the
// current time falls inside its window.
func (e *Engine) specialPrice(product *catalog.Product) (decimal.Decimal, bool) {
	if product.SpecialPrice == nil {
		return decimal.Zero, false
	}
	now := e.now().UTC()
	if product.SpecialPriceStart != nil && now.Before(*product.SpecialPriceStart) {
		return decimal.Zero, false
	}
	if product.SpecialPriceEnd != nil && now.After(*product.SpecialPriceEnd) {
		return decimal.Zero, false
	}
	return *product.SpecialPrice, true
}

// discountAmount resolves the reduction to apply against the pre-discount
// final price. Bundle items carrying their own discount bypass selection.
func (e *Engine) discountAmount(
	ctx context.Context,
	pc *PrefetchContext,
	product *catalog.Product,
	customer *catalog.Customer,
	preDiscount decimal.Decimal,
	bundleItem *catalog.BundleItemData,
) (decimal.Decimal, error) {
	if e.settings.IgnoreDiscounts || product.CustomerEntersPrice {
		return decimal.Zero, nil
	}

	// A bundle item carrying its own discount bypasses discount selection
	// and uses that discount instead.
	if bundleItem != nil && bundleItem.Discount != nil && bundleItem.BundlePerItemPricing {
		var amount decimal.Decimal
		if bundleItem.DiscountIsPercentage {
			amount = preDiscount.Mul(*bundleItem.Discount).Div(hundred)
		} else {
			amount = *bundleItem.Discount
		}
		amount = decimal.Min(amount, preDiscount)
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		return amount, nil
	}

	links, err := pc.CategoryLinks(ctx, product.ID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "load category links")
	}
	allowed, err := e.discounts.Allowed(ctx, product, links, customer)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "select discounts")
	}
	_, amount := e.discounts.Preferred(allowed, preDiscount)
	return amount, nil
}

// LowestPriceResult is the outcome of a lowest-price evaluation.
type LowestPriceResult struct {
	Price decimal.Decimal
	// StartingFrom indicates the real price may vary upward from Price
	// depending on attribute selection or purchased quantity.
	StartingFrom bool
}

// LowestPrice computes the cheapest price the product can sell for: the final
// price at unbounded quantity with discounts, lowered further by the
// precomputed cheapest combination override when one undercuts it.
func (e *Engine) LowestPrice(ctx context.Context, pc *PrefetchContext, product *catalog.Product, customer *catalog.Customer, storeID int64) (LowestPriceResult, error) {
	if product == nil {
		return LowestPriceResult{}, ErrNilProduct
	}

	price, err := e.FinalPrice(ctx, pc, product, customer, storeID,
		decimal.Zero, true, UnboundedQuantity, nil)
	if err != nil {
		return LowestPriceResult{}, err
	}

	res := LowestPriceResult{Price: price}

	if lp := product.LowestAttributeCombinationPrice; lp != nil && lp.LessThan(price) {
		res.Price = clampRound(*lp)
		res.StartingFrom = true
	}

	if !res.StartingFrom {
		res.StartingFrom, err = e.priceVaries(ctx, pc, product, customer, storeID)
		if err != nil {
			return LowestPriceResult{}, err
		}
	}
	return res, nil
}

// priceVaries reports whether the displayed price depends on attribute
// selection or quantity: any attribute value with a non-zero adjustment, or,
// for non-bundled products, more than one distinct applicable tier threshold.
func (e *Engine) priceVaries(ctx context.Context, pc *PrefetchContext, product *catalog.Product, customer *catalog.Customer, storeID int64) (bool, error) {
	attributes, err := pc.Attributes(ctx, product.ID)
	if err != nil {
		return false, errors.Wrap(err, "load attributes")
	}
	for _, a := range attributes {
		for _, v := range a.Values {
			if !v.PriceAdjustment.IsZero() {
				return true, nil
			}
		}
	}

	if product.ProductType == catalog.ProductTypeBundled || !product.HasTierPrices {
		return false, nil
	}
	tiers, err := pc.TierPrices(ctx, product.ID)
	if err != nil {
		return false, errors.Wrap(err, "load tier prices")
	}
	distinct := make(map[int]struct{})
	for _, t := range tiers {
		if t.StoreID != 0 && t.StoreID != storeID {
			continue
		}
		if t.CustomerRoleID != nil && !customer.HasRole(*t.CustomerRoleID) {
			continue
		}
		distinct[t.Quantity] = struct{}{}
	}
	return len(distinct) > 1, nil
}

// LowestPriceGrouped evaluates the final price of every associated product of
// a grouped product and returns the minimum together with the product that
// produced it. Ties keep the first-encountered product. An empty association
// list yields (0, nil).
func (e *Engine) LowestPriceGrouped(ctx context.Context, pc *PrefetchContext, associated []*catalog.Product, customer *catalog.Customer, storeID int64) (decimal.Decimal, *catalog.Product, error) {
	pc.Collect(associated...)

	var (
		cheapest *catalog.Product
		lowest   decimal.Decimal
	)
	for _, p := range associated {
		if p == nil {
			continue
		}
		price, err := e.FinalPrice(ctx, pc, p, customer, storeID,
			decimal.Zero, true, UnboundedQuantity, nil)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if cheapest == nil || price.LessThan(lowest) {
			cheapest = p
			lowest = price
		}
	}
	if cheapest == nil {
		return decimal.Zero, nil, nil
	}
	return lowest, cheapest, nil
}

// PreselectedPrice computes the price of the product with every attribute at
// its default selection: default value adjustments are summed into the
// additional charge, a matching combination's overrides are merged, and the
// final price is taken at quantity one. Bundled products with per-item
// pricing resolve each eligible child's preselection first so the children's
// additional charges are populated before the parent total.
func (e *Engine) PreselectedPrice(ctx context.Context, pc *PrefetchContext, product *catalog.Product, customer *catalog.Customer, storeID int64) (decimal.Decimal, error) {
	if product == nil {
		return decimal.Zero, ErrNilProduct
	}

	if product.ProductType == catalog.ProductTypeBundled && product.BundlePerItemPricing {
		items, err := e.loadBundleItems(ctx, pc, product.ID)
		if err != nil {
			return decimal.Zero, err
		}
		for i := range items {
			item := &items[i]
			if item.Product == nil {
				continue
			}
			merged, charge, err := e.resolvePreselection(ctx, pc, item.Product, customer, storeID, item)
			if err != nil {
				return decimal.Zero, err
			}
			item.Product = &merged
			item.AdditionalCharge = charge
		}
		return e.bundlePerItemPrice(ctx, pc, items, customer, storeID, true)
	}

	merged, charge, err := e.resolvePreselection(ctx, pc, product, customer, storeID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return e.finalPriceSingle(ctx, pc, &merged, customer, storeID, charge, true, 1, nil)
}

// resolvePreselection determines the product's default attribute selection,
// sums its price adjustments, and merges the matching combination's overrides
// into a copy of the product. Bundle-item attribute filters both restrict the
// eligible values and may force a different preselected value.
func (e *Engine) resolvePreselection(
	ctx context.Context,
	pc *PrefetchContext,
	product *catalog.Product,
	customer *catalog.Customer,
	storeID int64,
	bundleItem *catalog.BundleItemData,
) (catalog.Product, decimal.Decimal, error) {
	merged := *product

	attributes, err := pc.Attributes(ctx, product.ID)
	if err != nil {
		return merged, decimal.Zero, errors.Wrap(err, "load attributes")
	}
	if len(attributes) == 0 {
		return merged, decimal.Zero, nil
	}

	selection := attrs.NewSelections()
	charge := decimal.Zero

	for _, a := range attributes {
		for _, v := range preselectedValues(a, bundleItem) {
			selection.Add(a.ID, attributeValueRef(a, v))

			adj, err := e.valueAdjustment(ctx, pc, v, customer, storeID)
			if err != nil {
				return merged, decimal.Zero, err
			}
			charge = charge.Add(adj)
		}
	}

	if selection.Len() > 0 {
		combos, err := pc.Combinations(ctx, product.ID)
		if err != nil {
			return merged, decimal.Zero, errors.Wrap(err, "load combinations")
		}
		if combo, ok := attrs.FindCombination(combos, selection.Serialize()); ok {
			merged = attrs.ApplyOverrides(merged, combo)
		}
	}
	return merged, charge, nil
}

// valueAdjustment returns the price adjustment one selected value
// contributes. Product-linkage values price as the linked product's final
// price times the linkage quantity; a missing linked product contributes
// nothing.
func (e *Engine) valueAdjustment(ctx context.Context, pc *PrefetchContext, v catalog.ProductVariantAttributeValue, customer *catalog.Customer, storeID int64) (decimal.Decimal, error) {
	if v.ValueType != catalog.ValueTypeProductLinkage {
		return v.PriceAdjustment, nil
	}

	linked, err := e.products.GetByID(ctx, v.LinkedProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.Wrap(err, "load linked product")
	}

	pc.Collect(linked)
	price, err := e.FinalPrice(ctx, pc, linked, customer, storeID,
		decimal.Zero, false, 1, nil)
	if err != nil {
		return decimal.Zero, err
	}
	qty := v.Quantity
	if qty <= 0 {
		qty = 1
	}
	return price.Mul(decimal.NewFromInt(int64(qty))), nil
}

// preselectedValues returns the attribute's default values. When a bundle
// item filters this attribute, only filtered values are eligible and a filter
// entry marked preselected overrides the value's own default flag.
func preselectedValues(a catalog.ProductVariantAttribute, bundleItem *catalog.BundleItemData) []catalog.ProductVariantAttributeValue {
	if bundleItem == nil || !bundleItem.FilterAttributes {
		var defaults []catalog.ProductVariantAttributeValue
		for _, v := range a.Values {
			if v.IsPreSelected {
				defaults = append(defaults, v)
			}
		}
		return defaults
	}

	filters := make(map[int64]bool) // value id -> forced preselected
	filtered := false
	for _, f := range bundleItem.AttributeFilters {
		if f.AttributeID != a.ID {
			continue
		}
		filtered = true
		filters[f.ValueID] = f.IsPreSelected
	}
	if !filtered {
		// Attribute not filtered by this bundle item: fall back to defaults.
		return preselectedValues(a, nil)
	}

	var defaults []catalog.ProductVariantAttributeValue
	for _, v := range a.Values {
		forced, eligible := filters[v.ID]
		if eligible && forced {
			defaults = append(defaults, v)
		}
	}
	return defaults
}

// attributeValueRef mirrors the generator's fingerprint value encoding so
// preselected selections match generated combinations.
func attributeValueRef(a catalog.ProductVariantAttribute, v catalog.ProductVariantAttributeValue) string {
	if a.ControlType.HasValues() {
		return strconv.FormatInt(v.ID, 10)
	}
	return v.Name
}

// clampRound floors a computed price at zero and rounds to 2 decimal places.
func clampRound(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
