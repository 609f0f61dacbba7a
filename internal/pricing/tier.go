package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// ResolveTierPrice returns the tier price applicable at the requested
// quantity for the given store and customer, or false when no tier qualifies.
//
// Tiers are filtered to the store (StoreID 0 matches every store) and to the
// customer's roles (a nil role matches every customer), deduplicated by
// quantity keeping the cheapest, and then the highest threshold not exceeding
// the requested quantity wins.
func ResolveTierPrice(tiers []catalog.TierPrice, customer *catalog.Customer, storeID int64, quantity int) (decimal.Decimal, bool) {
	byQty := make(map[int]decimal.Decimal, len(tiers))
	for _, t := range tiers {
		if t.StoreID != 0 && t.StoreID != storeID {
			continue
		}
		if t.CustomerRoleID != nil && !customer.HasRole(*t.CustomerRoleID) {
			continue
		}
		if prev, ok := byQty[t.Quantity]; !ok || t.Price.LessThan(prev) {
			byQty[t.Quantity] = t.Price
		}
	}
	if len(byQty) == 0 {
		return decimal.Zero, false
	}

	thresholds := make([]int, 0, len(byQty))
	for q := range byQty {
		thresholds = append(thresholds, q)
	}
	sort.Ints(thresholds)

	found := false
	price := decimal.Zero
	for _, q := range thresholds {
		if q > quantity {
			break
		}
		price = byQty[q]
		found = true
	}
	return price, found
}
