package attrs

import "github.com/xenking/catalog-pricing/internal/domain/catalog"

// FindCombination returns the combination whose fingerprint is equivalent to
// the selected one under AreEqual. Stored fingerprints are never compared as
// literal strings: equivalent selections may have been serialized in a
// different order or case.
func FindCombination(combos []catalog.Combination, selectedFingerprint string) (*catalog.Combination, bool) {
	for i := range combos {
		if AreEqual(combos[i].Fingerprint, selectedFingerprint) {
			return &combos[i], true
		}
	}
	return nil, false
}

// ApplyOverrides returns a copy of the product with the combination's
// non-empty override fields applied. The input product is never mutated; the
// overrides hold for the current evaluation only. Inactive combinations have
// no effect.
func ApplyOverrides(p catalog.Product, c *catalog.Combination) catalog.Product {
	if c == nil || !c.IsActive {
		return p
	}

	if c.Price != nil {
		p.Price = *c.Price
		// A combination price replaces the base price outright; the special
		// price no longer applies to this selection.
		p.SpecialPrice = nil
	}
	if c.SKU != "" {
		p.SKU = c.SKU
	}
	if c.GTIN != "" {
		p.GTIN = c.GTIN
	}
	p.StockQuantity = c.StockQuantity
	p.AllowOutOfStockOrders = c.AllowOutOfStockOrders

	if c.Weight != nil {
		p.Weight = *c.Weight
	}
	if c.Length != nil {
		p.Length = *c.Length
	}
	if c.Width != nil {
		p.Width = *c.Width
	}
	if c.Height != nil {
		p.Height = *c.Height
	}
	return p
}
