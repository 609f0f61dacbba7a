package attrs

import (
	"context"
	"sort"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// DefaultCombinationStock is the stock sentinel assigned to freshly generated
// combinations until real inventory is recorded against them.
const DefaultCombinationStock = 10000

// Generate materializes every valid attribute combination of a product as the
// Cartesian product of all value lists, one record per tuple. Attributes
// without values contribute nothing; a product with no valued attributes
// yields no combinations. Attribute order follows display order so that
// regenerating produces identical fingerprints.
func Generate(product *catalog.Product, attributes []catalog.ProductVariantAttribute) []catalog.Combination {
	if product == nil {
		return nil
	}

	valued := make([]catalog.ProductVariantAttribute, 0, len(attributes))
	for _, a := range attributes {
		if len(a.Values) > 0 {
			valued = append(valued, a)
		}
	}
	if len(valued) == 0 {
		return nil
	}
	sort.SliceStable(valued, func(i, j int) bool {
		return valued[i].DisplayOrder < valued[j].DisplayOrder
	})

	total := 1
	for _, a := range valued {
		total *= len(a.Values)
	}

	combos := make([]catalog.Combination, 0, total)
	indexes := make([]int, len(valued))
	for {
		s := NewSelections()
		for i, a := range valued {
			v := a.Values[indexes[i]]
			s.Add(a.ID, valueRef(a, v))
		}

		combos = append(combos, catalog.Combination{
			ProductID:             product.ID,
			Fingerprint:           s.Serialize(),
			StockQuantity:         DefaultCombinationStock,
			AllowOutOfStockOrders: true,
			IsActive:              true,
		})

		if !advance(indexes, valued) {
			break
		}
	}
	return combos
}

// valueRef returns the fingerprint value for one attribute value: the value
// id for discrete controls, the raw name otherwise.
func valueRef(a catalog.ProductVariantAttribute, v catalog.ProductVariantAttributeValue) string {
	if a.ControlType.HasValues() {
		return strconv.FormatInt(v.ID, 10)
	}
	return v.Name
}

// advance increments the odometer of value indexes; it returns false once all
// tuples have been produced.
func advance(indexes []int, attrs []catalog.ProductVariantAttribute) bool {
	for i := len(indexes) - 1; i >= 0; i-- {
		indexes[i]++
		if indexes[i] < len(attrs[i].Values) {
			return true
		}
		indexes[i] = 0
	}
	return false
}

// CombinationStore persists generated combinations. ReplaceAll must discard
// every existing combination of the product before inserting the new set,
// atomically.
type CombinationStore interface {
	ListByProduct(ctx context.Context, productID int64) ([]catalog.Combination, error)
	ReplaceAll(ctx context.Context, productID int64, combos []catalog.Combination) error
}

// Generator regenerates and persists the full combination set of a product.
type Generator struct {
	store CombinationStore
}

// NewGenerator creates a Generator backed by the given store.
func NewGenerator(store CombinationStore) *Generator {
	return &Generator{store: store}
}

// GenerateAll replaces the product's stored combinations with the freshly
// generated set. Running it twice in a row leaves the same final state.
func (g *Generator) GenerateAll(ctx context.Context, product *catalog.Product, attributes []catalog.ProductVariantAttribute) error {
	if product == nil {
		return errors.New("generate combinations: nil product")
	}
	combos := Generate(product, attributes)
	if err := g.store.ReplaceAll(ctx, product.ID, combos); err != nil {
		return errors.Wrap(err, "replace combinations")
	}
	return nil
}
