package attrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

func valuedAttribute(id int64, order int, valueIDs ...int64) catalog.ProductVariantAttribute {
	a := catalog.ProductVariantAttribute{
		ID:           id,
		ControlType:  catalog.ControlDropdown,
		DisplayOrder: order,
	}
	for _, vid := range valueIDs {
		a.Values = append(a.Values, catalog.ProductVariantAttributeValue{ID: vid, AttributeID: id})
	}
	return a
}

func TestGenerateCartesianProduct(t *testing.T) {
	p := &catalog.Product{ID: 1}
	attributes := []catalog.ProductVariantAttribute{
		valuedAttribute(10, 0, 101, 102),
		valuedAttribute(20, 1, 201, 202, 203),
	}

	combos := Generate(p, attributes)
	require.Len(t, combos, 6)

	for _, c := range combos {
		assert.Equal(t, int64(1), c.ProductID)
		assert.Equal(t, DefaultCombinationStock, c.StockQuantity)
		assert.True(t, c.AllowOutOfStockOrders)
		assert.True(t, c.IsActive)
		assert.Nil(t, c.Price)

		s := Deserialize(c.Fingerprint)
		assert.Equal(t, 2, s.Len())
	}
}

func TestGenerateFingerprintsUnique(t *testing.T) {
	p := &catalog.Product{ID: 1}
	attributes := []catalog.ProductVariantAttribute{
		valuedAttribute(10, 0, 101, 102),
		valuedAttribute(20, 1, 201, 202),
	}

	combos := Generate(p, attributes)
	for i := range combos {
		for j := i + 1; j < len(combos); j++ {
			assert.False(t, AreEqual(combos[i].Fingerprint, combos[j].Fingerprint),
				"combinations %d and %d have equivalent fingerprints", i, j)
		}
	}
}

func TestGenerateSkipsAttributesWithoutValues(t *testing.T) {
	p := &catalog.Product{ID: 1}
	attributes := []catalog.ProductVariantAttribute{
		valuedAttribute(10, 0, 101, 102),
		{ID: 30, ControlType: catalog.ControlTextbox, DisplayOrder: 1}, // no values
	}

	combos := Generate(p, attributes)
	require.Len(t, combos, 2)
	for _, c := range combos {
		assert.Equal(t, 1, Deserialize(c.Fingerprint).Len())
	}
}

func TestGenerateNoValuedAttributes(t *testing.T) {
	p := &catalog.Product{ID: 1}
	assert.Empty(t, Generate(p, nil))
	assert.Empty(t, Generate(p, []catalog.ProductVariantAttribute{
		{ID: 30, ControlType: catalog.ControlTextbox},
	}))
}

func TestGenerateFollowsDisplayOrder(t *testing.T) {
	p := &catalog.Product{ID: 1}
	// Attribute 20 displays before attribute 10.
	a := []catalog.ProductVariantAttribute{
		valuedAttribute(10, 5, 101),
		valuedAttribute(20, 1, 201),
	}
	b := []catalog.ProductVariantAttribute{
		valuedAttribute(20, 1, 201),
		valuedAttribute(10, 5, 101),
	}

	ca := Generate(p, a)
	cb := Generate(p, b)
	require.Len(t, ca, 1)
	require.Len(t, cb, 1)
	// Input slice order must not affect the serialized form.
	assert.Equal(t, cb[0].Fingerprint, ca[0].Fingerprint)
}

type mockCombinationStore struct {
	byProduct map[int64][]catalog.Combination
	replaces  int
}

func (m *mockCombinationStore) ListByProduct(_ context.Context, productID int64) ([]catalog.Combination, error) {
	return m.byProduct[productID], nil
}

func (m *mockCombinationStore) ReplaceAll(_ context.Context, productID int64, combos []catalog.Combination) error {
	m.replaces++
	m.byProduct[productID] = combos
	return nil
}

func TestGenerateAllIdempotent(t *testing.T) {
	store := &mockCombinationStore{byProduct: map[int64][]catalog.Combination{
		1: {{ProductID: 1, Fingerprint: `{"99":["old"]}`}},
	}}
	g := NewGenerator(store)

	p := &catalog.Product{ID: 1}
	attributes := []catalog.ProductVariantAttribute{valuedAttribute(10, 0, 101, 102)}

	require.NoError(t, g.GenerateAll(context.Background(), p, attributes))
	first := store.byProduct[1]

	require.NoError(t, g.GenerateAll(context.Background(), p, attributes))
	second := store.byProduct[1]

	assert.Equal(t, 2, store.replaces)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint)
	}
	// Prior state was discarded, not merged.
	for _, c := range second {
		assert.False(t, AreEqual(c.Fingerprint, `{"99":["old"]}`))
	}
}

func TestGenerateAllNilProduct(t *testing.T) {
	g := NewGenerator(&mockCombinationStore{byProduct: map[int64][]catalog.Combination{}})
	require.Error(t, g.GenerateAll(context.Background(), nil, nil))
}
