//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-pricing/internal/domain/attrs"
	"github.com/xenking/catalog-pricing/internal/domain/catalog"
	"github.com/xenking/catalog-pricing/internal/postgres"
	"github.com/xenking/catalog-pricing/internal/pricing"
)

func mustExec(t *testing.T, sql string, args ...any) {
	t.Helper()
	_, err := pool.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()

	mustExec(t, `INSERT INTO products (id, sku, name, product_type, price, has_discounts_applied)
		VALUES (101, 'INT-101', 'Mug', 'simple', 8.00, TRUE),
		       (102, 'INT-102', 'Cap', 'simple', 15.00, FALSE)`)
	mustExec(t, `INSERT INTO discounts (id, name, discount_type, use_percentage, discount_percentage)
		VALUES (101, 'Ten percent', 'assigned_to_skus', TRUE, 10)`)
	mustExec(t, `INSERT INTO product_discounts (product_id, discount_id) VALUES (101, 101)`)

	repo := postgres.NewProductRepository(pool)

	t.Run("get by id", func(t *testing.T) {
		p, err := repo.GetByID(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, "Mug", p.Name)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("8.00")))
		require.Len(t, p.AppliedDiscounts, 1)
		assert.Equal(t, "Ten percent", p.AppliedDiscounts[0].Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("get by ids skips missing", func(t *testing.T) {
		ps, err := repo.GetByIDs(ctx, []int64{101, 102, 999999})
		require.NoError(t, err)
		assert.Len(t, ps, 2)
	})
}

func TestFetchers(t *testing.T) {
	ctx := context.Background()

	mustExec(t, `INSERT INTO products (id, sku, name, product_type, price, has_tier_prices)
		VALUES (201, 'INT-201', 'Tee', 'simple', 20.00, TRUE)`)
	mustExec(t, `INSERT INTO product_attributes (id, product_id, name, control_type, display_order)
		VALUES (201, 201, 'Size', 'dropdown', 1)`)
	mustExec(t, `INSERT INTO product_attribute_values (id, attribute_id, name, price_adjustment, is_preselected, display_order)
		VALUES (201, 201, 'S', 0, TRUE, 1), (202, 201, 'L', 2.00, FALSE, 2)`)
	mustExec(t, `INSERT INTO tier_prices (product_id, store_id, customer_role_id, quantity, price)
		VALUES (201, 0, NULL, 5, 18.00)`)
	mustExec(t, `INSERT INTO categories (id, name, has_discounts_applied) VALUES (201, 'Apparel', TRUE)`)
	mustExec(t, `INSERT INTO product_categories (product_id, category_id) VALUES (201, 201)`)
	mustExec(t, `INSERT INTO discounts (id, name, discount_type, use_percentage, discount_percentage)
		VALUES (201, 'Apparel sale', 'assigned_to_categories', TRUE, 20)`)
	mustExec(t, `INSERT INTO category_discounts (category_id, discount_id) VALUES (201, 201)`)

	fetchers := postgres.NewFetchers(pool)

	t.Run("attributes with values", func(t *testing.T) {
		got, err := fetchers.Attributes(ctx, []int64{201})
		require.NoError(t, err)
		require.Len(t, got[201], 1)

		a := got[201][0]
		assert.Equal(t, "Size", a.Name)
		require.Len(t, a.Values, 2)
		assert.Equal(t, "S", a.Values[0].Name)
		assert.True(t, a.Values[0].IsPreSelected)
	})

	t.Run("tier prices", func(t *testing.T) {
		got, err := fetchers.TierPrices(ctx, []int64{201})
		require.NoError(t, err)
		require.Len(t, got[201], 1)
		assert.Equal(t, 5, got[201][0].Quantity)
		assert.Nil(t, got[201][0].CustomerRoleID)
	})

	t.Run("category links with discounts", func(t *testing.T) {
		got, err := fetchers.CategoryLinks(ctx, []int64{201})
		require.NoError(t, err)
		require.Len(t, got[201], 1)

		link := got[201][0]
		assert.True(t, link.HasDiscountsApplied)
		require.Len(t, link.Discounts, 1)
		assert.Equal(t, "Apparel sale", link.Discounts[0].Name)
	})

	t.Run("unknown product has no rows", func(t *testing.T) {
		got, err := fetchers.Attributes(ctx, []int64{999999})
		require.NoError(t, err)
		assert.Empty(t, got[999999])
	})
}

func TestCombinationStore(t *testing.T) {
	ctx := context.Background()

	mustExec(t, `INSERT INTO products (id, sku, name, product_type, price)
		VALUES (301, 'INT-301', 'Hoodie', 'simple', 35.00)`)

	store := postgres.NewCombinationStore(pool)
	product := &catalog.Product{ID: 301, StockQuantity: 10}
	attributes := []catalog.ProductVariantAttribute{{
		ID: 301, ProductID: 301, Name: "Size", ControlType: catalog.ControlDropdown,
		Values: []catalog.ProductVariantAttributeValue{
			{ID: 301, AttributeID: 301, Name: "S"},
			{ID: 302, AttributeID: 301, Name: "M"},
		},
	}}

	require.NoError(t, attrs.NewGenerator(store).GenerateAll(ctx, product, attributes))

	combos, err := store.ListByProduct(ctx, 301)
	require.NoError(t, err)
	require.Len(t, combos, 2)

	// Regenerating replaces, never accumulates.
	require.NoError(t, attrs.NewGenerator(store).GenerateAll(ctx, product, attributes))

	combos, err = store.ListByProduct(ctx, 301)
	require.NoError(t, err)
	assert.Len(t, combos, 2)
}

func TestBundleItemSource(t *testing.T) {
	ctx := context.Background()

	mustExec(t, `INSERT INTO products (id, sku, name, product_type, price, bundle_per_item_pricing)
		VALUES (401, 'INT-401', 'Kit', 'bundled', 0, TRUE),
		       (402, 'INT-402', 'Part A', 'simple', 10.00, FALSE),
		       (403, 'INT-403', 'Part B', 'simple', 20.00, FALSE)`)
	mustExec(t, `INSERT INTO bundle_items (id, bundle_product_id, product_id, quantity, discount, discount_is_percentage, filter_attributes)
		VALUES (401, 401, 402, 2, NULL, FALSE, FALSE),
		       (402, 401, 403, 1, 10, TRUE, TRUE)`)
	mustExec(t, `INSERT INTO bundle_item_attribute_filters (bundle_item_id, attribute_id, value_id, is_preselected)
		VALUES (402, 7, 70, TRUE)`)

	src := postgres.NewBundleItemSource(pool, postgres.NewProductRepository(pool))

	items, err := src.BundleItems(ctx, 401)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(402), items[0].ProductID)
	require.NotNil(t, items[0].Product)
	assert.True(t, items[0].BundlePerItemPricing)
	assert.Nil(t, items[0].Discount)

	require.NotNil(t, items[1].Discount)
	assert.True(t, items[1].DiscountIsPercentage)
	require.Len(t, items[1].AttributeFilters, 1)
	assert.Equal(t, int64(70), items[1].AttributeFilters[0].ValueID)
}

func TestEngineAgainstDatabase(t *testing.T) {
	ctx := context.Background()

	mustExec(t, `INSERT INTO products (id, sku, name, product_type, price, has_tier_prices)
		VALUES (501, 'INT-501', 'Pen', 'simple', 2.00, TRUE)`)
	mustExec(t, `INSERT INTO tier_prices (product_id, store_id, customer_role_id, quantity, price)
		VALUES (501, 0, NULL, 10, 1.80), (501, 0, NULL, 50, 1.50)`)

	repo := postgres.NewProductRepository(pool)
	engine := pricing.NewEngine(repo,
		postgres.NewBundleItemSource(pool, repo),
		pricing.NewDiscountSelector(pricing.NewRuleValidator()),
		pricing.Settings{})

	p, err := repo.GetByID(ctx, 501)
	require.NoError(t, err)

	pc := pricing.NewPrefetchContext(postgres.NewFetchers(pool), p)

	price, err := engine.FinalPrice(ctx, pc, p, nil, 0, decimal.Zero, true, 25, nil)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.80")), "got %s", price)

	price, err = engine.FinalPrice(ctx, pc, p, nil, 0, decimal.Zero, true, 50, nil)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.50")), "got %s", price)
}
