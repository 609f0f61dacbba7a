package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
	"github.com/xenking/catalog-pricing/internal/pricing"
)

const (
	bundleItemsSQL = `SELECT id, bundle_product_id, product_id, quantity,
		discount, discount_is_percentage, filter_attributes
		FROM bundle_items WHERE bundle_product_id = $1 ORDER BY id`

	bundleItemFiltersSQL = `SELECT bundle_item_id, attribute_id, value_id, is_preselected
		FROM bundle_item_attribute_filters WHERE bundle_item_id = ANY($1)
		ORDER BY bundle_item_id, id`
)

var _ pricing.BundleItemSource = (*BundleItemSource)(nil)

// BundleItemSource loads bundle items with their child products and attribute
// filters populated, backed by PostgreSQL.
type BundleItemSource struct {
	pool     *pgxpool.Pool
	products *ProductRepository
}

// NewBundleItemSource returns a BundleItemSource that uses the given pool.
func NewBundleItemSource(pool *pgxpool.Pool, products *ProductRepository) *BundleItemSource {
	return &BundleItemSource{pool: pool, products: products}
}

// BundleItems returns the items of a bundled product. Child products are
// fetched in one batch; items whose child no longer exists keep a nil Product
// and are skipped by the engine.
func (s *BundleItemSource) BundleItems(ctx context.Context, productID int64) ([]catalog.BundleItemData, error) {
	rows, err := s.pool.Query(ctx, bundleItemsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("loading bundle items: %w", err)
	}

	var (
		items   []catalog.BundleItemData
		itemIDs []int64
	)
	for rows.Next() {
		var it catalog.BundleItemData
		if err := rows.Scan(&it.ItemID, &it.BundleProductID, &it.ProductID, &it.Quantity,
			&it.Discount, &it.DiscountIsPercentage, &it.FilterAttributes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning bundle item: %w", err)
		}
		items = append(items, it)
		itemIDs = append(itemIDs, it.ItemID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading bundle items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	// One batched fetch for all child products.
	childIDs := make([]int64, len(items))
	for i := range items {
		childIDs[i] = items[i].ProductID
	}
	children, err := s.products.GetByIDs(ctx, childIDs)
	if err != nil {
		return nil, fmt.Errorf("loading bundle children: %w", err)
	}
	byID := make(map[int64]*catalog.Product, len(children))
	for i := range children {
		byID[children[i].ID] = &children[i]
	}

	bundle, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("loading bundle product: %w", err)
	}

	for i := range items {
		items[i].Product = byID[items[i].ProductID]
		items[i].BundlePerItemPricing = bundle.BundlePerItemPricing
	}

	if err := s.attachFilters(ctx, items, itemIDs); err != nil {
		return nil, err
	}
	return items, nil
}

// attachFilters loads the attribute filters of all items in one query.
func (s *BundleItemSource) attachFilters(ctx context.Context, items []catalog.BundleItemData, itemIDs []int64) error {
	rows, err := s.pool.Query(ctx, bundleItemFiltersSQL, itemIDs)
	if err != nil {
		return fmt.Errorf("loading bundle item filters: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int, len(items))
	for i := range items {
		index[items[i].ItemID] = i
	}

	for rows.Next() {
		var (
			itemID int64
			f      catalog.BundleItemAttributeFilter
		)
		if err := rows.Scan(&itemID, &f.AttributeID, &f.ValueID, &f.IsPreSelected); err != nil {
			return fmt.Errorf("scanning bundle item filter: %w", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].AttributeFilters = append(items[i].AttributeFilters, f)
		}
	}
	return rows.Err()
}
