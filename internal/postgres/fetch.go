package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
	"github.com/xenking/catalog-pricing/internal/pricing"
)

const (
	fetchAttributesSQL = `SELECT id, product_id, name, control_type, display_order, is_required
		FROM product_attributes WHERE product_id = ANY($1)
		ORDER BY product_id, display_order, id`

	fetchAttributeValuesSQL = `SELECT v.id, v.attribute_id, a.product_id, v.name, v.value_type,
		v.price_adjustment, v.is_preselected, v.display_order, v.linked_product_id, v.quantity
		FROM product_attribute_values v
		JOIN product_attributes a ON a.id = v.attribute_id
		WHERE a.product_id = ANY($1)
		ORDER BY v.attribute_id, v.display_order, v.id`

	fetchCombinationsSQL = `SELECT id, product_id, fingerprint, price, sku, gtin,
		stock_quantity, allow_out_of_stock_orders, is_active, weight, length, width, height
		FROM product_attribute_combinations WHERE product_id = ANY($1)
		ORDER BY product_id, id`

	fetchTierPricesSQL = `SELECT id, product_id, store_id, customer_role_id, quantity, price
		FROM tier_prices WHERE product_id = ANY($1)
		ORDER BY product_id, quantity, id`

	fetchCategoryLinksSQL = `SELECT pc.product_id, c.id, c.has_discounts_applied
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY pc.product_id, c.id`

	fetchCategoryDiscountsSQL = `SELECT cd.category_id,
		d.id, d.name, d.discount_type, d.use_percentage, d.discount_percentage, d.discount_amount,
		d.start_date, d.end_date, d.max_uses, d.uses, d.requires_role_id
		FROM category_discounts cd
		JOIN discounts d ON d.id = cd.discount_id
		WHERE cd.category_id = ANY($1)
		ORDER BY cd.category_id, d.id`
)

// NewFetchers builds the four batched collection fetchers the prefetch
// context draws from. Every fetcher issues a constant number of queries for
// the whole id batch.
func NewFetchers(pool *pgxpool.Pool) pricing.Fetchers {
	return pricing.Fetchers{
		Attributes:    fetchAttributes(pool),
		Combinations:  fetchCombinations(pool),
		TierPrices:    fetchTierPrices(pool),
		CategoryLinks: fetchCategoryLinks(pool),
	}
}

func fetchAttributes(pool *pgxpool.Pool) pricing.FetchFunc[catalog.ProductVariantAttribute] {
	return func(ctx context.Context, ids []int64) (map[int64][]catalog.ProductVariantAttribute, error) {
		rows, err := pool.Query(ctx, fetchAttributesSQL, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching attributes: %w", err)
		}

		var flat []catalog.ProductVariantAttribute
		for rows.Next() {
			var a catalog.ProductVariantAttribute
			if err := rows.Scan(&a.ID, &a.ProductID, &a.Name, &a.ControlType, &a.DisplayOrder, &a.IsRequired); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning attribute: %w", err)
			}
			flat = append(flat, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("fetching attributes: %w", err)
		}

		attrIndex := make(map[int64]int, len(flat))
		for i := range flat {
			attrIndex[flat[i].ID] = i
		}

		// Second batched query: the values of every fetched attribute.
		vrows, err := pool.Query(ctx, fetchAttributeValuesSQL, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching attribute values: %w", err)
		}
		defer vrows.Close()

		for vrows.Next() {
			var (
				v         catalog.ProductVariantAttributeValue
				productID int64
			)
			if err := vrows.Scan(&v.ID, &v.AttributeID, &productID, &v.Name, &v.ValueType,
				&v.PriceAdjustment, &v.IsPreSelected, &v.DisplayOrder, &v.LinkedProductID, &v.Quantity); err != nil {
				return nil, fmt.Errorf("scanning attribute value: %w", err)
			}
			if i, ok := attrIndex[v.AttributeID]; ok {
				flat[i].Values = append(flat[i].Values, v)
			}
		}
		if err := vrows.Err(); err != nil {
			return nil, fmt.Errorf("fetching attribute values: %w", err)
		}

		out := make(map[int64][]catalog.ProductVariantAttribute)
		for i := range flat {
			out[flat[i].ProductID] = append(out[flat[i].ProductID], flat[i])
		}
		return out, nil
	}
}

func fetchCombinations(pool *pgxpool.Pool) pricing.FetchFunc[catalog.Combination] {
	return func(ctx context.Context, ids []int64) (map[int64][]catalog.Combination, error) {
		rows, err := pool.Query(ctx, fetchCombinationsSQL, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching combinations: %w", err)
		}
		defer rows.Close()

		out := make(map[int64][]catalog.Combination)
		for rows.Next() {
			var c catalog.Combination
			if err := rows.Scan(&c.ID, &c.ProductID, &c.Fingerprint, &c.Price, &c.SKU, &c.GTIN,
				&c.StockQuantity, &c.AllowOutOfStockOrders, &c.IsActive,
				&c.Weight, &c.Length, &c.Width, &c.Height); err != nil {
				return nil, fmt.Errorf("scanning combination: %w", err)
			}
			out[c.ProductID] = append(out[c.ProductID], c)
		}
		return out, rows.Err()
	}
}

func fetchTierPrices(pool *pgxpool.Pool) pricing.FetchFunc[catalog.TierPrice] {
	return func(ctx context.Context, ids []int64) (map[int64][]catalog.TierPrice, error) {
		rows, err := pool.Query(ctx, fetchTierPricesSQL, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching tier prices: %w", err)
		}
		defer rows.Close()

		out := make(map[int64][]catalog.TierPrice)
		for rows.Next() {
			var t catalog.TierPrice
			if err := rows.Scan(&t.ID, &t.ProductID, &t.StoreID, &t.CustomerRoleID, &t.Quantity, &t.Price); err != nil {
				return nil, fmt.Errorf("scanning tier price: %w", err)
			}
			out[t.ProductID] = append(out[t.ProductID], t)
		}
		return out, rows.Err()
	}
}

func fetchCategoryLinks(pool *pgxpool.Pool) pricing.FetchFunc[catalog.ProductCategory] {
	return func(ctx context.Context, ids []int64) (map[int64][]catalog.ProductCategory, error) {
		rows, err := pool.Query(ctx, fetchCategoryLinksSQL, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching category links: %w", err)
		}

		out := make(map[int64][]catalog.ProductCategory)
		var categoryIDs []int64
		seen := make(map[int64]struct{})
		for rows.Next() {
			var link catalog.ProductCategory
			if err := rows.Scan(&link.ProductID, &link.CategoryID, &link.HasDiscountsApplied); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning category link: %w", err)
			}
			out[link.ProductID] = append(out[link.ProductID], link)
			if link.HasDiscountsApplied {
				if _, ok := seen[link.CategoryID]; !ok {
					seen[link.CategoryID] = struct{}{}
					categoryIDs = append(categoryIDs, link.CategoryID)
				}
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("fetching category links: %w", err)
		}
		if len(categoryIDs) == 0 {
			return out, nil
		}

		// Second batched query: discounts of the flagged categories.
		byCategory, err := fetchDiscountsByCategory(ctx, pool, categoryIDs)
		if err != nil {
			return nil, err
		}
		for productID, links := range out {
			for i := range links {
				links[i].Discounts = byCategory[links[i].CategoryID]
			}
			out[productID] = links
		}
		return out, nil
	}
}

func fetchDiscountsByCategory(ctx context.Context, pool *pgxpool.Pool, categoryIDs []int64) (map[int64][]catalog.Discount, error) {
	rows, err := pool.Query(ctx, fetchCategoryDiscountsSQL, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching category discounts: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]catalog.Discount)
	for rows.Next() {
		var (
			categoryID int64
			d          catalog.Discount
		)
		if err := rows.Scan(&categoryID,
			&d.ID, &d.Name, &d.DiscountType, &d.UsePercentage, &d.DiscountPercentage, &d.DiscountAmount,
			&d.StartDate, &d.EndDate, &d.MaxUses, &d.Uses, &d.RequiresRoleID,
		); err != nil {
			return nil, fmt.Errorf("scanning category discount: %w", err)
		}
		out[categoryID] = append(out[categoryID], d)
	}
	return out, rows.Err()
}
