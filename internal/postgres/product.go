package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

const (
	productColumns = `id, sku, name, product_type, price, special_price, special_price_start, special_price_end,
		has_tier_prices, has_discounts_applied, customer_enters_price, bundle_per_item_pricing,
		lowest_combination_price, stock_quantity, allow_out_of_stock_orders,
		weight, length, width, height, gtin`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	productDiscountsSQL = `SELECT pd.product_id,
		d.id, d.name, d.discount_type, d.use_percentage, d.discount_percentage, d.discount_amount,
		d.start_date, d.end_date, d.max_uses, d.uses, d.requires_role_id
		FROM product_discounts pd
		JOIN discounts d ON d.id = pd.discount_id
		WHERE pd.product_id = ANY($1)
		ORDER BY pd.product_id, d.id`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
// Loaded products carry their directly assigned discounts.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if err := r.attachDiscounts(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	ps := []catalog.Product{p}
	if err := r.attachDiscounts(ctx, ps); err != nil {
		return nil, err
	}
	return &ps[0], nil
}

// GetByIDs returns products matching any of the given ids in one query.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	if err := r.attachDiscounts(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attachDiscounts loads the SKU-assigned discounts of all given products in
// one batched query.
func (r *ProductRepository) attachDiscounts(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
	}

	rows, err := r.pool.Query(ctx, productDiscountsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading product discounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			d         catalog.Discount
		)
		if err := rows.Scan(&productID,
			&d.ID, &d.Name, &d.DiscountType, &d.UsePercentage, &d.DiscountPercentage, &d.DiscountAmount,
			&d.StartDate, &d.EndDate, &d.MaxUses, &d.Uses, &d.RequiresRoleID,
		); err != nil {
			return fmt.Errorf("scanning product discount: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].AppliedDiscounts = append(products[i].AppliedDiscounts, d)
		}
	}
	return rows.Err()
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.ProductType, &p.Price,
		&p.SpecialPrice, &p.SpecialPriceStart, &p.SpecialPriceEnd,
		&p.HasTierPrices, &p.HasDiscountsApplied, &p.CustomerEntersPrice, &p.BundlePerItemPricing,
		&p.LowestAttributeCombinationPrice, &p.StockQuantity, &p.AllowOutOfStockOrders,
		&p.Weight, &p.Length, &p.Width, &p.Height, &p.GTIN,
	)
	return p, err
}
