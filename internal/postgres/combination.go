package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-pricing/internal/domain/attrs"
	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

const (
	listCombinationsSQL = `SELECT id, product_id, fingerprint, price, sku, gtin,
		stock_quantity, allow_out_of_stock_orders, is_active, weight, length, width, height
		FROM product_attribute_combinations WHERE product_id = $1 ORDER BY id`

	deleteCombinationsSQL = `DELETE FROM product_attribute_combinations WHERE product_id = $1`

	insertCombinationSQL = `INSERT INTO product_attribute_combinations
		(product_id, fingerprint, price, sku, gtin, stock_quantity, allow_out_of_stock_orders, is_active,
		 weight, length, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

var _ attrs.CombinationStore = (*CombinationStore)(nil)

// CombinationStore persists attribute combinations backed by PostgreSQL.
type CombinationStore struct {
	pool *pgxpool.Pool
}

// NewCombinationStore returns a CombinationStore that uses the given pool.
func NewCombinationStore(pool *pgxpool.Pool) *CombinationStore {
	return &CombinationStore{pool: pool}
}

// ListByProduct returns all stored combinations of the product.
func (s *CombinationStore) ListByProduct(ctx context.Context, productID int64) ([]catalog.Combination, error) {
	rows, err := s.pool.Query(ctx, listCombinationsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing combinations: %w", err)
	}
	return pgx.CollectRows(rows, scanCombination)
}

// ReplaceAll discards every combination of the product and inserts the new
// set within one transaction.
func (s *CombinationStore) ReplaceAll(ctx context.Context, productID int64, combos []catalog.Combination) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace combinations: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, deleteCombinationsSQL, productID); err != nil {
		return fmt.Errorf("deleting combinations: %w", err)
	}
	for _, c := range combos {
		if _, err := tx.Exec(ctx, insertCombinationSQL,
			productID, c.Fingerprint, c.Price, c.SKU, c.GTIN,
			c.StockQuantity, c.AllowOutOfStockOrders, c.IsActive,
			c.Weight, c.Length, c.Width, c.Height,
		); err != nil {
			return fmt.Errorf("inserting combination: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func scanCombination(row pgx.CollectableRow) (catalog.Combination, error) {
	var c catalog.Combination
	err := row.Scan(&c.ID, &c.ProductID, &c.Fingerprint, &c.Price, &c.SKU, &c.GTIN,
		&c.StockQuantity, &c.AllowOutOfStockOrders, &c.IsActive,
		&c.Weight, &c.Length, &c.Width, &c.Height)
	return c, err
}
