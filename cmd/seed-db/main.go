// Command seed-db loads a small demo catalog: a few simple products, one
// product with attributes and combinations, a grouped product, a bundle, tier
// prices, and discounts. Useful for local development and smoke testing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-pricing/internal/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	exec := func(label, sql string, args ...any) error {
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return errors.Wrap(err, label)
		}
		return nil
	}

	slog.Info("seeding products")

	specialStart := time.Now().AddDate(0, 0, -7)
	specialEnd := time.Now().AddDate(0, 0, 7)

	// 1: plain simple product.
	// 2: simple product on special.
	// 3: simple product with tier prices.
	// 4: t-shirt with size/color attributes and combinations.
	// 5: grouped product holding 1 and 2 as children via product linkage.
	// 6: bundle priced per item from 1 and 3.
	steps := []struct {
		label string
		sql   string
		args  []any
	}{
		{"product 1", `INSERT INTO products (id, sku, name, product_type, price)
			VALUES (1, 'MUG-01', 'Coffee Mug', 'simple', 8.00)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"product 2", `INSERT INTO products (id, sku, name, product_type, price, special_price, special_price_start, special_price_end)
			VALUES (2, 'CAP-01', 'Baseball Cap', 'simple', 15.00, 12.50, $1, $2)
			ON CONFLICT (id) DO NOTHING`, []any{specialStart, specialEnd}},
		{"product 3", `INSERT INTO products (id, sku, name, product_type, price, has_tier_prices)
			VALUES (3, 'PEN-01', 'Gel Pen', 'simple', 2.00, TRUE)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"product 4", `INSERT INTO products (id, sku, name, product_type, price)
			VALUES (4, 'TEE-01', 'Logo T-Shirt', 'simple', 20.00)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"product 5", `INSERT INTO products (id, sku, name, product_type, price)
			VALUES (5, 'SET-01', 'Desk Set', 'grouped', 0)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"product 6", `INSERT INTO products (id, sku, name, product_type, price, bundle_per_item_pricing)
			VALUES (6, 'KIT-01', 'Starter Kit', 'bundled', 0, TRUE)
			ON CONFLICT (id) DO NOTHING`, nil},

		{"tier prices", `INSERT INTO tier_prices (product_id, store_id, customer_role_id, quantity, price)
			VALUES (3, 0, NULL, 10, 1.80), (3, 0, NULL, 50, 1.50)
			ON CONFLICT DO NOTHING`, nil},

		{"size attribute", `INSERT INTO product_attributes (id, product_id, name, control_type, display_order)
			VALUES (1, 4, 'Size', 'dropdown', 1)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"color attribute", `INSERT INTO product_attributes (id, product_id, name, control_type, display_order)
			VALUES (2, 4, 'Color', 'radio', 2)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"size values", `INSERT INTO product_attribute_values (id, attribute_id, name, price_adjustment, is_preselected, display_order)
			VALUES (1, 1, 'S', 0, TRUE, 1), (2, 1, 'M', 0, FALSE, 2), (3, 1, 'L', 2.00, FALSE, 3)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"color values", `INSERT INTO product_attribute_values (id, attribute_id, name, price_adjustment, is_preselected, display_order)
			VALUES (4, 2, 'Black', 0, TRUE, 1), (5, 2, 'White', 0, FALSE, 2)
			ON CONFLICT (id) DO NOTHING`, nil},

		{"grouped link attribute", `INSERT INTO product_attributes (id, product_id, name, control_type, display_order)
			VALUES (3, 5, 'Contents', 'checkboxes', 1)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"grouped link values", `INSERT INTO product_attribute_values (id, attribute_id, name, value_type, linked_product_id, quantity, is_preselected)
			VALUES (6, 3, 'Coffee Mug', 'product_linkage', 1, 1, TRUE),
			       (7, 3, 'Baseball Cap', 'product_linkage', 2, 1, TRUE)
			ON CONFLICT (id) DO NOTHING`, nil},

		{"bundle items", `INSERT INTO bundle_items (bundle_product_id, product_id, quantity, discount, discount_is_percentage)
			VALUES (6, 1, 2, NULL, FALSE), (6, 3, 5, 10, TRUE)
			ON CONFLICT DO NOTHING`, nil},

		{"discount", `INSERT INTO discounts (id, name, discount_type, use_percentage, discount_percentage)
			VALUES (1, 'Summer sale', 'assigned_to_skus', TRUE, 10)
			ON CONFLICT (id) DO NOTHING`, nil},
		{"product discount", `INSERT INTO product_discounts (product_id, discount_id)
			VALUES (1, 1) ON CONFLICT DO NOTHING`, nil},
		{"discount flag", `UPDATE products SET has_discounts_applied = TRUE WHERE id = 1`, nil},
	}

	for _, s := range steps {
		if err := exec(s.label, s.sql, s.args...); err != nil {
			return err
		}
		slog.Info("seeded", slog.String("step", s.label))
	}

	// Keep the sequence ahead of the fixed ids used above.
	if err := exec("bump sequences", `SELECT
		setval('products_id_seq', (SELECT MAX(id) FROM products)),
		setval('product_attributes_id_seq', (SELECT MAX(id) FROM product_attributes)),
		setval('product_attribute_values_id_seq', (SELECT MAX(id) FROM product_attribute_values)),
		setval('discounts_id_seq', (SELECT MAX(id) FROM discounts))`); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}
