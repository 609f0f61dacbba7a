// Command tierprice-ingest loads bulk tier price feeds into the database.
//
// Feed files are gzip-compressed CSV with one row per line:
//
//	sku,store_id,customer_role_id,quantity,price
//
// Supplier feeds routinely contain rows for products the catalog does not
// carry. A bloom filter built from the catalog's SKUs rejects those rows
// cheaply while streaming; surviving candidates are then resolved against the
// products table in batches, which also weeds out bloom false positives.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-pricing/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	insertBatch   = 1000
)

// tierRow is one parsed feed line, keyed by SKU until resolution.
type tierRow struct {
	sku      string
	storeID  int64
	roleID   *int64
	quantity int
	price    decimal.Decimal
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing tierprices*.csv.gz feed files")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("tier price ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("tier price ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "tierprices*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no tierprices*.csv.gz files found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Pass 1: bloom filter over the catalog's SKUs.
	slog.Info("pass 1: building SKU filter")

	filter, err := buildSKUFilter(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "build SKU filter")
	}

	// Pass 2: stream feed files concurrently, keeping rows whose SKU passes
	// the filter.
	slog.Info("pass 2: scanning feeds", slog.Int("files", len(files)))

	rows, err := scanFeeds(ctx, files, filter)
	if err != nil {
		return errors.Wrap(err, "scan feeds")
	}

	slog.Info("candidate rows found", slog.Int("count", len(rows)))

	if len(rows) == 0 {
		slog.Info("no tier prices to insert")
		return nil
	}

	return writeTierPrices(ctx, pool, rows)
}

// buildSKUFilter streams every product SKU into a bloom filter.
func buildSKUFilter(ctx context.Context, pool *pgxpool.Pool) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	rows, err := pool.Query(ctx, `SELECT sku FROM products WHERE sku <> ''`)
	if err != nil {
		return nil, errors.Wrap(err, "query product skus")
	}
	defer rows.Close()

	var count uint64
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, errors.Wrap(err, "scan sku")
		}
		filter.AddString(sku)
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read skus")
	}

	slog.Info("pass 1 complete", slog.Uint64("skus", count))
	return filter, nil
}

// scanFeeds streams all feed files concurrently and merges the rows that pass
// the SKU filter.
func scanFeeds(ctx context.Context, files []string, filter *bloom.BloomFilter) ([]tierRow, error) {
	var (
		mu     sync.Mutex
		merged []tierRow
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(scanFeedFile(ctx, i, f, filter, func(rows []tierRow) {
			mu.Lock()
			merged = append(merged, rows...)
			mu.Unlock()
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

func scanFeedFile(ctx context.Context, idx int, path string, filter *bloom.BloomFilter, emit func([]tierRow)) func() error {
	return func() error {
		var (
			kept  []tierRow
			count uint64
		)

		if err := streamGzFile(ctx, path, func(line string) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("lines", count),
				)
			}

			row, ok := parseFeedLine(line)
			if !ok {
				return
			}
			if filter.TestString(row.sku) {
				kept = append(kept, row)
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_lines", count),
			slog.Int("kept", len(kept)),
		)

		emit(kept)
		return nil
	}
}

// parseFeedLine parses "sku,store_id,customer_role_id,quantity,price".
// The role column may be empty, meaning the tier applies to all roles.
// Malformed lines are dropped.
func parseFeedLine(line string) (tierRow, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return tierRow{}, false
	}

	row := tierRow{sku: strings.TrimSpace(parts[0])}
	if row.sku == "" {
		return tierRow{}, false
	}

	storeID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return tierRow{}, false
	}
	row.storeID = storeID

	if role := strings.TrimSpace(parts[2]); role != "" {
		roleID, err := strconv.ParseInt(role, 10, 64)
		if err != nil {
			return tierRow{}, false
		}
		row.roleID = &roleID
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || quantity < 1 {
		return tierRow{}, false
	}
	row.quantity = quantity

	price, err := decimal.NewFromString(strings.TrimSpace(parts[4]))
	if err != nil || price.IsNegative() {
		return tierRow{}, false
	}
	row.price = price

	return row, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeTierPrices resolves SKUs to product ids in batches and replaces the
// tier prices of every product the feeds mention. Bloom false positives fall
// out here: unknown SKUs simply do not resolve.
func writeTierPrices(ctx context.Context, pool *pgxpool.Pool, rows []tierRow) error {
	bySKU := make(map[string][]tierRow)
	for _, r := range rows {
		bySKU[r.sku] = append(bySKU[r.sku], r)
	}

	skus := make([]string, 0, len(bySKU))
	for sku := range bySKU {
		skus = append(skus, sku)
	}

	slog.Info("resolving SKUs", slog.Int("count", len(skus)))

	idBySKU := make(map[string]int64, len(skus))
	for start := 0; start < len(skus); start += insertBatch {
		end := min(start+insertBatch, len(skus))

		res, err := pool.Query(ctx,
			`SELECT id, sku FROM products WHERE sku = ANY($1)`, skus[start:end])
		if err != nil {
			return errors.Wrap(err, "resolve skus")
		}
		for res.Next() {
			var (
				id  int64
				sku string
			)
			if err := res.Scan(&id, &sku); err != nil {
				res.Close()
				return errors.Wrap(err, "scan product id")
			}
			idBySKU[sku] = id
		}
		res.Close()
		if err := res.Err(); err != nil {
			return errors.Wrap(err, "resolve skus")
		}
	}

	slog.Info("writing tier prices", slog.Int("products", len(idBySKU)))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	written := 0
	for sku, productID := range idBySKU {
		if _, err := tx.Exec(ctx,
			`DELETE FROM tier_prices WHERE product_id = $1`, productID); err != nil {
			return errors.Wrapf(err, "clear tier prices for %s", sku)
		}
		for _, r := range bySKU[sku] {
			if _, err := tx.Exec(ctx,
				`INSERT INTO tier_prices (product_id, store_id, customer_role_id, quantity, price)
				 VALUES ($1, $2, $3, $4, $5)`,
				productID, r.storeID, r.roleID, r.quantity, r.price); err != nil {
				return errors.Wrapf(err, "insert tier price for %s", sku)
			}
			written++
		}
		if _, err := tx.Exec(ctx,
			`UPDATE products SET has_tier_prices = TRUE WHERE id = $1`, productID); err != nil {
			return errors.Wrapf(err, "flag product %s", sku)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}

	slog.Info("write complete", slog.Int("tier_prices", written))
	return nil
}
