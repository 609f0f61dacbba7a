package pricing

import (
	"context"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// FetchFunc loads one collection kind for a batch of product ids, returning
// only rows for those ids keyed by product id. Implementations must treat the
// id slice as a single round trip.
type FetchFunc[T any] func(ctx context.Context, productIDs []int64) (map[int64][]T, error)

// Fetchers bundles the four collection fetchers a PrefetchContext draws from.
type Fetchers struct {
	Attributes    FetchFunc[catalog.ProductVariantAttribute]
	Combinations  FetchFunc[catalog.Combination]
	TierPrices    FetchFunc[catalog.TierPrice]
	CategoryLinks FetchFunc[catalog.ProductCategory]
}

// batchLoader memoizes one collection kind per product id. Ids accumulate in
// the pending set until a load forces a single batched fetch covering all of
// them. Fetch failures leave the pending set intact and memoize nothing:
// partial data would silently corrupt price results.
type batchLoader[T any] struct {
	fetch    FetchFunc[T]
	pending  map[int64]struct{}
	resolved map[int64][]T
}

func newBatchLoader[T any](fetch FetchFunc[T]) *batchLoader[T] {
	return &batchLoader[T]{
		fetch:    fetch,
		pending:  make(map[int64]struct{}),
		resolved: make(map[int64][]T),
	}
}

func (l *batchLoader[T]) collect(ids ...int64) {
	for _, id := range ids {
		if _, ok := l.resolved[id]; ok {
			continue
		}
		l.pending[id] = struct{}{}
	}
}

func (l *batchLoader[T]) load(ctx context.Context, id int64) ([]T, error) {
	if rows, ok := l.resolved[id]; ok {
		return rows, nil
	}
	if l.fetch == nil {
		return nil, errors.New("prefetch: fetcher not configured")
	}

	l.pending[id] = struct{}{}
	ids := make([]int64, 0, len(l.pending))
	for pid := range l.pending {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fetched, err := l.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	// An id with no rows memoizes as an empty collection so it is never
	// fetched again.
	for _, pid := range ids {
		l.resolved[pid] = fetched[pid]
		delete(l.pending, pid)
	}
	return l.resolved[id], nil
}

// PrefetchContext caches the per-product collections one price evaluation
// batch needs, fetching each collection kind in O(1) round trips for however
// many product ids have been collected so far.
//
// A context is owned exclusively by the call tree that created it: recursive
// bundle evaluation may read and extend it freely, but it must never be
// shared between independent evaluations or kept alive past the batch.
type PrefetchContext struct {
	attributes   *batchLoader[catalog.ProductVariantAttribute]
	combinations *batchLoader[catalog.Combination]
	tierPrices   *batchLoader[catalog.TierPrice]
	categories   *batchLoader[catalog.ProductCategory]
}

// NewPrefetchContext creates a context seeded with the given products. Seeded
// ids are fetched lazily on first use, in one batch per collection kind.
func NewPrefetchContext(f Fetchers, products ...*catalog.Product) *PrefetchContext {
	pc := &PrefetchContext{
		attributes:   newBatchLoader(f.Attributes),
		combinations: newBatchLoader(f.Combinations),
		tierPrices:   newBatchLoader(f.TierPrices),
		categories:   newBatchLoader(f.CategoryLinks),
	}
	pc.Collect(products...)
	return pc
}

// Collect registers product ids for inclusion in the next batched fetch
// without forcing one now. A bundle parent collects all of its children here
// before evaluating any of them, so the whole tree costs one round trip per
// collection kind.
//
// Tier prices are only collected for products whose HasTierPrices flag is
// set; the other collections are eligible for every product.
func (pc *PrefetchContext) Collect(products ...*catalog.Product) {
	for _, p := range products {
		if p == nil {
			continue
		}
		pc.attributes.collect(p.ID)
		pc.combinations.collect(p.ID)
		pc.categories.collect(p.ID)
		if p.HasTierPrices {
			pc.tierPrices.collect(p.ID)
		}
	}
}

// Attributes returns the variant attributes of the product, fetching all
// still-pending ids in one batch on first use.
func (pc *PrefetchContext) Attributes(ctx context.Context, productID int64) ([]catalog.ProductVariantAttribute, error) {
	return pc.attributes.load(ctx, productID)
}

// Combinations returns the attribute combinations of the product.
func (pc *PrefetchContext) Combinations(ctx context.Context, productID int64) ([]catalog.Combination, error) {
	return pc.combinations.load(ctx, productID)
}

// TierPrices returns the tier prices of the product.
func (pc *PrefetchContext) TierPrices(ctx context.Context, productID int64) ([]catalog.TierPrice, error) {
	return pc.tierPrices.load(ctx, productID)
}

// CategoryLinks returns the product's category links.
func (pc *PrefetchContext) CategoryLinks(ctx context.Context, productID int64) ([]catalog.ProductCategory, error) {
	return pc.categories.load(ctx, productID)
}
