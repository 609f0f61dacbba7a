package pricing

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
)

// countingFetchers records how many fetch calls and which id batches each
// collection kind received.
type countingFetchers struct {
	attrCalls, comboCalls, tierCalls, catCalls int
	attrBatches                                [][]int64
	tierBatches                                [][]int64

	tiers map[int64][]catalog.TierPrice
	err   error
}

func (c *countingFetchers) fetchers() Fetchers {
	return Fetchers{
		Attributes: func(_ context.Context, ids []int64) (map[int64][]catalog.ProductVariantAttribute, error) {
			c.attrCalls++
			c.attrBatches = append(c.attrBatches, ids)
			if c.err != nil {
				return nil, c.err
			}
			return map[int64][]catalog.ProductVariantAttribute{}, nil
		},
		Combinations: func(_ context.Context, ids []int64) (map[int64][]catalog.Combination, error) {
			c.comboCalls++
			return map[int64][]catalog.Combination{}, nil
		},
		TierPrices: func(_ context.Context, ids []int64) (map[int64][]catalog.TierPrice, error) {
			c.tierCalls++
			c.tierBatches = append(c.tierBatches, ids)
			return c.tiers, nil
		},
		CategoryLinks: func(_ context.Context, ids []int64) (map[int64][]catalog.ProductCategory, error) {
			c.catCalls++
			return map[int64][]catalog.ProductCategory{}, nil
		},
	}
}

func testProducts(ids ...int64) []*catalog.Product {
	ps := make([]*catalog.Product, len(ids))
	for i, id := range ids {
		ps[i] = &catalog.Product{ID: id, HasTierPrices: true}
	}
	return ps
}

func TestPrefetchSingleBatchPerCollection(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{}
	pc := NewPrefetchContext(cf.fetchers(), testProducts(1, 2, 3)...)

	for _, id := range []int64{1, 2, 3} {
		_, err := pc.Attributes(ctx, id)
		require.NoError(t, err)
		_, err = pc.Combinations(ctx, id)
		require.NoError(t, err)
		_, err = pc.TierPrices(ctx, id)
		require.NoError(t, err)
		_, err = pc.CategoryLinks(ctx, id)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, cf.attrCalls)
	assert.Equal(t, 1, cf.comboCalls)
	assert.Equal(t, 1, cf.tierCalls)
	assert.Equal(t, 1, cf.catCalls)
	require.Len(t, cf.attrBatches, 1)
	assert.Equal(t, []int64{1, 2, 3}, cf.attrBatches[0])
}

func TestPrefetchCollectMergesWithoutFetching(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{}
	pc := NewPrefetchContext(cf.fetchers(), testProducts(1)...)

	pc.Collect(testProducts(2, 3)...)
	assert.Equal(t, 0, cf.attrCalls)

	_, err := pc.Attributes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cf.attrCalls)
	assert.Equal(t, []int64{1, 2, 3}, cf.attrBatches[0])
}

func TestPrefetchNewIDsAfterFlush(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{}
	pc := NewPrefetchContext(cf.fetchers(), testProducts(1)...)

	_, err := pc.Attributes(ctx, 1)
	require.NoError(t, err)

	// A later id triggers a second batch covering only unresolved ids.
	pc.Collect(testProducts(4, 5)...)
	_, err = pc.Attributes(ctx, 4)
	require.NoError(t, err)

	require.Equal(t, 2, cf.attrCalls)
	assert.Equal(t, []int64{4, 5}, cf.attrBatches[1])

	// Already-resolved ids never refetch.
	_, err = pc.Attributes(ctx, 5)
	require.NoError(t, err)
	_, err = pc.Attributes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, cf.attrCalls)
}

func TestPrefetchTierPricesScopedByFlag(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{tiers: map[int64][]catalog.TierPrice{}}

	withTiers := &catalog.Product{ID: 1, HasTierPrices: true}
	withoutTiers := &catalog.Product{ID: 2}
	pc := NewPrefetchContext(cf.fetchers(), withTiers, withoutTiers)

	_, err := pc.TierPrices(ctx, 1)
	require.NoError(t, err)

	require.Len(t, cf.tierBatches, 1)
	assert.Equal(t, []int64{1}, cf.tierBatches[0])
}

func TestPrefetchErrorPropagatesAndRetries(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{err: errors.New("db down")}
	pc := NewPrefetchContext(cf.fetchers(), testProducts(1, 2)...)

	_, err := pc.Attributes(ctx, 1)
	require.Error(t, err)

	// Nothing partial was memoized: the next load retries the whole batch.
	cf.err = nil
	_, err = pc.Attributes(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, cf.attrCalls)
	assert.Equal(t, []int64{1, 2}, cf.attrBatches[1])
}

func TestPrefetchMissingIDMemoizesEmpty(t *testing.T) {
	ctx := context.Background()
	cf := &countingFetchers{}
	pc := NewPrefetchContext(cf.fetchers())

	rows, err := pc.Attributes(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = pc.Attributes(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, cf.attrCalls)
}
