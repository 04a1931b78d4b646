package redis

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

func testCache(t *testing.T) *MarketCache {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return NewMarketCache(c)
}

func TestMarketCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := testCache(t)

	created := time.Unix(1690000100, 0).UTC()
	m := domain.Market{
		ID:                 "0xaa",
		Creator:            "0xbb",
		Owner:              "0xcc",
		StakeToken:         "0xdd",
		EngagementDeadline: big.NewInt(1700000000),
		CreatorFee:         big.NewInt(250),
		IPFSHash:           "QmTest",
		TotalAmount:        big.NewInt(120),
		IsCancelled:        true,
		CreatedAt:          created,
		UpdatedAt:          created,
	}

	require.NoError(t, mc.Set(ctx, m))

	got, err := mc.Get(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, m, got)
	require.Nil(t, got.ResolutionDeadline)
	require.Nil(t, got.PredictionCount)
}

func TestMarketCache_MissIsNotFound(t *testing.T) {
	mc := testCache(t)

	_, err := mc.Get(context.Background(), "0xmissing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	mc := testCache(t)

	m := domain.Market{ID: "0xaa", TotalAmount: big.NewInt(0)}
	require.NoError(t, mc.Set(ctx, m))
	require.NoError(t, mc.Invalidate(ctx, "0xaa"))

	_, err := mc.Get(ctx, "0xaa")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Invalidating an absent key is not an error.
	require.NoError(t, mc.Invalidate(ctx, "0xmissing"))
}
