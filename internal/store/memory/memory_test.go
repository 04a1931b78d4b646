package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

func TestMarketStore_NoAliasing(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()

	m := domain.Market{ID: "0xaa", TotalAmount: big.NewInt(100)}
	require.NoError(t, s.Upsert(ctx, m))

	// Mutating the caller's copy after the write must not leak into the store.
	m.TotalAmount.SetInt64(999)

	got, err := s.GetByID(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, int64(100), got.TotalAmount.Int64())

	// And mutating a read copy must not corrupt later reads.
	got.TotalAmount.SetInt64(777)
	again, err := s.GetByID(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, int64(100), again.TotalAmount.Int64())
}

func TestMarketStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()
	for _, id := range []string{"0xcc", "0xaa", "0xbb"} {
		require.NoError(t, s.Upsert(ctx, domain.Market{ID: id}))
	}

	all, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "0xaa", all[0].ID)
	require.Equal(t, "0xcc", all[2].ID)

	page, err := s.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "0xbb", page[0].ID)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestEngagementStore_ListByMarket(t *testing.T) {
	ctx := context.Background()
	s := NewEngagementStore()

	for i, marketID := range []string{"0xaa", "0xaa", "0xbb"} {
		require.NoError(t, s.Upsert(ctx, domain.Engagement{
			ID:       domain.EngagementID("0x01", uint(i)),
			MarketID: marketID,
			Amount:   big.NewInt(int64(i)),
		}))
	}

	es, err := s.ListByMarket(ctx, "0xaa", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, es, 2)

	es, err = s.ListByMarket(ctx, "0xcc", domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, es)
}

func TestGlobalStatStore_EmptyIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewGlobalStatStore()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	stat := domain.NewGlobalStat()
	stat.TotalMarkets = 2
	require.NoError(t, s.Upsert(ctx, stat))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.TotalMarkets)
	require.Equal(t, int64(0), got.TotalVolume.Int64())
}

func TestMetadataStore_EventsSortByEventID(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore()

	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, s.UpsertEvent(ctx, domain.MarketEvent{
			ID:         domain.MarketEventID("0xaa", id),
			MetadataID: "0xaa",
			EventID:    id,
		}))
	}

	evs, err := s.ListEvents(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, evs, 3)
	require.Equal(t, int64(1), evs[0].EventID)
	require.Equal(t, int64(3), evs[2].EventID)
}
