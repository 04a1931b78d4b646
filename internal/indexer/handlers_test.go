package indexer

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/makaolabs/makao-indexer/internal/chain"
	"github.com/makaolabs/makao-indexer/internal/domain"
	"github.com/makaolabs/makao-indexer/internal/ipfs"
	"github.com/makaolabs/makao-indexer/internal/store/memory"
)

var (
	fixtureAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	senderAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	userAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

// stubReader answers the fixture accessors from fixed values. Any ok flag set
// to false simulates a reverting call.
type stubReader struct {
	owner        common.Address
	ownerOK      bool
	stakeToken   common.Address
	stakeOK      bool
	metadataHash string
	metadataOK   bool
	deadline     *big.Int
	deadlineOK   bool
}

func goodReader() *stubReader {
	return &stubReader{
		owner:        ownerAddr,
		ownerOK:      true,
		stakeToken:   tokenAddr,
		stakeOK:      true,
		metadataHash: "QmTest",
		metadataOK:   true,
		deadline:     big.NewInt(1700000000),
		deadlineOK:   true,
	}
}

func (r *stubReader) TryOwner(context.Context) (common.Address, bool) { return r.owner, r.ownerOK }
func (r *stubReader) TryStakeToken(context.Context) (common.Address, bool) {
	return r.stakeToken, r.stakeOK
}
func (r *stubReader) TryEngagementDeadline(context.Context) (*big.Int, bool) {
	return r.deadline, r.deadlineOK
}
func (r *stubReader) TryResolutionDeadline(context.Context) (*big.Int, bool) { return nil, false }
func (r *stubReader) TryCreatorFee(context.Context) (*big.Int, bool)         { return big.NewInt(250), true }
func (r *stubReader) TryPredictionCount(context.Context) (*big.Int, bool)    { return big.NewInt(2), true }
func (r *stubReader) TryMetadataHash(context.Context) (string, bool) {
	return r.metadataHash, r.metadataOK
}

type recordedFetch struct {
	cid  string
	sctx domain.SourceContext
}

type fakeSources struct {
	fetches []recordedFetch
}

func (f *fakeSources) Register(cid string, sctx domain.SourceContext) {
	f.fetches = append(f.fetches, recordedFetch{cid: cid, sctx: sctx})
}

type fakeActivator struct {
	watched []common.Address
}

func (f *fakeActivator) Watch(addr common.Address) {
	f.watched = append(f.watched, addr)
}

type harness struct {
	markets     *memory.MarketStore
	engagements *memory.EngagementStore
	stats       *memory.GlobalStatStore
	metadata    *memory.MetadataStore
	sources     *fakeSources
	activator   *fakeActivator
	reader      *stubReader
	indexer     *Indexer
}

func newHarness(reader *stubReader) *harness {
	h := &harness{
		markets:     memory.NewMarketStore(),
		engagements: memory.NewEngagementStore(),
		stats:       memory.NewGlobalStatStore(),
		metadata:    memory.NewMetadataStore(),
		sources:     &fakeSources{},
		activator:   &fakeActivator{},
		reader:      reader,
	}
	h.indexer = New(Deps{
		Markets:     h.markets,
		Engagements: h.engagements,
		Stats:       h.stats,
		Metadata:    h.metadata,
		Readers:     func(common.Address) ContractReader { return h.reader },
		Sources:     h.sources,
		Activator:   h.activator,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func provenance(block uint64, logIndex uint) chain.EventLog {
	return chain.EventLog{
		Address:     fixtureAddr,
		BlockNumber: block,
		BlockTime:   1690000000 + block,
		TxHash:      common.HexToHash("0x01"),
		TxSender:    senderAddr,
		LogIndex:    logIndex,
	}
}

func createEvent() chain.CreateInstance {
	return chain.CreateInstance{EventLog: provenance(100, 0), Instance: fixtureAddr}
}

func TestCreateInstance_PersistsMarket(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())

	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.Equal(t, lowerHex(senderAddr), m.Creator)
	require.Equal(t, lowerHex(ownerAddr), m.Owner)
	require.Equal(t, lowerHex(tokenAddr), m.StakeToken)
	require.Equal(t, "QmTest", m.IPFSHash)
	require.NotNil(t, m.EngagementDeadline)
	require.Equal(t, int64(1700000000), m.EngagementDeadline.Int64())
	require.Nil(t, m.ResolutionDeadline)
	require.Equal(t, int64(0), m.TotalAmount.Int64())
	require.False(t, m.IsCancelled)
	require.False(t, m.IsResolved)
	require.Equal(t, time.Unix(1690000100, 0).UTC(), m.CreatedAt)

	stat, err := h.stats.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stat.TotalMarkets)
	require.Equal(t, int64(0), stat.TotalVolume.Int64())

	require.Equal(t, []common.Address{fixtureAddr}, h.activator.watched)
	require.Len(t, h.sources.fetches, 1)
	require.Equal(t, "QmTest", h.sources.fetches[0].cid)

	mid, ok := h.sources.fetches[0].sctx.GetString("marketId")
	require.True(t, ok)
	require.Equal(t, lowerHex(fixtureAddr), mid)
	bt, ok := h.sources.fetches[0].sctx.GetInt64("blockTime")
	require.True(t, ok)
	require.Equal(t, int64(1690000100), bt)
}

func TestCreateInstance_OwnerFallsBackToSender(t *testing.T) {
	ctx := context.Background()
	r := goodReader()
	r.ownerOK = false
	h := newHarness(r)

	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.Equal(t, lowerHex(senderAddr), m.Owner)
}

func TestCreateInstance_StakeTokenRevertAbortsCreation(t *testing.T) {
	ctx := context.Background()
	r := goodReader()
	r.stakeOK = false
	h := newHarness(r)

	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	_, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.stats.Get(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Empty(t, h.activator.watched)
	require.Empty(t, h.sources.fetches)
}

func TestCreateInstance_Replay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())

	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))
	once, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)

	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))
	twice, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)

	require.Equal(t, once, twice)

	count, err := h.markets.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestEngageAndExit_Accounting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	engage := func(block uint64, logIndex uint, amount int64) chain.EngageChallenge {
		return chain.EngageChallenge{
			EventLog: provenance(block, logIndex),
			User:     userAddr,
			Amount:   big.NewInt(amount),
		}
	}

	require.NoError(t, h.indexer.HandleEvent(ctx, engage(101, 0, 100)))
	require.NoError(t, h.indexer.HandleEvent(ctx, engage(102, 0, 50)))
	require.NoError(t, h.indexer.HandleEvent(ctx, chain.ExitEvent{
		EventLog: provenance(103, 0),
		User:     userAddr,
		Amount:   big.NewInt(30),
	}))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.Equal(t, int64(120), m.TotalAmount.Int64())
	require.Equal(t, time.Unix(1690000103, 0).UTC(), m.UpdatedAt)

	// Exit decreases global volume just like it decreases the market total.
	stat, err := h.stats.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(120), stat.TotalVolume.Int64())
	require.Equal(t, int64(1), stat.TotalMarkets)

	es, err := h.engagements.ListByMarket(ctx, lowerHex(fixtureAddr), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, es, 2)
	require.Equal(t, lowerHex(userAddr), es[0].User)
}

func TestEngagement_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	ev := chain.EngageChallenge{
		EventLog: provenance(101, 3),
		User:     userAddr,
		Amount:   big.NewInt(100),
	}
	require.NoError(t, h.indexer.HandleEvent(ctx, ev))
	require.NoError(t, h.indexer.HandleEvent(ctx, ev))

	// Same (tx, log index) keys one engagement row. The running totals do
	// double-count on replay; dedup is the delivery layer's job.
	es, err := h.engagements.ListByMarket(ctx, lowerHex(fixtureAddr), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, es, 1)
	require.Equal(t, domain.EngagementID(ev.TxHash.Hex(), 3), es[0].ID)
}

func TestLifecycleEvents_MissingMarketIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())

	events := []chain.Event{
		chain.EngageChallenge{EventLog: provenance(101, 0), User: userAddr, Amount: big.NewInt(1)},
		chain.ExitEvent{EventLog: provenance(102, 0), User: userAddr, Amount: big.NewInt(1)},
		chain.EventCancelled{EventLog: provenance(103, 0)},
		chain.ResolveEvent{EventLog: provenance(104, 0)},
		chain.MarketMetadataSet{EventLog: provenance(105, 0), IPFSHash: "QmOrphan"},
	}
	for _, ev := range events {
		require.NoError(t, h.indexer.HandleEvent(ctx, ev))
	}

	count, err := h.markets.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
	_, err = h.stats.Get(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, h.sources.fetches)
}

func TestCancelAndResolve_SetFlags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))

	require.NoError(t, h.indexer.HandleEvent(ctx, chain.EventCancelled{EventLog: provenance(110, 0)}))
	require.NoError(t, h.indexer.HandleEvent(ctx, chain.ResolveEvent{EventLog: provenance(111, 0)}))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.True(t, m.IsCancelled)
	require.True(t, m.IsResolved)
}

func TestMarketMetadataSet_UpdatesHashAndRegistersFetch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))
	h.sources.fetches = nil

	require.NoError(t, h.indexer.HandleEvent(ctx, chain.MarketMetadataSet{
		EventLog: provenance(120, 0),
		IPFSHash: "QmUpdated",
	}))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.Equal(t, "QmUpdated", m.IPFSHash)

	require.Len(t, h.sources.fetches, 1)
	require.Equal(t, "QmUpdated", h.sources.fetches[0].cid)
	bt, ok := h.sources.fetches[0].sctx.GetInt64("blockTime")
	require.True(t, ok)
	require.Equal(t, int64(1690000120), bt)
}

func TestMarketMetadataSet_EmptyHashSkipsFetch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))
	h.sources.fetches = nil

	require.NoError(t, h.indexer.HandleEvent(ctx, chain.MarketMetadataSet{
		EventLog: provenance(121, 0),
		IPFSHash: "",
	}))

	m, err := h.markets.GetByID(ctx, lowerHex(fixtureAddr))
	require.NoError(t, err)
	require.Equal(t, "", m.IPFSHash)
	require.Empty(t, h.sources.fetches)
}

func metadataResult(marketID string, blockTime int64, data []byte) ipfs.Result {
	sctx := domain.NewSourceContext()
	sctx.SetString("marketId", marketID)
	sctx.SetInt64("blockTime", blockTime)
	return ipfs.Result{CID: "QmTest", Data: data, Context: sctx}
}

func TestHandleMetadataContent_ParsesAndPersists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	marketID := lowerHex(fixtureAddr)

	payload := []byte(`{"name":"Final","description":"who wins","image":"ipfs://img","properties":{"events":[
		{"id":1,"name":"A","description":"first"},
		{"id":2,"name":"B"}
	]}}`)

	require.NoError(t, h.indexer.HandleMetadataContent(ctx, metadataResult(marketID, 1690000100, payload)))

	md, err := h.metadata.GetMetadata(ctx, marketID)
	require.NoError(t, err)
	require.NotNil(t, md.Name)
	require.Equal(t, "Final", *md.Name)
	require.Equal(t, time.Unix(1690000100, 0).UTC(), md.UpdatedAt)

	evs, err := h.metadata.ListEvents(ctx, marketID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, domain.MarketEventID(marketID, 1), evs[0].ID)
	require.Equal(t, "A", evs[0].Name)
	// Timestamps derive from the triggering block, not fetch-resolution time.
	require.Equal(t, time.Unix(1690000100, 0).UTC(), evs[0].CreatedAt)
}

func TestHandleMetadataContent_UnparsablePersistsIdentityOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	marketID := lowerHex(fixtureAddr)

	require.NoError(t, h.indexer.HandleMetadataContent(ctx, metadataResult(marketID, 1690000100, []byte("not json"))))

	md, err := h.metadata.GetMetadata(ctx, marketID)
	require.NoError(t, err)
	require.Equal(t, marketID, md.ID)
	require.Nil(t, md.Name)
	require.Nil(t, md.Description)

	evs, err := h.metadata.ListEvents(ctx, marketID)
	require.NoError(t, err)
	require.Empty(t, evs)
}

func TestHandleMetadataContent_MissingCorrelationIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())

	res := ipfs.Result{CID: "QmTest", Data: []byte(`{"name":"X"}`), Context: domain.NewSourceContext()}
	require.NoError(t, h.indexer.HandleMetadataContent(ctx, res))

	_, err := h.metadata.GetMetadata(ctx, lowerHex(fixtureAddr))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRun_DrainsResolvedResultsOnEventStreamClose(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())
	marketID := lowerHex(fixtureAddr)

	events := make(chan chain.Event)
	results := make(chan ipfs.Result, 1)
	results <- metadataResult(marketID, 1690000100, []byte(`{"name":"Drained"}`))
	close(events)

	require.NoError(t, h.indexer.Run(ctx, events, results))

	// The already-resolved fetch landed before Run returned.
	md, err := h.metadata.GetMetadata(ctx, marketID)
	require.NoError(t, err)
	require.NotNil(t, md.Name)
	require.Equal(t, "Drained", *md.Name)
}

func TestGlobalStats_CountMarketsAcrossCreations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(goodReader())

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	require.NoError(t, h.indexer.HandleEvent(ctx, createEvent()))
	require.NoError(t, h.indexer.HandleEvent(ctx, chain.CreateInstance{
		EventLog: provenance(105, 0),
		Instance: other,
	}))

	stat, err := h.stats.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stat.TotalMarkets)
	require.Equal(t, int64(0), stat.TotalUsers)
}
