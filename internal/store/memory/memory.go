// Package memory provides map-backed implementations of the domain store
// interfaces for tests and light deployments. Records are deep-copied on both
// writes and reads so callers never alias stored state.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMarket(m domain.Market) domain.Market {
	m.EngagementDeadline = cloneBig(m.EngagementDeadline)
	m.ResolutionDeadline = cloneBig(m.ResolutionDeadline)
	m.CreatorFee = cloneBig(m.CreatorFee)
	m.PredictionCount = cloneBig(m.PredictionCount)
	m.TotalAmount = cloneBig(m.TotalAmount)
	return m
}

// MarketStore is an in-memory domain.MarketStore.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[string]domain.Market
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{markets: make(map[string]domain.Market)}
}

func (s *MarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = cloneMarket(m)
	return nil
}

func (s *MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

func (s *MarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Market
	for idx, id := range ids {
		if opts.Offset > 0 && idx < opts.Offset {
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, cloneMarket(s.markets[id]))
	}
	return out, nil
}

func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

// EngagementStore is an in-memory domain.EngagementStore.
type EngagementStore struct {
	mu          sync.RWMutex
	engagements map[string]domain.Engagement
}

// NewEngagementStore creates an empty EngagementStore.
func NewEngagementStore() *EngagementStore {
	return &EngagementStore{engagements: make(map[string]domain.Engagement)}
}

func cloneEngagement(e domain.Engagement) domain.Engagement {
	e.Amount = cloneBig(e.Amount)
	return e
}

func (s *EngagementStore) Upsert(_ context.Context, e domain.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engagements[e.ID] = cloneEngagement(e)
	return nil
}

func (s *EngagementStore) GetByID(_ context.Context, id string) (domain.Engagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engagements[id]
	if !ok {
		return domain.Engagement{}, domain.ErrNotFound
	}
	return cloneEngagement(e), nil
}

func (s *EngagementStore) ListByMarket(_ context.Context, marketID string, opts domain.ListOpts) ([]domain.Engagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []domain.Engagement
	for _, e := range s.engagements {
		if e.MarketID == marketID {
			all = append(all, cloneEngagement(e))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

// GlobalStatStore is an in-memory domain.GlobalStatStore.
type GlobalStatStore struct {
	mu   sync.RWMutex
	stat *domain.GlobalStat
}

// NewGlobalStatStore creates an empty GlobalStatStore.
func NewGlobalStatStore() *GlobalStatStore {
	return &GlobalStatStore{}
}

func (s *GlobalStatStore) Upsert(_ context.Context, stat domain.GlobalStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat.TotalVolume = cloneBig(stat.TotalVolume)
	s.stat = &stat
	return nil
}

func (s *GlobalStatStore) Get(_ context.Context) (domain.GlobalStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stat == nil {
		return domain.GlobalStat{}, domain.ErrNotFound
	}
	out := *s.stat
	out.TotalVolume = cloneBig(out.TotalVolume)
	return out, nil
}

// MetadataStore is an in-memory domain.MetadataStore.
type MetadataStore struct {
	mu       sync.RWMutex
	metadata map[string]domain.MarketMetadata
	events   map[string]domain.MarketEvent
}

// NewMetadataStore creates an empty MetadataStore.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		metadata: make(map[string]domain.MarketMetadata),
		events:   make(map[string]domain.MarketEvent),
	}
}

func cloneMetadata(md domain.MarketMetadata) domain.MarketMetadata {
	md.Name = cloneStr(md.Name)
	md.Description = cloneStr(md.Description)
	md.Image = cloneStr(md.Image)
	return md
}

func (s *MetadataStore) UpsertMetadata(_ context.Context, md domain.MarketMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[md.ID] = cloneMetadata(md)
	return nil
}

func (s *MetadataStore) GetMetadata(_ context.Context, id string) (domain.MarketMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.metadata[id]
	if !ok {
		return domain.MarketMetadata{}, domain.ErrNotFound
	}
	return cloneMetadata(md), nil
}

func (s *MetadataStore) UpsertEvent(_ context.Context, ev domain.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return nil
}

func (s *MetadataStore) ListEvents(_ context.Context, metadataID string) ([]domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MarketEvent
	for _, ev := range s.events {
		if ev.MetadataID == metadataID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}
