package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/storage"
)

// MarketRateStore is an in-memory implementation of storage.MarketRateStore.
type MarketRateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketRateSample // keyed by (bank, sampled_at)
}

// NewMarketRateStore creates a new in-memory market rate store.
func NewMarketRateStore() *MarketRateStore {
	return &MarketRateStore{
		data: make(map[string]*domain.MarketRateSample),
	}
}

// rateKey generates a unique key for a sample.
func rateKey(bank string, sampledAt int64) string {
	return fmt.Sprintf("%s|%d", bank, sampledAt)
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate.
func (s *MarketRateStore) InsertBulk(_ context.Context, samples []*domain.MarketRateSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(samples))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range samples {
		if r == nil || r.Bank == "" {
			return storage.ErrInvalidInput
		}
		key := rateKey(r.Bank, r.SampledAt)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range samples {
		s.data[rateKey(r.Bank, r.SampledAt)] = copySample(r)
	}

	return nil
}

// GetByBank retrieves samples for a bank within [start, end] (inclusive), ordered by sampled_at ASC.
func (s *MarketRateStore) GetByBank(_ context.Context, bank string, start, end int64) ([]*domain.MarketRateSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketRateSample
	for _, r := range s.data {
		if r.Bank == bank && r.SampledAt >= start && r.SampledAt <= end {
			result = append(result, copySample(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SampledAt < result[j].SampledAt
	})

	return result, nil
}

func copySample(r *domain.MarketRateSample) *domain.MarketRateSample {
	c := *r
	c.LendAPR = copyFloat(r.LendAPR)
	c.BorrowAPR = copyFloat(r.BorrowAPR)
	return &c
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ storage.MarketRateStore = (*MarketRateStore)(nil)
