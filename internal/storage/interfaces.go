package storage

import (
	"context"

	"solana-lend-widget/internal/domain"
)

// MetadataSnapshotStore persists strict token list snapshots so a restart can
// adopt a still-fresh list without refetching it.
type MetadataSnapshotStore interface {
	// Save stores a full snapshot. Returns ErrInvalidInput for nil or unstamped snapshots
	// and ErrDuplicateKey if a snapshot with the same FetchedAt exists.
	Save(ctx context.Context, snap *domain.MetadataSnapshot) error

	// Latest retrieves the most recently fetched snapshot. Returns ErrNotFound if none.
	Latest(ctx context.Context) (*domain.MetadataSnapshot, error)
}

// MarketRateStore provides access to market_rates storage (append-only history).
type MarketRateStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate (bank, sampled_at).
	InsertBulk(ctx context.Context, samples []*domain.MarketRateSample) error

	// GetByBank retrieves samples for a bank within [start, end] (inclusive), ordered by sampled_at ASC.
	GetByBank(ctx context.Context, bank string, start, end int64) ([]*domain.MarketRateSample, error)
}
