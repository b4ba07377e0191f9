package memory

import (
	"context"
	"sync"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/storage"
)

// MetadataSnapshotStore is an in-memory implementation of storage.MetadataSnapshotStore.
// Only the latest snapshot is retained.
type MetadataSnapshotStore struct {
	mu     sync.RWMutex
	latest *domain.MetadataSnapshot
	seen   map[int64]struct{} // fetched_at values already saved
}

// NewMetadataSnapshotStore creates a new in-memory metadata snapshot store.
func NewMetadataSnapshotStore() *MetadataSnapshotStore {
	return &MetadataSnapshotStore{
		seen: make(map[int64]struct{}),
	}
}

// Save stores a snapshot. Returns ErrDuplicateKey if FetchedAt was already saved.
func (s *MetadataSnapshotStore) Save(_ context.Context, snap *domain.MetadataSnapshot) error {
	if snap == nil || snap.FetchedAt <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[snap.FetchedAt]; exists {
		return storage.ErrDuplicateKey
	}
	s.seen[snap.FetchedAt] = struct{}{}

	if s.latest == nil || snap.FetchedAt > s.latest.FetchedAt {
		s.latest = copySnapshot(snap)
	}
	return nil
}

// Latest retrieves the most recent snapshot. Returns ErrNotFound if none.
func (s *MetadataSnapshotStore) Latest(_ context.Context) (*domain.MetadataSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(s.latest), nil
}

func copySnapshot(snap *domain.MetadataSnapshot) *domain.MetadataSnapshot {
	tokens := make(map[string]domain.AssetMetadata, len(snap.Tokens))
	for mint, m := range snap.Tokens {
		tokens[mint] = domain.AssetMetadata{
			Symbol:  copyString(m.Symbol),
			Name:    copyString(m.Name),
			LogoURI: copyString(m.LogoURI),
		}
	}
	return &domain.MetadataSnapshot{FetchedAt: snap.FetchedAt, Tokens: tokens}
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ storage.MetadataSnapshotStore = (*MetadataSnapshotStore)(nil)
