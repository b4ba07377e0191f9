package tokenlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/storage"
)

const (
	// DefaultTTL is how long a fetched list is served without refetching.
	DefaultTTL = 30 * time.Minute
	// MaxBatch caps the number of ids answered by one Lookup.
	MaxBatch = 300
)

// LookupResult answers a batched lookup. Items holds an entry for every processed id;
// a nil value means the id is not in the list.
type LookupResult struct {
	Source    string
	IDs       []string // processed ids in request order
	Count     int
	Found     int
	Items     map[string]*domain.AssetMetadata
	Size      int
	FetchedAt int64
}

// Status describes the current snapshot.
type Status struct {
	Size      int
	FetchedAt int64
}

// Cache serves token metadata from an in-process snapshot of the strict list.
// The snapshot is replaced whole; readers never see a partial map.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	store   storage.MetadataSnapshotStore
	logger  *zap.Logger

	refreshTimeout time.Duration

	snap  atomic.Pointer[domain.MetadataSnapshot]
	group singleflight.Group
}

// CacheOption configures Cache.
type CacheOption func(*Cache)

// WithTTL sets the snapshot lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithStore persists every refreshed snapshot and enables Warm.
func WithStore(store storage.MetadataSnapshotStore) CacheOption {
	return func(c *Cache) {
		c.store = store
	}
}

// WithRefreshTimeout bounds one shared refresh. It runs detached from the
// callers' contexts, so this is the only deadline it has.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates an empty cache. The first lookup triggers a fetch.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zap.NewNop(),

		refreshTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup answers up to min(maxBatch, MaxBatch) ids after ensuring the snapshot is fresh.
// maxBatch <= 0 means MaxBatch. Ids are trimmed and empty ones dropped.
func (c *Cache) Lookup(ctx context.Context, ids []string, maxBatch int) (*LookupResult, error) {
	snap, err := c.fresh(ctx)
	if err != nil {
		return nil, err
	}

	wanted := normalizeIDs(ids)
	if limit := batchLimit(maxBatch); len(wanted) > limit {
		wanted = wanted[:limit]
	}

	result := &LookupResult{
		Source:    c.fetcher.Source(),
		IDs:       wanted,
		Count:     len(wanted),
		Items:     make(map[string]*domain.AssetMetadata, len(wanted)),
		Size:      snap.Size(),
		FetchedAt: snap.FetchedAt,
	}
	for _, id := range wanted {
		m, ok := snap.Tokens[id]
		if !ok {
			result.Items[id] = nil
			continue
		}
		result.Found++
		result.Items[id] = &m
	}

	observability.RecordMetadataLookup(result.Found, result.Count-result.Found)
	return result, nil
}

// Status reports the size of the fresh snapshot, refreshing it first if needed.
func (c *Cache) Status(ctx context.Context) (*Status, error) {
	snap, err := c.fresh(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Size: snap.Size(), FetchedAt: snap.FetchedAt}, nil
}

// Warm adopts the latest stored snapshot if it is still within TTL.
// It is a no-op without a store.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	snap, err := c.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load stored snapshot: %w", err)
	}

	if c.expired(snap) {
		c.logger.Info("stored token list expired, not adopted",
			zap.Int64("fetched_at", snap.FetchedAt))
		return nil
	}

	c.snap.Store(snap)
	c.logger.Info("token list warmed from store",
		zap.Int("size", snap.Size()),
		zap.Int64("fetched_at", snap.FetchedAt))
	return nil
}

// fresh returns a valid snapshot, fetching a new one when missing or expired.
// Concurrent callers share one fetch.
func (c *Cache) fresh(ctx context.Context) (*domain.MetadataSnapshot, error) {
	if snap := c.snap.Load(); snap != nil && !c.expired(snap) {
		return snap, nil
	}

	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		// Another caller may have refreshed while we waited for the group.
		if snap := c.snap.Load(); snap != nil && !c.expired(snap) {
			return snap, nil
		}
		// One caller going away must not fail the others sharing this fetch.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return nil, domain.UpstreamError("token list refresh abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.MetadataSnapshot), nil
	}
}

func (c *Cache) refresh(ctx context.Context) (*domain.MetadataSnapshot, error) {
	tokens, err := c.fetcher.Fetch(ctx)
	if err != nil {
		observability.RecordMetadataRefresh(err, 0, 0)
		c.logger.Warn("token list refresh failed", zap.Error(err))
		if errors.Is(err, domain.ErrUpstream) {
			return nil, err
		}
		return nil, domain.UpstreamError("token list refresh failed", err)
	}

	snap := &domain.MetadataSnapshot{
		FetchedAt: c.now().UnixMilli(),
		Tokens:    tokens,
	}
	c.snap.Store(snap)

	observability.RecordMetadataRefresh(nil, snap.Size(), snap.FetchedAt)
	c.logger.Info("token list refreshed", zap.Int("size", snap.Size()))

	if c.store != nil {
		if err := c.store.Save(ctx, snap); err != nil {
			c.logger.Warn("persist token list snapshot", zap.Error(err))
		}
	}
	return snap, nil
}

// expired uses a strict comparison: a snapshot exactly TTL old is still served.
func (c *Cache) expired(snap *domain.MetadataSnapshot) bool {
	age := c.now().UnixMilli() - snap.FetchedAt
	return age > c.ttl.Milliseconds()
}

func batchLimit(maxBatch int) int {
	if maxBatch <= 0 || maxBatch > MaxBatch {
		return MaxBatch
	}
	return maxBatch
}

// ParseIDs splits a comma-separated id list.
func ParseIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalizeIDs(strings.Split(raw, ","))
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
