package tokenlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/storage/memory"
)

// countingFetcher returns a fixed map and counts calls.
type countingFetcher struct {
	tokens map[string]domain.AssetMetadata
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context) (map[string]domain.AssetMetadata, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

func (f *countingFetcher) Source() string { return "test" }

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sym(s string) *string { return &s }

func TestCache_ScenarioM1M2M3(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"address":"M1","symbol":"USDC"},{"address":"M2"}]`))
	}))
	defer server.Close()

	cache := NewCache(NewHTTPFetcher(server.URL))

	status, err := cache.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.Size)

	result, err := cache.Lookup(context.Background(), []string{"M1", "M3"}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, []string{"M1", "M3"}, result.IDs)

	require.NotNil(t, result.Items["M1"])
	assert.Equal(t, "USDC", *result.Items["M1"].Symbol)
	assert.Nil(t, result.Items["M1"].Name)

	m3, present := result.Items["M3"]
	assert.True(t, present, "missing id must be reported")
	assert.Nil(t, m3)
}

func TestCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"M1": {}}}
	cache := NewCache(fetcher, WithClock(clock.Now))
	ctx := context.Background()

	_, err := cache.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// Exactly at TTL the snapshot is still valid.
	clock.Advance(DefaultTTL)
	_, err = cache.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	clock.Advance(time.Millisecond)
	_, err = cache.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	_, err = cache.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestCache_BatchCap(t *testing.T) {
	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"id-0": {}}}
	cache := NewCache(fetcher)

	ids := make([]string, 400)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	result, err := cache.Lookup(context.Background(), ids, 0)
	require.NoError(t, err)
	assert.Equal(t, 300, result.Count)
	assert.Len(t, result.Items, 300)
	assert.Equal(t, 1, result.Found)
	assert.NotContains(t, result.Items, "id-300")

	result, err = cache.Lookup(context.Background(), ids, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Count)

	result, err = cache.Lookup(context.Background(), ids, 1000)
	require.NoError(t, err)
	assert.Equal(t, 300, result.Count)
}

func TestCache_EmptyIDs(t *testing.T) {
	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"M1": {}}}
	cache := NewCache(fetcher)

	result, err := cache.Lookup(context.Background(), []string{" ", ""}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 1, result.Size)
}

func TestCache_RefreshFailure(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	cache := NewCache(fetcher)

	_, err := cache.Lookup(context.Background(), []string{"M1"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = cache.Status(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestCache_NoStaleServeAfterFailure(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"M1": {}}}
	cache := NewCache(fetcher, WithClock(clock.Now))
	ctx := context.Background()

	_, err := cache.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)

	fetcher.err = errors.New("down")
	clock.Advance(DefaultTTL + time.Second)

	_, err = cache.Lookup(ctx, []string{"M1"}, 0)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestCache_ConcurrentRefreshSharesFetch(t *testing.T) {
	fetcher := &countingFetcher{
		tokens: map[string]domain.AssetMetadata{"M1": {Symbol: sym("SOL")}},
		delay:  50 * time.Millisecond,
	}
	cache := NewCache(fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := cache.Lookup(context.Background(), []string{"M1"}, 0)
			assert.NoError(t, err)
			if err == nil {
				assert.Equal(t, 1, result.Found)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

// gatedFetcher blocks until released or its context ends.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func (f *gatedFetcher) Fetch(ctx context.Context) (map[string]domain.AssetMetadata, error) {
	f.calls.Add(1)
	close(f.started)
	select {
	case <-f.release:
	case <-ctx.Done():
		f.ctxErr.Store(ctx.Err())
		return nil, ctx.Err()
	}
	return map[string]domain.AssetMetadata{"M1": {Symbol: sym("SOL")}}, nil
}

func (f *gatedFetcher) Source() string { return "test" }

func TestCache_CancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(fetcher)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Lookup(ctxA, []string{"M1"}, 0)
		errA <- err
	}()
	<-fetcher.started

	type outcome struct {
		result *LookupResult
		err    error
	}
	resB := make(chan outcome, 1)
	go func() {
		result, err := cache.Lookup(context.Background(), []string{"M1"}, 0)
		resB <- outcome{result, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(fetcher.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 1, b.result.Found)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Nil(t, fetcher.ctxErr.Load())

	// The shared refresh completed, so later callers are served from the snapshot.
	result, err := cache.Lookup(context.Background(), []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestCache_RefreshTimeout(t *testing.T) {
	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(fetcher, WithRefreshTimeout(20*time.Millisecond))

	_, err := cache.Lookup(context.Background(), []string{"M1"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_PersistsAndWarms(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := memory.NewMetadataSnapshotStore()
	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"M1": {Symbol: sym("USDC")}}}
	ctx := context.Background()

	first := NewCache(fetcher, WithClock(clock.Now), WithStore(store))
	_, err := first.Status(ctx)
	require.NoError(t, err)

	stored, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Size())

	// A new process within TTL adopts the stored snapshot without fetching.
	clock.Advance(10 * time.Minute)
	second := NewCache(fetcher, WithClock(clock.Now), WithStore(store))
	require.NoError(t, second.Warm(ctx))

	result, err := second.Lookup(ctx, []string{"M1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestCache_WarmIgnoresExpiredSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := memory.NewMetadataSnapshotStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.MetadataSnapshot{
		FetchedAt: clock.Now().Add(-time.Hour).UnixMilli(),
		Tokens:    map[string]domain.AssetMetadata{"OLD": {}},
	}))

	fetcher := &countingFetcher{tokens: map[string]domain.AssetMetadata{"NEW": {}}}
	cache := NewCache(fetcher, WithClock(clock.Now), WithStore(store))
	require.NoError(t, cache.Warm(ctx))

	result, err := cache.Lookup(ctx, []string{"OLD", "NEW"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Nil(t, result.Items["OLD"])
	assert.NotNil(t, result.Items["NEW"])
}

func TestCache_WarmWithoutStore(t *testing.T) {
	cache := NewCache(&countingFetcher{})
	assert.NoError(t, cache.Warm(context.Background()))
}

func TestParseIDs(t *testing.T) {
	assert.Nil(t, ParseIDs(""))
	assert.Nil(t, ParseIDs("   "))
	assert.Equal(t, []string{"a", "b"}, ParseIDs(" a, ,b,"))
}
