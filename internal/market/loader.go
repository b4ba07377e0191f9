// Package market enumerates lending banks and derives their display rows.
package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/solana"
	"solana-lend-widget/internal/storage"
)

// StatusNoBanks is reported when the protocol returns an empty bank set.
const StatusNoBanks = "no banks found"

// LoadResult is the outcome of one market load.
type LoadResult struct {
	Records  []domain.MarketRecord
	Progress Progress
	Skipped  int
	Empty    bool
	Status   string
	LoadedAt int64 // Unix ms

	// Client is kept so the caller can create an account later.
	Client lending.Client
}

// Loader fetches the bank set and derives one MarketRecord per bank.
type Loader struct {
	factory lending.ClientFactory
	env     string
	history storage.MarketRateStore
	logger  *zap.Logger
	now     func() time.Time
}

// LoaderOption configures Loader.
type LoaderOption func(*Loader)

// WithRateHistory appends every loaded record to store.
func WithRateHistory(store storage.MarketRateStore) LoaderOption {
	return func(l *Loader) {
		l.history = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader creates a loader for the given lending environment.
func NewLoader(factory lending.ClientFactory, env string, opts ...LoaderOption) *Loader {
	l := &Loader{
		factory: factory,
		env:     env,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load enumerates the banks visible to wallet over conn. A bank that fails to
// derive is skipped; onProgress is called after every bank regardless.
func (l *Loader) Load(ctx context.Context, conn *solana.Connection, wallet string, onProgress func(Progress)) (*LoadResult, error) {
	if wallet == "" {
		return nil, domain.PreconditionError("wallet required")
	}
	if _, err := solana.ParseWalletKey(wallet); err != nil {
		return nil, domain.PreconditionError("invalid wallet")
	}
	if conn == nil {
		return nil, domain.PreconditionError("rpc connection required")
	}

	start := time.Now()
	logger := l.logger.With(zap.String("wallet", wallet), zap.String("rpc", conn.Endpoint()))

	client, err := l.factory.Fetch(ctx, l.env, conn, wallet)
	if err != nil {
		observability.RecordMarketLoad("error", 0, 0, time.Since(start).Seconds())
		return nil, domain.UpstreamError("fetch lending client", err)
	}

	collection := client.Banks()
	banks := collection.All()
	result := &LoadResult{
		Client:   client,
		LoadedAt: l.now().UnixMilli(),
		Records:  []domain.MarketRecord{},
	}

	if len(banks) == 0 {
		result.Empty = true
		result.Status = StatusNoBanks
		if onProgress != nil {
			onProgress(result.Progress)
		}
		observability.RecordMarketLoad("empty", 0, 0, time.Since(start).Seconds())
		logger.Info(StatusNoBanks)
		return result, nil
	}

	out := TransformEach(banks, func(b lending.Bank) (domain.MarketRecord, error) {
		return deriveRecord(ctx, b)
	}, func(p Progress) {
		result.Progress = p
		if onProgress != nil {
			onProgress(p)
		}
	})

	for _, e := range out.Errors {
		logger.Warn("skipping bank", zap.Int("index", e.Index), zap.Error(e.Err))
	}

	result.Records = out.Items
	result.Skipped = out.Failed
	result.Status = fmt.Sprintf("loaded %d banks", len(banks))

	observability.RecordMarketLoad("success", len(banks), out.Failed, time.Since(start).Seconds())
	logger.Info("markets loaded",
		zap.Int("banks", len(banks)),
		zap.Bool("keyed", collection.Keyed()),
		zap.Int("records", len(out.Items)),
		zap.Int("skipped", out.Failed))

	l.recordHistory(ctx, result, logger)
	return result, nil
}

// deriveRecord builds the display row for one bank.
func deriveRecord(ctx context.Context, b lending.Bank) (domain.MarketRecord, error) {
	addr, err := b.Address()
	if err != nil {
		return domain.MarketRecord{}, domain.ValidationError("bank address", err)
	}
	mint, err := b.Mint()
	if err != nil {
		return domain.MarketRecord{}, domain.ValidationError("bank mint", err)
	}
	rates, err := b.InterestRates(ctx)
	if err != nil {
		return domain.MarketRecord{}, domain.UpstreamError("interest rates for "+addr, err)
	}

	return domain.MarketRecord{
		Address:   addr,
		Mint:      mint,
		Symbol:    DisplaySymbol(b.TokenSymbol(), mint),
		LendAPR:   RatePercent(rates.Lending),
		BorrowAPR: RatePercent(rates.Borrowing),
	}, nil
}

// recordHistory appends the load to the rate history. Failures are logged only.
func (l *Loader) recordHistory(ctx context.Context, result *LoadResult, logger *zap.Logger) {
	if l.history == nil || len(result.Records) == 0 {
		return
	}

	samples := make([]*domain.MarketRateSample, 0, len(result.Records))
	for _, r := range result.Records {
		samples = append(samples, &domain.MarketRateSample{
			Bank:      r.Address,
			Mint:      r.Mint,
			Symbol:    r.Symbol,
			LendAPR:   r.LendAPR,
			BorrowAPR: r.BorrowAPR,
			SampledAt: result.LoadedAt,
		})
	}

	if err := l.history.InsertBulk(ctx, samples); err != nil {
		logger.Warn("record rate history", zap.Error(err))
		return
	}
	observability.RecordRateSamples(len(samples))
}

// History returns the rate samples of bank within [from, to] (Unix ms).
func (l *Loader) History(ctx context.Context, bank string, from, to int64) ([]*domain.MarketRateSample, error) {
	if l.history == nil {
		return nil, domain.ConfigError("rate history not configured")
	}
	if bank == "" {
		return nil, domain.PreconditionError("bank required")
	}
	if to < from {
		return nil, domain.PreconditionError("invalid time range")
	}
	samples, err := l.history.GetByBank(ctx, bank, from, to)
	if err != nil {
		return nil, fmt.Errorf("rate history: %w", err)
	}
	return samples, nil
}
