package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/storage"
)

// MarketRateStore implements storage.MarketRateStore using ClickHouse.
type MarketRateStore struct {
	conn *Conn
}

// NewMarketRateStore creates a new MarketRateStore.
func NewMarketRateStore(conn *Conn) *MarketRateStore {
	return &MarketRateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketRateStore = (*MarketRateStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate (bank, sampled_at).
func (s *MarketRateStore) InsertBulk(ctx context.Context, samples []*domain.MarketRateSample) (err error) {
	if len(samples) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "market_rates_insert", time.Since(start).Seconds(), err)
	}()

	type key struct {
		bank      string
		sampledAt int64
	}
	seen := make(map[key]struct{}, len(samples))
	for _, r := range samples {
		if r == nil || r.Bank == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.Bank, r.SampledAt}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness.
	for _, r := range samples {
		exists, err := s.exists(ctx, r.Bank, r.SampledAt)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_rates (
			bank, mint, symbol, lend_apr, borrow_apr, sampled_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range samples {
		err = batch.Append(
			r.Bank, r.Mint, r.Symbol,
			r.LendAPR, r.BorrowAPR, uint64(r.SampledAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByBank retrieves samples for a bank within [start, end] (inclusive), ordered by sampled_at ASC.
func (s *MarketRateStore) GetByBank(ctx context.Context, bank string, start, end int64) ([]*domain.MarketRateSample, error) {
	query := `
		SELECT bank, mint, symbol, lend_apr, borrow_apr, sampled_at
		FROM market_rates
		WHERE bank = ? AND sampled_at >= ? AND sampled_at <= ?
		ORDER BY sampled_at ASC
	`

	rows, err := s.conn.Query(ctx, query, bank, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by bank: %w", err)
	}
	defer rows.Close()

	return scanMarketRates(rows)
}

func (s *MarketRateStore) exists(ctx context.Context, bank string, sampledAt int64) (bool, error) {
	query := `
		SELECT count(*) FROM market_rates
		WHERE bank = ? AND sampled_at = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, bank, uint64(sampledAt)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanMarketRates(rows chRows) ([]*domain.MarketRateSample, error) {
	var samples []*domain.MarketRateSample

	for rows.Next() {
		var r domain.MarketRateSample
		var sampledAt uint64

		err := rows.Scan(
			&r.Bank, &r.Mint, &r.Symbol,
			&r.LendAPR, &r.BorrowAPR, &sampledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market rate row: %w", err)
		}

		r.SampledAt = int64(sampledAt)
		samples = append(samples, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rate rows: %w", err)
	}

	return samples, nil
}
