package market

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	lendingstub "solana-lend-widget/internal/lending/stub"
	"solana-lend-widget/internal/solana"
	rpcstub "solana-lend-widget/internal/solana/stub"
	"solana-lend-widget/internal/storage/memory"
)

var testWallet = base58.Encode(edwards25519.NewGeneratorPoint().Bytes())

func testConn() *solana.Connection {
	return solana.NewConnection("https://rpc.example.com", "", rpcstub.NewRPCClient())
}

func tenBanks() []lending.Bank {
	banks := make([]lending.Bank, 10)
	for i := range banks {
		banks[i] = lendingstub.NewBank(
			fmt.Sprintf("Bank%02d", i+1),
			fmt.Sprintf("Mint%02dxxxxxxxxxxxxxxxxxxxxxxxxxx", i+1),
			fmt.Sprintf("TK%d", i+1),
		).WithRates("0.05", "0.08")
	}
	return banks
}

func TestLoader_SkipsFailingBankAndReportsProgress(t *testing.T) {
	banks := tenBanks()
	banks[3].(*lendingstub.Bank).RatesErr = errors.New("malformed rate")

	factory := lendingstub.NewFactory(lendingstub.NewClient(lending.ListBanks(banks...)))
	loader := NewLoader(factory, "production")

	var seen []Progress
	result, err := loader.Load(context.Background(), testConn(), testWallet, func(p Progress) {
		seen = append(seen, p)
	})
	require.NoError(t, err)

	assert.Len(t, result.Records, 9)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, Progress{Processed: 10, Total: 10}, result.Progress)
	assert.Equal(t, "loaded 10 banks", result.Status)

	require.Len(t, seen, 10)
	for i, p := range seen {
		assert.Equal(t, Progress{Processed: i + 1, Total: 10}, p)
	}

	for _, r := range result.Records {
		assert.NotEqual(t, "Bank04", r.Address)
	}
	assert.Equal(t, "Bank05", result.Records[3].Address)
}

func TestLoader_PreservesEnumerationOrder(t *testing.T) {
	m := map[string]lending.Bank{
		"B": lendingstub.NewBank("B", "MintB", "BBB"),
		"A": lendingstub.NewBank("A", "MintA", "AAA"),
		"C": lendingstub.NewBank("C", "MintC", "CCC"),
	}
	client := lendingstub.NewClient(lending.KeyedBanks([]string{"C", "A", "B"}, m))
	loader := NewLoader(lendingstub.NewFactory(client), "production")

	result, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)

	var order []string
	for _, r := range result.Records {
		order = append(order, r.Address)
	}
	assert.Equal(t, []string{"C", "A", "B"}, order)
	assert.Same(t, client, result.Client)
}

func TestLoader_SymbolFallback(t *testing.T) {
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	banks := lending.ListBanks(
		lendingstub.NewBank("B1", mint, ""),
		lendingstub.NewBank("B2", mint, "  —  "),
		lendingstub.NewBank("B3", mint, " USDC "),
	)
	loader := NewLoader(lendingstub.NewFactory(lendingstub.NewClient(banks)), "production")

	result, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, "UNKNOWN (EPjF...Dt1v)", result.Records[0].Symbol)
	assert.Equal(t, "UNKNOWN (EPjF...Dt1v)", result.Records[1].Symbol)
	assert.Equal(t, "USDC", result.Records[2].Symbol)
}

func TestLoader_RatesNeverDefaultToZero(t *testing.T) {
	banks := lending.ListBanks(
		lendingstub.NewBank("B1", "M1", "A").WithRates("0.0523", "0"),
		lendingstub.NewBank("B2", "M2", "B").WithRates("", "not-a-number"),
	)
	loader := NewLoader(lendingstub.NewFactory(lendingstub.NewClient(banks)), "production")

	result, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	require.NotNil(t, result.Records[0].LendAPR)
	assert.InDelta(t, 5.23, *result.Records[0].LendAPR, 1e-9)
	require.NotNil(t, result.Records[0].BorrowAPR)
	assert.Equal(t, 0.0, *result.Records[0].BorrowAPR)

	assert.Nil(t, result.Records[1].LendAPR)
	assert.Nil(t, result.Records[1].BorrowAPR)
}

func TestLoader_SkipsAddressAndMintErrors(t *testing.T) {
	bad1 := lendingstub.NewBank("B1", "M1", "A")
	bad1.AddrErr = errors.New("cannot serialize")
	bad2 := lendingstub.NewBank("B2", "M2", "B")
	bad2.MintErr = errors.New("cannot serialize")

	banks := lending.ListBanks(bad1, bad2, lendingstub.NewBank("B3", "M3", "C"))
	loader := NewLoader(lendingstub.NewFactory(lendingstub.NewClient(banks)), "production")

	result, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "B3", result.Records[0].Address)
	assert.Equal(t, 2, result.Skipped)
}

func TestLoader_NoBanks(t *testing.T) {
	loader := NewLoader(lendingstub.NewFactory(lendingstub.NewClient(lending.ListBanks())), "production")

	result, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Equal(t, StatusNoBanks, result.Status)
	assert.Empty(t, result.Records)
}

func TestLoader_WalletPreconditions(t *testing.T) {
	factory := lendingstub.NewFactory(lendingstub.NewClient(lending.ListBanks()))
	loader := NewLoader(factory, "production")

	_, err := loader.Load(context.Background(), testConn(), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Equal(t, "wallet required", err.Error())

	_, err = loader.Load(context.Background(), testConn(), "not-a-wallet", nil)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Equal(t, "invalid wallet", err.Error())

	assert.Equal(t, 0, factory.Calls(), "no I/O before preconditions pass")
}

func TestLoader_FactoryError(t *testing.T) {
	factory := lendingstub.NewFactory(nil)
	factory.Err = errors.New("sidecar down")
	loader := NewLoader(factory, "dev")

	_, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, []string{"dev"}, factory.Envs())
}

func TestLoader_RecordsHistory(t *testing.T) {
	store := memory.NewMarketRateStore()
	now := time.UnixMilli(1_700_000_000_000)
	banks := lending.ListBanks(
		lendingstub.NewBank("B1", "M1", "A").WithRates("0.01", "0.02"),
		lendingstub.NewBank("B2", "M2", "B"),
	)
	loader := NewLoader(
		lendingstub.NewFactory(lendingstub.NewClient(banks)),
		"production",
		WithRateHistory(store),
		WithClock(func() time.Time { return now }),
	)

	_, err := loader.Load(context.Background(), testConn(), testWallet, nil)
	require.NoError(t, err)

	samples, err := loader.History(context.Background(), "B1", 0, now.UnixMilli())
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, now.UnixMilli(), samples[0].SampledAt)
	require.NotNil(t, samples[0].LendAPR)
	assert.InDelta(t, 1.0, *samples[0].LendAPR, 1e-9)

	_, err = loader.History(context.Background(), "B1", 10, 5)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestLoader_HistoryNotConfigured(t *testing.T) {
	loader := NewLoader(lendingstub.NewFactory(nil), "production")

	_, err := loader.History(context.Background(), "B1", 0, 1)
	assert.ErrorIs(t, err, domain.ErrConfig)
}
