package action

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending/stub"
)

func TestDispatch_NonPositiveAmount(t *testing.T) {
	d := NewDispatcher(nil)
	account := stub.NewAccount("acc")

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := d.Dispatch(context.Background(), account, domain.ActionDeposit, "B1", amount)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPrecondition)
		assert.Equal(t, "invalid amount", err.Error())
	}

	assert.Empty(t, account.Calls())
}

func TestDispatch_ExactlyOneCall(t *testing.T) {
	d := NewDispatcher(nil)
	amount := decimal.RequireFromString("1.5")

	for _, kind := range []domain.ActionKind{
		domain.ActionDeposit, domain.ActionBorrow, domain.ActionRepay, domain.ActionWithdraw,
	} {
		account := stub.NewAccount("acc")

		result, err := d.Dispatch(context.Background(), account, kind, "B1", amount)
		require.NoError(t, err)
		assert.Equal(t, "sig-"+kind.String(), result.Signature)

		calls := account.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, kind, calls[0].Kind)
		assert.Equal(t, "B1", calls[0].Bank)
		assert.True(t, amount.Equal(calls[0].Amount))
	}
}

func TestDispatch_NoAccount(t *testing.T) {
	_, err := NewDispatcher(nil).Dispatch(context.Background(), nil, domain.ActionBorrow, "B1", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Equal(t, "create account first", err.Error())
}

func TestDispatch_UnknownKind(t *testing.T) {
	account := stub.NewAccount("acc")
	_, err := NewDispatcher(nil).Dispatch(context.Background(), account, domain.ActionKind("stake"), "B1", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Equal(t, "unknown action", err.Error())
	assert.Empty(t, account.Calls())
}

func TestDispatch_UpstreamErrorPropagated(t *testing.T) {
	account := stub.NewAccount("acc")
	account.Err = errors.New("insufficient collateral")

	_, err := NewDispatcher(nil).Dispatch(context.Background(), account, domain.ActionBorrow, "B1", decimal.NewFromInt(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "insufficient collateral")
	assert.Len(t, account.Calls(), 1, "no retry")
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("1,5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	d, err = ParseAmount(" 0.25 ")
	require.NoError(t, err)
	assert.Equal(t, "0.25", d.String())

	for _, in := range []string{"", "abc", "0", "-5", "0,0", "1,2,3"} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, domain.ErrPrecondition, "input %q", in)
	}
}
