// Package action validates and submits user lending operations.
package action

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/observability"
)

// Result describes a submitted operation.
type Result struct {
	Kind      domain.ActionKind `json:"kind"`
	Bank      string            `json:"bank"`
	Amount    decimal.Decimal   `json:"amount"`
	Signature string            `json:"signature"`
}

// Dispatcher submits one signed operation per call. It never retries:
// resubmitting creates a new transaction.
type Dispatcher struct {
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Dispatch validates the request and invokes the account method for kind.
func (d *Dispatcher) Dispatch(ctx context.Context, account lending.Account, kind domain.ActionKind, bank string, amount decimal.Decimal) (*Result, error) {
	if account == nil {
		return nil, domain.PreconditionError("create account first")
	}
	if !amount.IsPositive() {
		return nil, domain.PreconditionError("invalid amount")
	}
	if !kind.IsValid() {
		return nil, domain.PreconditionError("unknown action")
	}
	if strings.TrimSpace(bank) == "" {
		return nil, domain.PreconditionError("bank required")
	}

	logger := d.logger.With(
		zap.String("kind", kind.String()),
		zap.String("bank", bank),
		zap.String("amount", amount.String()),
		zap.String("account", account.Address()),
	)

	sig, err := lending.Submit(ctx, account, kind, amount, bank)
	observability.RecordAction(kind.String(), err)
	if err != nil {
		logger.Warn("action failed", zap.Error(err))
		return nil, domain.UpstreamError(kind.String()+" failed", err)
	}

	logger.Info("action sent", zap.String("signature", sig))
	return &Result{Kind: kind, Bank: bank, Amount: amount, Signature: sig}, nil
}

// ParseAmount parses user input, accepting "," as the decimal separator.
// Non-numeric or non-positive input is a precondition failure.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.Replace(strings.TrimSpace(text), ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, domain.PreconditionError("invalid amount")
	}
	return d, nil
}
