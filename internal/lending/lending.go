// Package lending defines the boundary to the lending protocol SDK.
// Transaction building and signing live behind these interfaces.
package lending

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/solana"
)

// Rates holds the raw decimal rate strings reported by the SDK.
// An empty string means the SDK did not report that side.
type Rates struct {
	Lending   string
	Borrowing string
}

// Bank is one market as exposed by the SDK. Address and Mint can fail
// when the SDK cannot serialize the underlying key.
type Bank interface {
	Address() (string, error)
	Mint() (string, error)
	TokenSymbol() string
	InterestRates(ctx context.Context) (Rates, error)
}

// Client is a protocol client bound to one wallet and connection.
type Client interface {
	Banks() BankCollection
	CreateAccount(ctx context.Context) (Account, error)
}

// Account is a user's on-chain lending position. Each call submits one signed
// transaction and returns its signature.
type Account interface {
	Address() string
	Deposit(ctx context.Context, amount decimal.Decimal, bank string) (string, error)
	Borrow(ctx context.Context, amount decimal.Decimal, bank string) (string, error)
	Repay(ctx context.Context, amount decimal.Decimal, bank string) (string, error)
	Withdraw(ctx context.Context, amount decimal.Decimal, bank string) (string, error)
}

// ClientFactory fetches a client for env ("production" or "dev").
type ClientFactory interface {
	Fetch(ctx context.Context, env string, conn *solana.Connection, wallet string) (Client, error)
}

// Submit calls the Account method matching kind.
func Submit(ctx context.Context, account Account, kind domain.ActionKind, amount decimal.Decimal, bank string) (string, error) {
	switch kind {
	case domain.ActionDeposit:
		return account.Deposit(ctx, amount, bank)
	case domain.ActionBorrow:
		return account.Borrow(ctx, amount, bank)
	case domain.ActionRepay:
		return account.Repay(ctx, amount, bank)
	case domain.ActionWithdraw:
		return account.Withdraw(ctx, amount, bank)
	}
	return "", domain.PreconditionError("unknown action")
}
