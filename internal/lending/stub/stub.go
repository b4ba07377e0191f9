// Package stub provides in-memory lending implementations for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/solana"
)

// ErrSDK is a generic SDK failure.
var ErrSDK = errors.New("sdk failure")

// Bank implements lending.Bank with fixed values.
type Bank struct {
	Addr      string
	MintAddr  string
	Symbol    string
	Lending   string
	Borrowing string

	AddrErr  error
	MintErr  error
	RatesErr error
}

// NewBank creates a bank without rates.
func NewBank(addr, mint, symbol string) *Bank {
	return &Bank{Addr: addr, MintAddr: mint, Symbol: symbol}
}

// WithRates sets raw rate strings and returns b.
func (b *Bank) WithRates(lend, borrow string) *Bank {
	b.Lending = lend
	b.Borrowing = borrow
	return b
}

func (b *Bank) Address() (string, error) {
	if b.AddrErr != nil {
		return "", b.AddrErr
	}
	return b.Addr, nil
}

func (b *Bank) Mint() (string, error) {
	if b.MintErr != nil {
		return "", b.MintErr
	}
	return b.MintAddr, nil
}

func (b *Bank) TokenSymbol() string { return b.Symbol }

func (b *Bank) InterestRates(_ context.Context) (lending.Rates, error) {
	if b.RatesErr != nil {
		return lending.Rates{}, b.RatesErr
	}
	return lending.Rates{Lending: b.Lending, Borrowing: b.Borrowing}, nil
}

// Call is one recorded account operation.
type Call struct {
	Kind   domain.ActionKind
	Amount decimal.Decimal
	Bank   string
}

// Account implements lending.Account and records every call.
type Account struct {
	mu    sync.Mutex
	Addr  string
	Err   error
	calls []Call
}

// NewAccount creates an account that succeeds every call.
func NewAccount(addr string) *Account {
	return &Account{Addr: addr}
}

func (a *Account) Address() string { return a.Addr }

func (a *Account) Deposit(_ context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.record(domain.ActionDeposit, amount, bank)
}

func (a *Account) Borrow(_ context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.record(domain.ActionBorrow, amount, bank)
}

func (a *Account) Repay(_ context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.record(domain.ActionRepay, amount, bank)
}

func (a *Account) Withdraw(_ context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.record(domain.ActionWithdraw, amount, bank)
}

// Calls returns the recorded calls in order.
func (a *Account) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

func (a *Account) record(kind domain.ActionKind, amount decimal.Decimal, bank string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Kind: kind, Amount: amount, Bank: bank})
	if a.Err != nil {
		return "", a.Err
	}
	return "sig-" + string(kind), nil
}

// Client implements lending.Client.
type Client struct {
	mu          sync.Mutex
	Collection  lending.BankCollection
	Account     *Account
	CreateErr   error
	createCalls int
}

// NewClient creates a client over the given banks.
func NewClient(banks lending.BankCollection) *Client {
	return &Client{Collection: banks, Account: NewAccount("account-1")}
}

func (c *Client) Banks() lending.BankCollection { return c.Collection }

func (c *Client) CreateAccount(_ context.Context) (lending.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	return c.Account, nil
}

// CreateCalls returns how many times CreateAccount was called.
func (c *Client) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// Factory implements lending.ClientFactory.
type Factory struct {
	mu     sync.Mutex
	Client *Client
	Err    error
	calls  int
	envs   []string
}

// NewFactory returns a factory that always yields client.
func NewFactory(client *Client) *Factory {
	return &Factory{Client: client}
}

func (f *Factory) Fetch(_ context.Context, env string, _ *solana.Connection, _ string) (lending.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.envs = append(f.envs, env)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Client, nil
}

// Calls returns how many times Fetch was called.
func (f *Factory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Envs returns the env of every Fetch call.
func (f *Factory) Envs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.envs...)
}

var (
	_ lending.Bank          = (*Bank)(nil)
	_ lending.Account       = (*Account)(nil)
	_ lending.Client        = (*Client)(nil)
	_ lending.ClientFactory = (*Factory)(nil)
)
