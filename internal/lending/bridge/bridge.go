// Package bridge talks to the lending SDK sidecar over HTTP JSON.
// The sidecar owns the protocol SDK and the wallet signer.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/solana"
)

const (
	// DefaultTimeout bounds a single sidecar request.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxResponseBytes caps a sidecar response body.
	DefaultMaxResponseBytes = 8 << 20
)

// Factory implements lending.ClientFactory against the sidecar.
type Factory struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
}

// Option configures Factory.
type Option func(*Factory)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) {
		f.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Factory) {
		f.client = client
	}
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(f *Factory) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFactory creates a factory for the sidecar at baseURL.
func NewFactory(baseURL string, opts ...Option) *Factory {
	f := &Factory{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch loads the bank set for wallet and returns a client bound to it.
func (f *Factory) Fetch(ctx context.Context, env string, conn *solana.Connection, wallet string) (lending.Client, error) {
	q := url.Values{}
	q.Set("wallet", wallet)
	q.Set("rpc", conn.Endpoint())

	var raw json.RawMessage
	if err := f.do(ctx, http.MethodGet, f.path(env, "banks")+"?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch banks: %w", err)
	}

	banks, err := decodeBanks(raw)
	if err != nil {
		return nil, fmt.Errorf("decode banks: %w", err)
	}

	return &Client{
		factory: f,
		env:     env,
		wallet:  wallet,
		rpc:     conn.Endpoint(),
		banks:   banks,
	}, nil
}

func (f *Factory) path(env string, parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "v1", url.PathEscape(env))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return f.baseURL + "/" + strings.Join(escaped, "/")
}

// errorBody is the sidecar's failure payload.
type errorBody struct {
	Error string `json:"error"`
}

// do performs one request. Side-effecting calls are never retried.
func (f *Factory) do(ctx context.Context, method, target string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > f.maxBytes {
		return fmt.Errorf("response exceeds %d bytes", f.maxBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, eb.Error)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Client implements lending.Client for one wallet.
type Client struct {
	factory *Factory
	env     string
	wallet  string
	rpc     string
	banks   lending.BankCollection
}

// Banks returns the bank set fetched with the client.
func (c *Client) Banks() lending.BankCollection {
	return c.banks
}

type createAccountRequest struct {
	Wallet string `json:"wallet"`
	RPC    string `json:"rpc"`
}

type createAccountResponse struct {
	Account string `json:"account"`
}

// CreateAccount asks the sidecar to create a lending account for the wallet.
func (c *Client) CreateAccount(ctx context.Context) (lending.Account, error) {
	var resp createAccountResponse
	err := c.factory.do(ctx, http.MethodPost, c.factory.path(c.env, "accounts"),
		createAccountRequest{Wallet: c.wallet, RPC: c.rpc}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if resp.Account == "" {
		return nil, fmt.Errorf("create account: empty account address")
	}
	return &Account{factory: c.factory, env: c.env, address: resp.Account}, nil
}

// Account implements lending.Account through the sidecar.
type Account struct {
	factory *Factory
	env     string
	address string
}

type actionRequest struct {
	Amount string `json:"amount"`
	Bank   string `json:"bank"`
}

type actionResponse struct {
	Signature string `json:"signature"`
}

// Address returns the account address.
func (a *Account) Address() string {
	return a.address
}

func (a *Account) Deposit(ctx context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.submit(ctx, domain.ActionDeposit, amount, bank)
}

func (a *Account) Borrow(ctx context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.submit(ctx, domain.ActionBorrow, amount, bank)
}

func (a *Account) Repay(ctx context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.submit(ctx, domain.ActionRepay, amount, bank)
}

func (a *Account) Withdraw(ctx context.Context, amount decimal.Decimal, bank string) (string, error) {
	return a.submit(ctx, domain.ActionWithdraw, amount, bank)
}

func (a *Account) submit(ctx context.Context, kind domain.ActionKind, amount decimal.Decimal, bank string) (string, error) {
	var resp actionResponse
	err := a.factory.do(ctx, http.MethodPost, a.factory.path(a.env, "accounts", a.address, kind.String()),
		actionRequest{Amount: amount.String(), Bank: bank}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	return resp.Signature, nil
}

var (
	_ lending.ClientFactory = (*Factory)(nil)
	_ lending.Client        = (*Client)(nil)
	_ lending.Account       = (*Account)(nil)
)
