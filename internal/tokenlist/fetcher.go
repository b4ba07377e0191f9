package tokenlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-lend-widget/internal/domain"
)

// DefaultURL is the public strict token list.
const DefaultURL = "https://token.jup.ag/strict"

// DefaultFetchTimeout bounds a single list download.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher downloads the full token list.
type Fetcher interface {
	// Fetch returns metadata keyed by mint. Entries without an address are dropped.
	Fetch(ctx context.Context) (map[string]domain.AssetMetadata, error)
	// Source names the upstream in lookup results.
	Source() string
}

// strictEntry is one element of the strict list array.
type strictEntry struct {
	Address  string    `json:"address"`
	Name     *string   `json:"name"`
	Symbol   *string   `json:"symbol"`
	Decimals *int      `json:"decimals"`
	LogoURI  *string   `json:"logoURI"`
	Tags     []*string `json:"tags"`
}

// HTTPFetcher fetches the strict list over HTTP.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// FetcherOption configures HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// NewHTTPFetcher creates a fetcher for listURL (DefaultURL when empty).
func NewHTTPFetcher(listURL string, opts ...FetcherOption) *HTTPFetcher {
	if listURL == "" {
		listURL = DefaultURL
	}
	f := &HTTPFetcher{
		url:    listURL,
		client: &http.Client{Timeout: DefaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Source returns host+path of the list URL, e.g. "token.jup.ag/strict".
func (f *HTTPFetcher) Source() string {
	u, err := url.Parse(f.url)
	if err != nil || u.Host == "" {
		return f.url
	}
	return u.Host + strings.TrimSuffix(u.Path, "/")
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (map[string]domain.AssetMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.UpstreamError(f.Source()+" failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, domain.UpstreamError(fmt.Sprintf("%s failed: %d", f.Source(), resp.StatusCode), nil)
	}

	var entries []strictEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, domain.UpstreamError("decode token list", err)
	}

	return buildMap(entries), nil
}

// buildMap keys entries by address, dropping the ones without one.
// A later duplicate address overwrites an earlier one.
func buildMap(entries []strictEntry) map[string]domain.AssetMetadata {
	tokens := make(map[string]domain.AssetMetadata, len(entries))
	for _, e := range entries {
		if e.Address == "" {
			continue
		}
		tokens[e.Address] = domain.AssetMetadata{
			Symbol:  e.Symbol,
			Name:    e.Name,
			LogoURI: e.LogoURI,
		}
	}
	return tokens
}
