// Package session tracks per-wallet lending state between API calls.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/lending"
	"solana-lend-widget/internal/market"
)

// Session holds the latest market load and the lending account of one wallet.
type Session struct {
	ID        string
	Wallet    string
	CreatedAt time.Time

	mu         sync.Mutex
	generation uint64
	markets    *market.LoadResult
	client     lending.Client
	account    lending.Account

	createMu sync.Mutex // serializes account creation
}

// BeginRefresh starts a new load and returns its generation.
// Results of older generations are rejected by CommitLoad.
func (s *Session) BeginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// CommitLoad stores result if gen is still the latest refresh.
// It reports false when the result is stale and was dropped.
func (s *Session) CommitLoad(gen uint64, result *market.LoadResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.markets = result
	if result != nil && result.Client != nil {
		s.client = result.Client
	}
	return true
}

// Generation returns the current refresh generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Markets returns the last committed load, or nil.
func (s *Session) Markets() *market.LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markets
}

// Account returns the created account, or nil.
func (s *Session) Account() lending.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// CreateAccount creates the wallet's lending account once. Later calls return
// the existing account with created=false.
func (s *Session) CreateAccount(ctx context.Context) (account lending.Account, created bool, err error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.Lock()
	client, existing := s.client, s.account
	s.mu.Unlock()

	if existing != nil {
		return existing, false, nil
	}
	if client == nil {
		return nil, false, domain.PreconditionError("load markets first")
	}

	account, err = client.CreateAccount(ctx)
	if err != nil {
		return nil, false, domain.UpstreamError("create account failed", err)
	}

	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	return account, true, nil
}

// Registry owns one Session per wallet.
type Registry struct {
	mu       sync.Mutex
	byWallet map[string]*Session
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byWallet: make(map[string]*Session),
		now:      time.Now,
		logger:   logger,
	}
}

// Open returns the wallet's session, creating it if needed.
func (r *Registry) Open(wallet string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byWallet[wallet]; ok {
		return s
	}
	s := &Session{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		CreatedAt: r.now(),
	}
	r.byWallet[wallet] = s
	r.logger.Debug("session opened", zap.String("session_id", s.ID), zap.String("wallet", wallet))
	return s
}

// Get returns the wallet's session if one is open.
func (r *Registry) Get(wallet string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byWallet[wallet]
	return s, ok
}

// Close drops the wallet's session with its client and account.
func (r *Registry) Close(wallet string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byWallet[wallet]
	if !ok {
		return false
	}
	delete(r.byWallet, wallet)
	r.logger.Debug("session closed", zap.String("session_id", s.ID), zap.String("wallet", wallet))
	return true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byWallet)
}
