// Package endpoint selects a live Solana RPC endpoint from an ordered candidate list.
package endpoint

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/solana"
)

// DefaultProbeTimeout bounds a single liveness probe.
const DefaultProbeTimeout = 5 * time.Second

// Dialer opens a connection bound to one endpoint.
type Dialer func(endpoint string) *solana.Connection

// ProbeResult is the outcome of one liveness probe.
type ProbeResult struct {
	Endpoint string
	Err      error
	Latency  time.Duration
}

// Resolution is the connection chosen by the resolver.
// Verified is false when every probe failed and the first candidate was returned unchecked.
type Resolution struct {
	Conn     *solana.Connection
	Endpoint string
	Verified bool
	Attempts []ProbeResult
}

// Resolver probes candidates strictly in order and returns the first that answers.
type Resolver struct {
	dial         Dialer
	probeTimeout time.Duration
	logger       *zap.Logger
}

// Option configures Resolver.
type Option func(*Resolver)

// WithDialer overrides how connections are opened.
func WithDialer(d Dialer) Option {
	return func(r *Resolver) {
		r.dial = d
	}
}

// WithProbeTimeout sets the per-probe deadline. Zero disables it.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.probeTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver. The default dialer makes one attempt per probe.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		probeTimeout: DefaultProbeTimeout,
		logger:       zap.NewNop(),
	}
	r.dial = func(endpoint string) *solana.Connection {
		return solana.Dial(endpoint, solana.CommitmentConfirmed, solana.WithMaxRetries(0))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a connection to the first candidate that passes a liveness probe.
// If none does, it returns a connection bound to the first candidate with Verified=false.
// It fails only when the candidate list is empty.
func (r *Resolver) Resolve(ctx context.Context, candidates []string) (*Resolution, error) {
	candidates = Dedupe(candidates)
	if len(candidates) == 0 {
		return nil, domain.ConfigError("no RPC endpoints configured")
	}

	attempts := make([]ProbeResult, 0, len(candidates))
	for i, ep := range candidates {
		conn := r.dial(ep)
		res := r.probe(ctx, conn)
		attempts = append(attempts, res)
		observability.RecordProbe(res.Err)

		if res.Err == nil {
			r.logger.Info("rpc endpoint selected",
				zap.String("endpoint", ep),
				zap.Int("position", i),
				zap.Duration("latency", res.Latency))
			observability.RecordResolution(strconv.Itoa(i), true)
			return &Resolution{Conn: conn, Endpoint: ep, Verified: true, Attempts: attempts}, nil
		}

		r.logger.Warn("rpc endpoint probe failed",
			zap.String("endpoint", ep),
			zap.Int("position", i),
			zap.Error(res.Err))

		if ctx.Err() != nil {
			break
		}
	}

	// Every probe failed: hand back the primary anyway so callers can retry on it later.
	first := candidates[0]
	r.logger.Warn("no rpc endpoint answered, using unverified primary",
		zap.String("endpoint", first),
		zap.Int("candidates", len(candidates)))
	observability.RecordResolution("fallback", false)

	return &Resolution{Conn: r.dial(first), Endpoint: first, Verified: false, Attempts: attempts}, nil
}

func (r *Resolver) probe(ctx context.Context, conn *solana.Connection) ProbeResult {
	if r.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()
	}

	start := time.Now()
	err := conn.Ping(ctx)
	return ProbeResult{Endpoint: conn.Endpoint(), Err: err, Latency: time.Since(start)}
}

// Candidates builds the ordered candidate list: primary first, then fallbacks.
func Candidates(primary string, fallbacks []string) []string {
	list := make([]string, 0, len(fallbacks)+1)
	list = append(list, primary)
	list = append(list, fallbacks...)
	return Dedupe(list)
}

// Dedupe trims entries, drops empties and removes duplicates, keeping first occurrence order.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
