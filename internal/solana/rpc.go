package solana

import "context"

// RPCClient defines the Solana RPC calls the widget relies on.
type RPCClient interface {
	// GetLatestBlockhash retrieves the latest blockhash. Used as the liveness probe.
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context, commitment Commitment) (int64, error)
}

var _ RPCClient = (*HTTPClient)(nil)
