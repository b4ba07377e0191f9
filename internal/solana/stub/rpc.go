package stub

import (
	"context"
	"errors"
	"sync"

	"solana-lend-widget/internal/solana"
)

// ErrUnreachable is returned by a stub client marked as down.
var ErrUnreachable = errors.New("endpoint unreachable")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu        sync.Mutex
	Down      bool
	Blockhash string
	Slot      int64
	calls     []string
}

// NewRPCClient creates a new stub RPC client that answers every call.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Blockhash: "11111111111111111111111111111111",
		Slot:      1,
	}
}

// NewDownRPCClient creates a stub RPC client that fails every call.
func NewDownRPCClient() *RPCClient {
	c := NewRPCClient()
	c.Down = true
	return c
}

// GetLatestBlockhash returns the configured blockhash or ErrUnreachable.
func (c *RPCClient) GetLatestBlockhash(_ context.Context, commitment solana.Commitment) (*solana.Blockhash, error) {
	c.record("getLatestBlockhash:" + string(commitment))
	if c.Down {
		return nil, ErrUnreachable
	}
	return &solana.Blockhash{Slot: c.Slot, Blockhash: c.Blockhash}, nil
}

// GetSlot returns the configured slot or ErrUnreachable.
func (c *RPCClient) GetSlot(_ context.Context, commitment solana.Commitment) (int64, error) {
	c.record("getSlot:" + string(commitment))
	if c.Down {
		return 0, ErrUnreachable
	}
	return c.Slot, nil
}

// Calls returns the recorded calls in order, as "method:commitment".
func (c *RPCClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *RPCClient) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

var _ solana.RPCClient = (*RPCClient)(nil)
