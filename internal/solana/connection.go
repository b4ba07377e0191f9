package solana

import "context"

// Connection is an RPC handle bound to exactly one endpoint and commitment.
// It holds no failover state; picking a live endpoint is the resolver's job.
type Connection struct {
	endpoint   string
	commitment Commitment
	rpc        RPCClient
}

// NewConnection binds an RPC client to an endpoint. An empty commitment defaults to confirmed.
func NewConnection(endpoint string, commitment Commitment, rpc RPCClient) *Connection {
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	return &Connection{endpoint: endpoint, commitment: commitment, rpc: rpc}
}

// Dial creates a Connection backed by an HTTPClient.
func Dial(endpoint string, commitment Commitment, opts ...ClientOption) *Connection {
	return NewConnection(endpoint, commitment, NewHTTPClient(endpoint, opts...))
}

// Endpoint returns the URI the connection is bound to.
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// Commitment returns the default confirmation level.
func (c *Connection) Commitment() Commitment {
	return c.commitment
}

// RPC returns the underlying client.
func (c *Connection) RPC() RPCClient {
	return c.rpc
}

// Ping fetches the latest blockhash at the connection's commitment.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	return err
}
