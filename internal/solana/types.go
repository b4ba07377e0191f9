package solana

// Commitment is the confirmation level requested from the RPC node.
type Commitment string

// CommitmentConfirmed is the level used for probes and status reads.
const CommitmentConfirmed Commitment = "confirmed"

// Blockhash from getLatestBlockhash.
type Blockhash struct {
	Slot                 int64
	Blockhash            string
	LastValidBlockHeight int64
}
