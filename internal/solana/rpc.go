package solana

import (
	"context"

	"solana-ledger-ops/internal/domain"
)

// Connection is the subset of the Solana JSON-RPC API used by the executors.
// Every call is a stateless round trip; implementations must be safe for
// concurrent use.
type Connection interface {
	// GetTokenAccountsByOwner lists token accounts of owner under programID.
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenHolding, error)

	// GetAccountInfo returns account state, or nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetBalance returns the lamport balance of address.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetLatestBlockhash returns a recent blockhash and its expiry height.
	GetLatestBlockhash(ctx context.Context, commitment domain.Commitment) (*Blockhash, error)

	// GetBlockHeight returns the current block height.
	GetBlockHeight(ctx context.Context, commitment domain.Commitment) (uint64, error)

	// SimulateTransaction dry-runs a base64 wire transaction without signature verification.
	SimulateTransaction(ctx context.Context, wireTx string) (*domain.SimulationReport, error)

	// SendTransaction submits a base64 wire transaction and returns its signature.
	SendTransaction(ctx context.Context, wireTx string, opts SendOptions) (string, error)

	// GetSignatureStatuses returns one status per signature; nil entries are unknown.
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)
}
