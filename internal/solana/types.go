package solana

import "solana-ledger-ops/internal/domain"

// TokenHolding is one entry of getTokenAccountsByOwner (jsonParsed).
// Fields are kept raw so callers decide how to treat malformed records.
type TokenHolding struct {
	Address   string
	ProgramID string // account owner, i.e. the token program
	Lamports  uint64
	Mint      string
	Owner     string
	Amount    string // raw token amount as decimal string
	State     string // initialized, frozen
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Blockhash is a recent blockhash and the last block height at which a
// transaction referencing it can be accepted.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus domain.Commitment
}

// SendOptions for sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment domain.Commitment
	MaxRetries          *uint // relay-side rebroadcast attempts
}
