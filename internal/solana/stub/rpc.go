// Package stub provides an in-memory solana.Connection for tests.
package stub

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/solana"
)

// Method names used as call-counter keys.
const (
	MethodGetTokenAccountsByOwner = "getTokenAccountsByOwner"
	MethodGetAccountInfo          = "getAccountInfo"
	MethodGetBalance              = "getBalance"
	MethodGetLatestBlockhash      = "getLatestBlockhash"
	MethodGetBlockHeight          = "getBlockHeight"
	MethodSimulateTransaction     = "simulateTransaction"
	MethodSendTransaction         = "sendTransaction"
	MethodGetSignatureStatuses    = "getSignatureStatuses"
)

// DefaultBlockhash is a valid base58 hash served when none is configured.
const DefaultBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"

// Connection implements solana.Connection in memory. Hooks, when set, take
// precedence over the stored state. Safe for concurrent use.
type Connection struct {
	mu sync.Mutex

	holdings map[string][]solana.TokenHolding // owner -> holdings
	accounts map[string]*solana.AccountInfo
	balances map[string][]uint64 // successive reads; the last value sticks
	sent     map[string]string   // signature -> wire tx
	calls    map[string]int

	blockHeight          uint64
	lastValidBlockHeight uint64

	// BlockHeightStep is added to the block height after each GetBlockHeight.
	BlockHeightStep uint64

	// Errors forces a method (by name) to fail.
	Errors map[string]error

	// SimulateFunc overrides simulation. Default: success with no logs.
	SimulateFunc func(wireTx string) (*domain.SimulationReport, error)

	// SendFunc overrides submission. attempt counts from 1 across all sends.
	SendFunc func(attempt int, wireTx string) (string, error)

	// StatusFunc overrides status lookup for a sent signature. poll counts
	// from 1 per signature. Default: finalized without error.
	StatusFunc func(signature string, poll int) *solana.SignatureStatus

	polls map[string]int
	sends []string
}

// Compile-time interface check.
var _ solana.Connection = (*Connection)(nil)

// NewConnection creates an empty stub connection.
func NewConnection() *Connection {
	return &Connection{
		holdings:             make(map[string][]solana.TokenHolding),
		accounts:             make(map[string]*solana.AccountInfo),
		balances:             make(map[string][]uint64),
		sent:                 make(map[string]string),
		calls:                make(map[string]int),
		polls:                make(map[string]int),
		Errors:               make(map[string]error),
		blockHeight:          100,
		lastValidBlockHeight: 250,
	}
}

// AddHolding registers a token holding for owner.
func (c *Connection) AddHolding(owner string, h solana.TokenHolding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdings[owner] = append(c.holdings[owner], h)
}

// SetAccount stores account state. A nil info removes the account.
func (c *Connection) SetAccount(address string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info == nil {
		delete(c.accounts, address)
		return
	}
	c.accounts[address] = info
}

// SetTokenAccount stores an SPL token account owned by programID.
func (c *Connection) SetTokenAccount(address, programID, mint, owner string, amount, lamports uint64) error {
	data, err := solana.EncodeTokenAccount(mint, owner, amount)
	if err != nil {
		return err
	}
	c.SetAccount(address, &solana.AccountInfo{Lamports: lamports, Owner: programID, Data: data})
	return nil
}

// SetBalances sets successive GetBalance results for address.
func (c *Connection) SetBalances(address string, values ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = append([]uint64(nil), values...)
}

// SetBlockHeights sets the current block height and the expiry height
// returned with every blockhash.
func (c *Connection) SetBlockHeights(current, lastValid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockHeight = current
	c.lastValidBlockHeight = lastValid
}

// Calls returns how many times method was invoked.
func (c *Connection) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Sent returns the wire transactions accepted by SendTransaction, in order.
func (c *Connection) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sends...)
}

// enter counts the call and returns the forced error, if any. Caller holds mu.
func (c *Connection) enter(method string) error {
	c.calls[method]++
	return c.Errors[method]
}

// GetTokenAccountsByOwner returns holdings of owner under programID.
func (c *Connection) GetTokenAccountsByOwner(_ context.Context, owner, programID string) ([]solana.TokenHolding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(MethodGetTokenAccountsByOwner); err != nil {
		return nil, err
	}

	var out []solana.TokenHolding
	for _, h := range c.holdings[owner] {
		if h.ProgramID == programID {
			out = append(out, h)
		}
	}
	return out, nil
}

// GetAccountInfo returns a copy of the stored account, or nil.
func (c *Connection) GetAccountInfo(_ context.Context, address string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(MethodGetAccountInfo); err != nil {
		return nil, err
	}

	info, ok := c.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetBalance pops the next configured balance of address.
func (c *Connection) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(MethodGetBalance); err != nil {
		return 0, err
	}

	seq := c.balances[address]
	if len(seq) == 0 {
		return 0, nil
	}
	v := seq[0]
	if len(seq) > 1 {
		c.balances[address] = seq[1:]
	}
	return v, nil
}

// GetLatestBlockhash returns DefaultBlockhash with the configured expiry.
func (c *Connection) GetLatestBlockhash(_ context.Context, _ domain.Commitment) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(MethodGetLatestBlockhash); err != nil {
		return nil, err
	}
	return &solana.Blockhash{Hash: DefaultBlockhash, LastValidBlockHeight: c.lastValidBlockHeight}, nil
}

// GetBlockHeight returns the current height, then advances it by BlockHeightStep.
func (c *Connection) GetBlockHeight(_ context.Context, _ domain.Commitment) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(MethodGetBlockHeight); err != nil {
		return 0, err
	}
	h := c.blockHeight
	c.blockHeight += c.BlockHeightStep
	return h, nil
}

// SimulateTransaction runs SimulateFunc or reports success.
func (c *Connection) SimulateTransaction(_ context.Context, wireTx string) (*domain.SimulationReport, error) {
	c.mu.Lock()
	err := c.enter(MethodSimulateTransaction)
	fn := c.SimulateFunc
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(wireTx)
	}
	return &domain.SimulationReport{UnitsConsumed: 150}, nil
}

// SendTransaction runs SendFunc or returns the transaction's first signature.
func (c *Connection) SendTransaction(_ context.Context, wireTx string, _ solana.SendOptions) (string, error) {
	c.mu.Lock()
	err := c.enter(MethodSendTransaction)
	attempt := c.calls[MethodSendTransaction]
	fn := c.SendFunc
	c.mu.Unlock()

	if err != nil {
		return "", err
	}

	var sig string
	if fn != nil {
		sig, err = fn(attempt, wireTx)
	} else {
		sig, err = FirstSignature(wireTx)
	}
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.sent[sig] = wireTx
	c.sends = append(c.sends, wireTx)
	c.mu.Unlock()
	return sig, nil
}

// GetSignatureStatuses reports sent signatures through StatusFunc or as
// finalized; unknown signatures yield nil entries.
func (c *Connection) GetSignatureStatuses(_ context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	if err := c.enter(MethodGetSignatureStatuses); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	fn := c.StatusFunc
	out := make([]*solana.SignatureStatus, len(signatures))
	polls := make([]int, len(signatures))
	known := make([]bool, len(signatures))
	for i, sig := range signatures {
		c.polls[sig]++
		polls[i] = c.polls[sig]
		_, known[i] = c.sent[sig]
	}
	c.mu.Unlock()

	for i, sig := range signatures {
		switch {
		case fn != nil:
			out[i] = fn(sig, polls[i])
		case known[i]:
			out[i] = &solana.SignatureStatus{Slot: 1, ConfirmationStatus: domain.CommitmentFinalized}
		}
	}
	return out, nil
}

// FirstSignature extracts the fee payer signature from a base64 wire
// transaction: a compact-u16 count followed by 64-byte signatures.
func FirstSignature(wireTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(wireTx)
	if err != nil {
		return "", fmt.Errorf("decode wire tx: %w", err)
	}
	if len(raw) < 65 || raw[0] == 0 {
		return "", fmt.Errorf("wire tx carries no signature")
	}
	return base58.Encode(raw[1:65]), nil
}
