package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-ledger-ops/internal/domain"
)

// ValidateAddress checks that s is a base58-encoded 32-byte public key.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty address", domain.ErrInvalidInput)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: address %q: %v", domain.ErrInvalidInput, s, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: address %q decodes to %d bytes", domain.ErrInvalidInput, s, len(decoded))
	}
	return nil
}

// IsOnCurve reports whether a valid address is an ed25519 point, i.e. could
// belong to a keypair. Program-derived addresses are off-curve.
func IsOnCurve(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

// TokenAccount is the decoded prefix of an SPL token account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64
}

// DecodeTokenAccount parses base64 SPL token account data.
// Layout: mint(32) | owner(32) | amount(8, LE) | ...
func DecodeTokenAccount(data string) (*TokenAccount, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode token account data: %w", err)
	}
	if len(decoded) < 72 {
		return nil, fmt.Errorf("token account data too short: %d", len(decoded))
	}
	return &TokenAccount{
		Mint:   base58.Encode(decoded[:32]),
		Owner:  base58.Encode(decoded[32:64]),
		Amount: binary.LittleEndian.Uint64(decoded[64:72]),
	}, nil
}

// EncodeTokenAccount is the inverse of DecodeTokenAccount, padded to the
// 165-byte SPL account size. Used by stubs and tests.
func EncodeTokenAccount(mint, owner string, amount uint64) (string, error) {
	buf := make([]byte, 165)
	for i, addr := range []string{mint, owner} {
		raw, err := base58.Decode(addr)
		if err != nil || len(raw) != 32 {
			return "", fmt.Errorf("%w: address %q", domain.ErrInvalidInput, addr)
		}
		copy(buf[i*32:], raw)
	}
	binary.LittleEndian.PutUint64(buf[64:72], amount)
	buf[108] = 1 // initialized
	return base64.StdEncoding.EncodeToString(buf), nil
}
