// Package wallet provides the signing capability owned by a Service.
package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"solana-ledger-ops/internal/domain"
)

// Signer signs transaction messages on behalf of one wallet. Implementations
// must be safe for concurrent use.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// Keypair is an in-memory ed25519 key.
type Keypair struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// Compile-time interface check.
var _ Signer = (*Keypair)(nil)

// NewKeypair wraps a 64-byte private key.
func NewKeypair(key solana.PrivateKey) (*Keypair, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: private key must be 64 bytes, got %d", domain.ErrSigner, len(key))
	}
	return &Keypair{key: key, pub: key.PublicKey()}, nil
}

// NewRandomKeypair generates a fresh key.
func NewRandomKeypair() (*Keypair, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", domain.ErrSigner, err)
	}
	return NewKeypair(key)
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.pub
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) (solana.Signature, error) {
	sig, err := k.key.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", domain.ErrSigner, err)
	}
	return sig, nil
}

// LoadKeypair reads key material from path. Accepted formats:
// a solana-keygen JSON byte array, a JSON string holding a base58 key,
// or bare base58 text.
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %w", domain.ErrSigner, err)
	}
	return ParseKeypair(raw)
}

// ParseKeypair decodes key material in any LoadKeypair format.
func ParseKeypair(raw []byte) (*Keypair, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty key material", domain.ErrSigner)
	}

	switch raw[0] {
	case '[':
		var b []byte
		var ints []int
		if err := json.Unmarshal(raw, &ints); err != nil {
			return nil, fmt.Errorf("%w: parse keygen array: %w", domain.ErrSigner, err)
		}
		b = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: keygen array value %d out of range", domain.ErrSigner, v)
			}
			b[i] = byte(v)
		}
		return NewKeypair(solana.PrivateKey(b))
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: parse key string: %w", domain.ErrSigner, err)
		}
		return parseBase58(s)
	default:
		return parseBase58(string(raw))
	}
}

func parseBase58(s string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base58 key: %w", domain.ErrSigner, err)
	}
	return NewKeypair(key)
}
