package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-ledger-ops/internal/domain"
)

func writeKeyFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestLoadKeypair_Formats(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)

	ints := make([]int, len(kp.key))
	for i, b := range kp.key {
		ints[i] = int(b)
	}
	arrayJSON, err := json.Marshal(ints)
	require.NoError(t, err)
	stringJSON, err := json.Marshal(kp.key.String())
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
	}{
		{"keygen array", arrayJSON},
		{"json string", stringJSON},
		{"bare base58", []byte(kp.key.String() + "\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := LoadKeypair(writeKeyFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
		})
	}
}

func TestLoadKeypair_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", []byte("  ")},
		{"short array", []byte("[1,2,3]")},
		{"byte overflow", []byte("[256]")},
		{"bad base58", []byte("0OIl")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadKeypair(writeKeyFile(t, tt.content))
			assert.True(t, errors.Is(err, domain.ErrSigner), "got %v", err)
		})
	}

	_, err := LoadKeypair(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, domain.ErrSigner)
}

func TestKeypair_Sign(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	pub := kp.PublicKey()
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:]))
}
