package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"

	"solana-ledger-ops/internal/domain"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"system program", "11111111111111111111111111111111", false},
		{"token program", TokenProgramID, false},
		{"empty", "", true},
		{"not base58", "0OIl", true},
		{"too short", base58.Encode([]byte{1, 2, 3}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !IsOnCurve(base58.Encode(pub)) {
		t.Error("keypair public key must be on curve")
	}

	// roughly half of all 32-byte strings are not valid points
	found := false
	for i := 0; i < 64 && !found; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("pda-%d", i)))
		if !IsOnCurve(base58.Encode(sum[:])) {
			found = true
		}
	}
	if !found {
		t.Error("expected an off-curve address among hashed seeds")
	}

	if IsOnCurve("not-an-address") {
		t.Error("invalid address reported on curve")
	}
}

func TestTokenAccountRoundTrip(t *testing.T) {
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	owner := "11111111111111111111111111111111"

	data, err := EncodeTokenAccount(mint, owner, 42)
	if err != nil {
		t.Fatalf("EncodeTokenAccount: %v", err)
	}

	acct, err := DecodeTokenAccount(data)
	if err != nil {
		t.Fatalf("DecodeTokenAccount: %v", err)
	}
	if acct.Mint != mint || acct.Owner != owner || acct.Amount != 42 {
		t.Errorf("unexpected account: %+v", acct)
	}
}

func TestDecodeTokenAccount_Malformed(t *testing.T) {
	if _, err := DecodeTokenAccount("!!!"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := DecodeTokenAccount("AAAA"); err == nil {
		t.Error("expected short data error")
	}
}
