package solana

import (
	"context"

	"solana-ledger-ops/internal/domain"
)

// SignatureSubscriber defines Solana WebSocket signature subscriptions.
type SignatureSubscriber interface {
	// SubscribeSignature delivers at most one notification once signature
	// reaches commitment, then closes the channel.
	SubscribeSignature(ctx context.Context, signature string, commitment domain.Commitment) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureSubscribe message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // execution error, nil on success
}
