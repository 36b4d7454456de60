// Package ledger builds, signs, submits and confirms versioned transactions
// through a solana.Connection.
package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/solana"
	"solana-ledger-ops/internal/wallet"
)

// Default submission settings.
const (
	DefaultSendAttempts  = 3
	DefaultRetryDelay    = 1 * time.Second
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultMaxPollErrors = 10
)

// Config configures a Submitter.
type Config struct {
	Commitment      domain.Commitment
	SendAttempts    int           // attempts per Send for transient failures
	RetryDelay      time.Duration // fixed pause between attempts
	PollInterval    time.Duration
	ConfirmTimeout  time.Duration // optional wall-clock cap, 0 = blockhash window only
	MaxPollErrors   int           // consecutive status read failures tolerated
	RelayMaxRetries *uint         // passed to sendTransaction; nil keeps the node default
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Commitment == "" {
		c.Commitment = domain.CommitmentConfirmed
	}
	if c.SendAttempts <= 0 {
		c.SendAttempts = DefaultSendAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ConfirmTimeout < 0 {
		c.ConfirmTimeout = 0
	}
	if c.MaxPollErrors <= 0 {
		c.MaxPollErrors = DefaultMaxPollErrors
	}
	return c
}

// Prepared is a built transaction awaiting signature or submission.
type Prepared struct {
	Tx        *solanago.Transaction
	Blockhash solana.Blockhash
	Signature string // fee payer signature, set by Sign
}

// Wire returns the base64 wire encoding. Unsigned transactions carry zeroed
// signature placeholders.
func (p *Prepared) Wire() (string, error) {
	raw, err := p.Tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Submitter drives transactions through build, sign, send and confirm for one
// wallet. Safe for concurrent use.
type Submitter struct {
	conn       solana.Connection
	signer     wallet.Signer
	subscriber solana.SignatureSubscriber
	cfg        Config
	logger     *zap.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithSubscriber enables WebSocket confirmation next to status polling.
func WithSubscriber(sub solana.SignatureSubscriber) Option {
	return func(s *Submitter) {
		s.subscriber = sub
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubmitter creates a Submitter paying fees from signer.
func NewSubmitter(conn solana.Connection, signer wallet.Signer, cfg Config, opts ...Option) *Submitter {
	s := &Submitter{
		conn:   conn,
		signer: signer,
		cfg:    cfg.WithDefaults(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payer returns the fee payer address.
func (s *Submitter) Payer() solanago.PublicKey {
	return s.signer.PublicKey()
}

// Commitment returns the target commitment.
func (s *Submitter) Commitment() domain.Commitment {
	return s.cfg.Commitment
}

// Build creates a v0 transaction over a fresh blockhash.
func (s *Submitter) Build(ctx context.Context, instructions ...solanago.Instruction) (*Prepared, error) {
	bh, err := s.conn.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("latest blockhash: %w", err)
	}

	hash, err := solanago.HashFromBase58(bh.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed blockhash %q: %w", domain.ErrUpstreamUnavailable, bh.Hash, err)
	}

	tx, err := solanago.NewTransaction(instructions, hash, solanago.TransactionPayer(s.signer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("%w: build transaction: %w", domain.ErrInvalidInput, err)
	}
	tx.Message.SetVersion(solanago.MessageVersionV0)
	tx.Signatures = make([]solanago.Signature, tx.Message.Header.NumRequiredSignatures)

	return &Prepared{Tx: tx, Blockhash: *bh}, nil
}

// Simulate dry-runs p without signature verification.
func (s *Submitter) Simulate(ctx context.Context, p *Prepared) (*domain.SimulationReport, error) {
	wire, err := p.Wire()
	if err != nil {
		return nil, err
	}
	report, err := s.conn.SimulateTransaction(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	return report, nil
}

// Sign signs p as fee payer.
func (s *Submitter) Sign(p *Prepared) error {
	msg, err := p.Tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", domain.ErrInvalidInput, err)
	}

	sig, err := s.signer.Sign(msg)
	if err != nil {
		if !errors.Is(err, domain.ErrSigner) {
			err = fmt.Errorf("%w: %w", domain.ErrSigner, err)
		}
		return err
	}

	if len(p.Tx.Signatures) == 0 {
		p.Tx.Signatures = make([]solanago.Signature, 1)
	}
	p.Tx.Signatures[0] = sig
	p.Signature = sig.String()
	return nil
}

// Send submits the signed transaction, resending the same bytes up to
// SendAttempts times while the endpoint is unavailable. A preflight failure
// is returned as domain.ErrSimulationRejected and never retried.
func (s *Submitter) Send(ctx context.Context, p *Prepared) (string, error) {
	if p.Signature == "" {
		return "", fmt.Errorf("%w: transaction not signed", domain.ErrSigner)
	}

	wire, err := p.Wire()
	if err != nil {
		return "", err
	}

	opts := solana.SendOptions{
		PreflightCommitment: s.cfg.Commitment,
		MaxRetries:          s.cfg.RelayMaxRetries,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.SendAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		sig, err := s.conn.SendTransaction(ctx, wire, opts)
		if err == nil {
			if sig != p.Signature {
				s.logger.Warn("endpoint returned unexpected signature",
					zap.String("expected", p.Signature), zap.String("got", sig))
			}
			return p.Signature, nil
		}

		if _, ok := solana.PreflightError(err); ok && !solana.IsBlockhashNotFound(err) {
			return "", fmt.Errorf("%w: %w", domain.ErrSimulationRejected, err)
		}
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			return "", fmt.Errorf("send transaction: %w", err)
		}

		lastErr = err
		s.logger.Debug("send attempt failed",
			zap.String("signature", p.Signature),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return "", fmt.Errorf("send transaction: %d attempts: %w", s.cfg.SendAttempts, lastErr)
}

// Confirm waits until signature reaches the configured commitment. It gives
// up with domain.ErrConfirmationTimeout once the block height passes
// lastValidBlockHeight, and returns domain.ErrTransactionFailed when the
// transaction landed with an execution error. A signature subscription is
// released on return.
func (s *Submitter) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	var cancel context.CancelFunc
	if s.cfg.ConfirmTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var notify <-chan solana.SignatureNotification
	if s.subscriber != nil {
		ch, err := s.subscriber.SubscribeSignature(ctx, signature, s.cfg.Commitment)
		if err != nil {
			s.logger.Debug("signature subscription unavailable, polling only", zap.Error(err))
		} else {
			notify = ch
		}
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	pollErrors := 0
	for {
		done, err := s.checkStatus(ctx, signature)
		if done {
			return err
		}

		height, heightErr := s.conn.GetBlockHeight(ctx, s.cfg.Commitment)
		switch {
		case err != nil || heightErr != nil:
			pollErrors++
			if pollErrors >= s.cfg.MaxPollErrors {
				return fmt.Errorf("%w: confirmation polling: %w", domain.ErrUpstreamUnavailable, errors.Join(err, heightErr))
			}
		case height > lastValidBlockHeight:
			// it may have landed in the last valid block
			if done, err := s.checkStatus(ctx, signature); done {
				return err
			}
			return fmt.Errorf("%w: block height %d passed %d", domain.ErrConfirmationTimeout, height, lastValidBlockHeight)
		default:
			pollErrors = 0
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrConfirmationTimeout, ctx.Err())
		case n, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			if n.Err != nil {
				return fmt.Errorf("%w: %v", domain.ErrTransactionFailed, n.Err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// checkStatus reports whether the signature reached a terminal state.
func (s *Submitter) checkStatus(ctx context.Context, signature string) (bool, error) {
	statuses, err := s.conn.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return false, nil
	}

	st := statuses[0]
	if st.Err != nil {
		return true, fmt.Errorf("%w: %v", domain.ErrTransactionFailed, st.Err)
	}
	return st.ConfirmationStatus.Satisfies(s.cfg.Commitment), nil
}
