package reclaim

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/ledger"
	"solana-ledger-ops/internal/solana"
)

// DefaultCloseAttempts bounds transaction rebuilds per closure.
const DefaultCloseAttempts = 3

// Precondition details.
const (
	DetailBalanceNotZero  = "balance not zero"
	DetailAccountNotFound = "account not found"
	DetailNotOwned        = "account not owned by wallet"
)

// CloserConfig configures a Closer.
type CloserConfig struct {
	// MaxAttempts bounds rebuild-and-send cycles for stale blockhashes and
	// unreachable endpoints.
	MaxAttempts int
}

// Closer closes one token account at a time, sending the deposit to the
// submitter's wallet. Safe for concurrent use.
type Closer struct {
	conn        solana.Connection
	submitter   *ledger.Submitter
	maxAttempts int
	logger      *zap.Logger
}

// NewCloser creates a Closer.
func NewCloser(conn solana.Connection, submitter *ledger.Submitter, cfg CloserConfig, logger *zap.Logger) *Closer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultCloseAttempts
	}
	return &Closer{
		conn:        conn,
		submitter:   submitter,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("closer"),
	}
}

// Execute implements batch.Executor.
func (c *Closer) Execute(ctx context.Context, candidate domain.ReclaimCandidate) domain.Outcome {
	return c.CloseOne(ctx, candidate)
}

// CloseOne closes candidate. It never returns an error: every failure is a
// domain.Failed outcome. The account is re-read before every build; a
// non-zero balance aborts without sending anything.
func (c *Closer) CloseOne(ctx context.Context, candidate domain.ReclaimCandidate) domain.Outcome {
	target := candidate.Address
	wallet := c.submitter.Payer()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		ix, lamports, failed := c.prepare(ctx, target, wallet)
		if failed != nil {
			return *failed
		}

		p, err := c.submitter.Build(ctx, ix)
		if err != nil {
			lastErr = err
			if ledger.Rebuildable(err) {
				continue
			}
			return ledger.Failure(target, domain.StageBuilt, err)
		}

		if err := c.submitter.Sign(p); err != nil {
			return ledger.Failure(target, domain.StageSigned, err)
		}

		sig, err := c.submitter.Send(ctx, p)
		if err != nil {
			if solana.IsBlockhashNotFound(err) && attempt < c.maxAttempts {
				c.logger.Debug("blockhash expired before send, rebuilding",
					zap.String("account", target),
					zap.Int("attempt", attempt))
				lastErr = err
				continue
			}
			f := ledger.Failure(target, domain.StageSent, err)
			if f.Reason == domain.ErrSimulationRejected {
				f.Stage = domain.StageSimulated
			} else {
				// delivery is unknown
				f.Signature = p.Signature
			}
			return f
		}

		if err := c.submitter.Confirm(ctx, sig, p.Blockhash.LastValidBlockHeight); err != nil {
			f := ledger.Failure(target, domain.StageSent, err)
			f.Signature = sig
			return f
		}

		return domain.ClosureSucceeded{
			Account:       target,
			Signature:     sig,
			RentRecovered: lamports,
		}
	}

	return ledger.Failure(target, domain.StageBuilt, fmt.Errorf("%d attempts: %w", c.maxAttempts, lastErr))
}

// prepare re-reads target and builds its close instruction, returning the
// account's current lamports.
func (c *Closer) prepare(ctx context.Context, target string, wallet solanago.PublicKey) (solanago.Instruction, uint64, *domain.Failed) {
	fail := func(f domain.Failed) (solanago.Instruction, uint64, *domain.Failed) {
		return nil, 0, &f
	}

	info, err := c.conn.GetAccountInfo(ctx, target)
	if err != nil {
		return fail(ledger.Failure(target, domain.StageBuilt, fmt.Errorf("%w: re-read account: %w", domain.ErrUpstreamUnavailable, err)))
	}
	if info == nil {
		return fail(domain.NewFailed(target, domain.StageBuilt, domain.ErrPreconditionFailed, DetailAccountNotFound))
	}

	acct, err := solana.DecodeTokenAccount(info.Data)
	if err != nil {
		return fail(domain.NewFailed(target, domain.StageBuilt, domain.ErrPreconditionFailed, err.Error()))
	}
	if acct.Amount != 0 {
		c.logger.Info("token account received a deposit since scan",
			zap.String("account", target),
			zap.Uint64("amount", acct.Amount))
		return fail(domain.NewFailed(target, domain.StageBuilt, domain.ErrPreconditionFailed, DetailBalanceNotZero))
	}
	if acct.Owner != wallet.String() {
		return fail(domain.NewFailed(target, domain.StageBuilt, domain.ErrPreconditionFailed, DetailNotOwned))
	}

	account, err := solanago.PublicKeyFromBase58(target)
	if err != nil {
		return fail(ledger.Failure(target, domain.StageBuilt, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)))
	}
	program, err := solanago.PublicKeyFromBase58(info.Owner)
	if err != nil {
		return fail(ledger.Failure(target, domain.StageBuilt, fmt.Errorf("%w: account owner %q: %w", domain.ErrUpstreamUnavailable, info.Owner, err)))
	}

	ix, err := ledger.CloseAccount(program, account, wallet, wallet)
	if err != nil {
		return fail(ledger.Failure(target, domain.StageBuilt, err))
	}
	return ix, info.Lamports, nil
}
