// Package reclaim finds zero-balance token accounts and closes them to
// recover their rent deposits.
package reclaim

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/observability"
	"solana-ledger-ops/internal/solana"
)

// Well-known mints protected unless the user supplies their own list.
const (
	USDCMint       = "EPjFWdd5AufqSSqeM2qrxzN2HpQvrHvMVY3w1TDVwkWo"
	USDTMint       = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// DefaultProtectedMints returns USDC, USDT and wrapped SOL.
func DefaultProtectedMints() []string {
	return []string{USDCMint, USDTMint, WrappedSOLMint}
}

// ResolveProtectedMints applies the default set when user is empty or
// mergeDefaults is set. Duplicates are dropped, order is kept.
func ResolveProtectedMints(user []string, mergeDefaults bool) []string {
	var all []string
	if len(user) == 0 || mergeDefaults {
		all = DefaultProtectedMints()
	}
	all = append(all, user...)

	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, m := range all {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// ProgramIDs lists the token programs to query. Default: SPL Token only.
	ProgramIDs []string
	// ProtectedMints are never proposed for closure.
	ProtectedMints []string
}

// Scanner lists reclaim candidates of a wallet.
type Scanner struct {
	conn      solana.Connection
	programs  []string
	protected map[string]struct{}
	logger    *zap.Logger
}

// NewScanner creates a Scanner.
func NewScanner(conn solana.Connection, cfg ScannerConfig, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	programs := cfg.ProgramIDs
	if len(programs) == 0 {
		programs = []string{solana.TokenProgramID}
	}
	protected := make(map[string]struct{}, len(cfg.ProtectedMints))
	for _, m := range cfg.ProtectedMints {
		protected[m] = struct{}{}
	}
	return &Scanner{
		conn:      conn,
		programs:  programs,
		protected: protected,
		logger:    logger.Named("scanner"),
	}
}

// Scan returns the wallet's token accounts holding exactly zero tokens, each
// with its live lamport deposit. Order follows the endpoint.
func (s *Scanner) Scan(ctx context.Context, wallet string) ([]domain.ReclaimCandidate, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	var candidates []domain.ReclaimCandidate
	var total uint64

	for _, program := range s.programs {
		holdings, err := s.conn.GetTokenAccountsByOwner(ctx, wallet, program)
		if err != nil {
			return nil, upstream(fmt.Sprintf("token accounts of %s", wallet), err)
		}

		for _, h := range holdings {
			amount, ok := s.parseHolding(h)
			if !ok || amount != 0 {
				continue
			}
			if _, skip := s.protected[h.Mint]; skip {
				s.logger.Info("skipping protected mint",
					zap.String("account", h.Address),
					zap.String("mint", h.Mint))
				continue
			}

			info, err := s.conn.GetAccountInfo(ctx, h.Address)
			if err != nil {
				return nil, upstream(fmt.Sprintf("account %s", h.Address), err)
			}
			if info == nil {
				s.logger.Debug("account vanished during scan", zap.String("account", h.Address))
				continue
			}

			programID := h.ProgramID
			if programID == "" {
				programID = program
			}
			candidates = append(candidates, domain.NewReclaimCandidate(h.Address, h.Mint, programID, info.Lamports))
			total += info.Lamports
		}
	}

	observability.RecordScan(len(candidates), total)
	s.logger.Debug("scan complete",
		zap.String("wallet", wallet),
		zap.Int("candidates", len(candidates)),
		zap.Uint64("rent_lamports", total))

	return candidates, nil
}

// parseHolding validates a holding record and returns its raw token amount.
func (s *Scanner) parseHolding(h solana.TokenHolding) (uint64, bool) {
	if solana.ValidateAddress(h.Address) != nil {
		s.logger.Warn("skipping holding with malformed address", zap.String("account", h.Address))
		return 0, false
	}
	if h.Mint == "" || h.Amount == "" {
		s.logger.Warn("skipping unparsed holding", zap.String("account", h.Address))
		return 0, false
	}
	amount, err := strconv.ParseUint(h.Amount, 10, 64)
	if err != nil {
		s.logger.Warn("skipping holding with malformed amount",
			zap.String("account", h.Address),
			zap.String("amount", h.Amount))
		return 0, false
	}
	return amount, true
}

// upstream classifies an RPC failure as ErrUpstreamUnavailable.
func upstream(what string, err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, what, err)
}

// Summary totals a candidate list.
type Summary struct {
	Count        int
	RentLamports uint64
}

// RentSOL returns the total rent in SOL.
func (s Summary) RentSOL() decimal.Decimal {
	return domain.LamportsToSOL(int64(s.RentLamports))
}

// Summarize totals the recoverable rent of candidates.
func Summarize(candidates []domain.ReclaimCandidate) Summary {
	sum := Summary{Count: len(candidates)}
	for _, c := range candidates {
		sum.RentLamports += c.RentLamports
	}
	return sum
}
