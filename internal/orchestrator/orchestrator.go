// Package orchestrator wires the scanner, executors and batch runner behind
// one service bound to a single wallet.
// Flow: scan → batch (closer | transfer executor) → accounting → run ledger
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-ledger-ops/internal/batch"
	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/ledger"
	"solana-ledger-ops/internal/reclaim"
	"solana-ledger-ops/internal/solana"
	"solana-ledger-ops/internal/storage"
	"solana-ledger-ops/internal/transfer"
	"solana-ledger-ops/internal/wallet"
)

// Options for creating a Service.
type Options struct {
	// Required
	Conn   solana.Connection
	Signer wallet.Signer

	// Optional WebSocket fast path for confirmations.
	Subscriber solana.SignatureSubscriber

	// Per-operation and batch configs; zero values take package defaults.
	Submit        ledger.Config
	Scanner       reclaim.ScannerConfig
	CloseAttempts int
	Transfer      transfer.Config
	Batch         batch.Config

	// Store receives every finished report. Nil disables persistence.
	Store storage.RunStore

	// OnProgress is called after each chunk of any run.
	OnProgress func(domain.Kind, domain.Progress)

	Logger *zap.Logger
}

// Service runs ledger operations for one wallet.
type Service struct {
	conn       solana.Connection
	wallet     string
	scanner    *reclaim.Scanner
	closer     *reclaim.Closer
	transfers  *transfer.Executor
	batchCfg   batch.Config
	store      storage.RunStore
	onProgress func(domain.Kind, domain.Progress)
	logger     *zap.Logger
}

// New creates a Service. Only missing dependencies are rejected; wallet
// state is not read until the first operation.
func New(opts Options) (*Service, error) {
	if opts.Conn == nil {
		return nil, fmt.Errorf("%w: connection is required", domain.ErrInvalidInput)
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", domain.ErrSigner)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	submitOpts := []ledger.Option{ledger.WithLogger(logger)}
	if opts.Subscriber != nil {
		submitOpts = append(submitOpts, ledger.WithSubscriber(opts.Subscriber))
	}
	submitter := ledger.NewSubmitter(opts.Conn, opts.Signer, opts.Submit, submitOpts...)

	return &Service{
		conn:       opts.Conn,
		wallet:     opts.Signer.PublicKey().String(),
		scanner:    reclaim.NewScanner(opts.Conn, opts.Scanner, logger),
		closer:     reclaim.NewCloser(opts.Conn, submitter, reclaim.CloserConfig{MaxAttempts: opts.CloseAttempts}, logger),
		transfers:  transfer.NewExecutor(submitter, opts.Transfer, logger),
		batchCfg:   opts.Batch,
		store:      opts.Store,
		onProgress: opts.OnProgress,
		logger:     logger.With(zap.String("wallet", opts.Signer.PublicKey().String())),
	}, nil
}

// Wallet returns the address operations run against.
func (s *Service) Wallet() string {
	return s.wallet
}

// ScanReclaimable lists the wallet's zero-balance token accounts.
func (s *Service) ScanReclaimable(ctx context.Context) ([]domain.ReclaimCandidate, error) {
	candidates, err := s.scanner.Scan(ctx, s.wallet)
	if err != nil {
		return nil, err
	}
	summary := reclaim.Summarize(candidates)
	s.logger.Info("scan complete",
		zap.Int("candidates", summary.Count),
		zap.Uint64("rent_lamports", summary.RentLamports),
		zap.String("rent_sol", summary.RentSOL().String()))
	return candidates, nil
}

// Reclaim closes candidates in chunks. Every candidate is re-checked on chain
// right before its closure.
func (s *Service) Reclaim(ctx context.Context, candidates []domain.ReclaimCandidate) (*domain.BatchReport, error) {
	runner := batch.NewRunner(batch.Options[domain.ReclaimCandidate]{
		Kind:       domain.KindReclaim,
		Wallet:     s.wallet,
		Executor:   s.closer,
		Balances:   s.conn,
		Config:     s.batchCfg,
		OnProgress: s.progress(domain.KindReclaim),
		Logger:     s.logger,
	})
	report, err := runner.Run(ctx, candidates)
	s.persist(ctx, report)
	return report, err
}

// ReclaimAll scans the wallet and reclaims everything found.
func (s *Service) ReclaimAll(ctx context.Context) (*domain.BatchReport, error) {
	candidates, err := s.ScanReclaimable(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return s.Reclaim(ctx, candidates)
}

// Transfer executes requests in chunks. Each request is attempted once.
func (s *Service) Transfer(ctx context.Context, requests []domain.TransferRequest) (*domain.BatchReport, error) {
	runner := batch.NewRunner(batch.Options[domain.TransferRequest]{
		Kind:       domain.KindTransfer,
		Wallet:     s.wallet,
		Executor:   s.transfers,
		Balances:   s.conn,
		Config:     s.batchCfg,
		OnProgress: s.progress(domain.KindTransfer),
		Logger:     s.logger,
	})
	report, err := runner.Run(ctx, requests)
	s.persist(ctx, report)
	return report, err
}

// PriorOutcomes returns recorded outcomes carrying signature, so a caller can
// check whether a timed out operation was already accounted for before
// retrying it. Returns nil without a store.
func (s *Service) PriorOutcomes(ctx context.Context, signature string) ([]*storage.OutcomeRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetOutcomesBySignature(ctx, signature)
}

func (s *Service) progress(kind domain.Kind) func(domain.Progress) {
	if s.onProgress == nil {
		return nil
	}
	return func(p domain.Progress) { s.onProgress(kind, p) }
}

// persist records a report. Failures are logged; the run already happened.
func (s *Service) persist(ctx context.Context, report *domain.BatchReport) {
	if s.store == nil || report == nil {
		return
	}
	// A cancelled run still gets recorded.
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With(zap.String("run_id", report.RunID))

	if err := s.store.InsertReport(ctx, report); err != nil {
		logger.Warn("persist report failed", zap.Error(err))
		return
	}
	if err := s.store.InsertOutcomes(ctx, storage.NewOutcomeRecords(report)); err != nil {
		logger.Warn("persist outcomes failed", zap.Error(err))
		return
	}
	logger.Debug("report persisted", zap.Int("outcomes", len(report.Outcomes)))
}
