// Package transfer moves SOL from the owning wallet to destinations through
// the simulate, sign, send and confirm pipeline.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/ledger"
	"solana-ledger-ops/internal/solana"
)

// Config configures an Executor.
type Config struct {
	// Cluster selects the explorer link flavor: mainnet-beta, devnet, testnet.
	Cluster string
	// RejectOffCurve refuses destinations that cannot hold a private key.
	RejectOffCurve bool
}

// Executor performs one transfer per call. Safe for concurrent use.
type Executor struct {
	submitter *ledger.Submitter
	cfg       Config
	logger    *zap.Logger
}

// NewExecutor creates an Executor paying from the submitter's wallet.
func NewExecutor(submitter *ledger.Submitter, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		submitter: submitter,
		cfg:       cfg,
		logger:    logger.Named("transfer"),
	}
}

// Execute implements batch.Executor.
func (e *Executor) Execute(ctx context.Context, req domain.TransferRequest) domain.Outcome {
	return e.TransferOne(ctx, req)
}

// TransferOne runs req through build, simulate, sign, send and confirm.
// It never returns an error; a rejected simulation stops before anything is
// sent, and a confirmation timeout is reported without resubmission.
func (e *Executor) TransferOne(ctx context.Context, req domain.TransferRequest) domain.Outcome {
	target := req.Destination

	dest, err := e.validate(req)
	if err != nil {
		return domain.NewFailed(target, domain.StageBuilt, domain.ErrInvalidInput, err.Error())
	}

	ixs := append(ledger.FeeInstructions(req.Fee), ledger.Transfer(e.submitter.Payer(), dest, req.AmountLamports))

	p, err := e.submitter.Build(ctx, ixs...)
	if err != nil {
		return ledger.Failure(target, domain.StageBuilt, err)
	}

	report, err := e.submitter.Simulate(ctx, p)
	if err != nil {
		return ledger.Failure(target, domain.StageSimulated, err)
	}
	if report.Failed() {
		f := domain.NewFailed(target, domain.StageSimulated, domain.ErrSimulationRejected, simulationDetail(report.Err))
		f.Simulation = report
		return f
	}

	if err := e.submitter.Sign(p); err != nil {
		f := ledger.Failure(target, domain.StageSigned, err)
		f.Simulation = report
		return f
	}

	sig, err := e.submitter.Send(ctx, p)
	if err != nil {
		f := ledger.Failure(target, domain.StageSent, err)
		if f.Reason == domain.ErrSimulationRejected {
			f.Stage = domain.StageSimulated
		} else {
			// delivery is unknown
			f.Signature = p.Signature
		}
		if f.Simulation == nil {
			f.Simulation = report
		}
		return f
	}

	if err := e.submitter.Confirm(ctx, sig, p.Blockhash.LastValidBlockHeight); err != nil {
		f := ledger.Failure(target, domain.StageSent, err)
		f.Signature = sig
		f.Simulation = report
		e.logger.Warn("transfer not confirmed",
			zap.String("destination", target),
			zap.String("signature", sig),
			zap.Error(err))
		return f
	}

	return domain.TransferSucceeded{
		Destination: target,
		Amount:      req.AmountLamports,
		Signature:   sig,
		Simulation:  report,
		ExplorerURL: ledger.ExplorerURL(e.cfg.Cluster, sig),
	}
}

func (e *Executor) validate(req domain.TransferRequest) (solanago.PublicKey, error) {
	if err := solana.ValidateAddress(req.Destination); err != nil {
		return solanago.PublicKey{}, err
	}
	if req.AmountLamports == 0 {
		return solanago.PublicKey{}, fmt.Errorf("amount must be positive")
	}
	if !solana.IsOnCurve(req.Destination) {
		if e.cfg.RejectOffCurve {
			return solanago.PublicKey{}, fmt.Errorf("destination %s is off-curve", req.Destination)
		}
		e.logger.Warn("destination is off-curve, funds may be unrecoverable", zap.String("destination", req.Destination))
	}
	return solanago.PublicKeyFromBase58(req.Destination)
}

// simulationDetail renders a ledger error the way the endpoint sent it.
func simulationDetail(err interface{}) string {
	if s, ok := err.(string); ok {
		return s
	}
	b, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		return fmt.Sprintf("%v", err)
	}
	return string(b)
}
