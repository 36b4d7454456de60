package ledger

import (
	"errors"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/solana"
)

// reasons in match priority; ErrUpstreamUnavailable last so more specific
// kinds win when both are wrapped.
var reasons = []error{
	domain.ErrInvalidInput,
	domain.ErrPreconditionFailed,
	domain.ErrSimulationRejected,
	domain.ErrSigner,
	domain.ErrTransactionFailed,
	domain.ErrConfirmationTimeout,
	domain.ErrUpstreamUnavailable,
}

// Reason maps err onto the sentinel carried by Failed outcomes.
// Unclassified errors count as upstream failures.
func Reason(err error) error {
	for _, r := range reasons {
		if errors.Is(err, r) {
			return r
		}
	}
	return domain.ErrUpstreamUnavailable
}

// Rebuildable reports whether a fresh blockhash and a new transaction may
// succeed where err failed.
func Rebuildable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable) || solana.IsBlockhashNotFound(err)
}

// Failure converts err into a Failed outcome for target at stage.
func Failure(target string, stage domain.Stage, err error) domain.Failed {
	f := domain.NewFailed(target, stage, Reason(err), err.Error())
	if report, ok := solana.PreflightError(err); ok {
		f.Simulation = report
	}
	return f
}
