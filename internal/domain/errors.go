package domain

import "errors"

// Operation error kinds. Failed outcomes carry one of these as Reason,
// wrapped errors returned by scanners and clients match them with errors.Is.
var (
	// ErrInvalidInput is returned for empty or malformed addresses and amounts.
	// Fatal to the single call, never to a batch.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable is returned when the RPC endpoint cannot be reached
	// or answers with a transport-level failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPreconditionFailed is returned when live ledger state no longer allows
	// the operation, e.g. a token account received a deposit after the scan.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrSimulationRejected is returned when a dry run reports an error.
	// The transaction was never sent.
	ErrSimulationRejected = errors.New("simulation rejected")

	// ErrConfirmationTimeout is returned when the blockhash validity window
	// elapsed before the target commitment was observed. The transaction may
	// still land; callers must dedup before retrying.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrTransactionFailed is returned when a landed transaction carries an
	// execution error.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSigner is returned when the signing capability cannot produce a
	// signature. Treated as a configuration error.
	ErrSigner = errors.New("signer unavailable")
)
