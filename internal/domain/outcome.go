package domain

import "fmt"

// Stage is a step of the submit pipeline: built → simulated → signed → sent → confirmed.
type Stage string

const (
	StageBuilt     Stage = "built"
	StageSimulated Stage = "simulated"
	StageSigned    Stage = "signed"
	StageSent      Stage = "sent"
	StageConfirmed Stage = "confirmed"
)

// Outcome is the result of one ledger operation. It is one of
// ClosureSucceeded, TransferSucceeded or Failed.
type Outcome interface {
	// Target is the account closed or the transfer destination.
	Target() string
	// Succeeded reports whether the operation was confirmed.
	Succeeded() bool
	// Value is the intended lamport amount moved; zero for failures.
	Value() uint64

	outcome()
}

// ClosureSucceeded is a confirmed rent closure.
type ClosureSucceeded struct {
	Account       string
	Signature     string
	RentRecovered uint64 // pre-closure deposit; fees are reconciled separately
}

func (o ClosureSucceeded) Target() string  { return o.Account }
func (o ClosureSucceeded) Succeeded() bool { return true }
func (o ClosureSucceeded) Value() uint64   { return o.RentRecovered }
func (ClosureSucceeded) outcome()          {}

// TransferSucceeded is a confirmed value transfer.
type TransferSucceeded struct {
	Destination string
	Amount      uint64
	Signature   string
	Simulation  *SimulationReport
	ExplorerURL string
}

func (o TransferSucceeded) Target() string  { return o.Destination }
func (o TransferSucceeded) Succeeded() bool { return true }
func (o TransferSucceeded) Value() uint64   { return o.Amount }
func (TransferSucceeded) outcome()          {}

// Failed is an operation that did not reach the target commitment.
// Reason is one of the package sentinel errors.
type Failed struct {
	Address    string // account or destination
	Stage      Stage  // stage that failed
	Reason     error  // sentinel kind
	Detail     string // verbatim upstream message
	Signature  string // set when the transaction was sent
	Simulation *SimulationReport
}

// NewFailed builds a Failed outcome.
func NewFailed(target string, stage Stage, reason error, detail string) Failed {
	return Failed{Address: target, Stage: stage, Reason: reason, Detail: detail}
}

func (o Failed) Target() string  { return o.Address }
func (o Failed) Succeeded() bool { return false }
func (o Failed) Value() uint64   { return 0 }
func (Failed) outcome()          {}

// Error renders reason and detail.
func (o Failed) Error() string {
	if o.Detail == "" {
		return o.Reason.Error()
	}
	return fmt.Sprintf("%v: %s", o.Reason, o.Detail)
}

// Unwrap exposes Reason to errors.Is.
func (o Failed) Unwrap() error { return o.Reason }

// RetrySafe reports whether resubmitting the same request cannot double-spend.
// Only failures before anything was sent are safe; a confirmation timeout
// may still land and needs dedup by signature first.
func (o Failed) RetrySafe() bool {
	return o.Signature == "" && o.Stage != StageSent
}
