package storage

import (
	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/idhash"
)

// OutcomeRecord is the flat row form of a domain.Outcome.
// Corresponds to batch_outcomes table in PostgreSQL and ClickHouse.
type OutcomeRecord struct {
	OutcomeID     string // SHA256(run_id|target|index)
	RunID         string
	Index         int // position of the target in the batch
	Kind          domain.Kind
	Target        string // closed account or transfer destination
	Succeeded     bool
	Stage         string // failing stage, "confirmed" on success
	Reason        string // sentinel message, empty on success
	Detail        string
	Signature     string
	ValueLamports uint64
	ExplorerURL   string
}

// NewOutcomeRecords flattens the outcomes of a report, preserving order.
func NewOutcomeRecords(r *domain.BatchReport) []*OutcomeRecord {
	records := make([]*OutcomeRecord, 0, len(r.Outcomes))
	for i, o := range r.Outcomes {
		rec := &OutcomeRecord{
			OutcomeID:     idhash.ComputeOutcomeID(r.RunID, o.Target(), i),
			RunID:         r.RunID,
			Index:         i,
			Kind:          r.Kind,
			Target:        o.Target(),
			Succeeded:     o.Succeeded(),
			Stage:         string(domain.StageConfirmed),
			ValueLamports: o.Value(),
		}
		switch v := o.(type) {
		case domain.ClosureSucceeded:
			rec.Signature = v.Signature
		case domain.TransferSucceeded:
			rec.Signature = v.Signature
			rec.ExplorerURL = v.ExplorerURL
		case domain.Failed:
			rec.Stage = string(v.Stage)
			if v.Reason != nil {
				rec.Reason = v.Reason.Error()
			}
			rec.Detail = v.Detail
			rec.Signature = v.Signature
		}
		records = append(records, rec)
	}
	return records
}

// ValidateReport checks the fields every store requires.
func ValidateReport(r *domain.BatchReport) error {
	if r == nil || r.RunID == "" || r.Kind == "" {
		return ErrInvalidInput
	}
	return nil
}

// ValidateOutcome checks the fields every store requires.
func ValidateOutcome(o *OutcomeRecord) error {
	if o == nil || o.OutcomeID == "" || o.RunID == "" || o.Target == "" {
		return ErrInvalidInput
	}
	return nil
}
