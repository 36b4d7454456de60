// Package accounting reconciles a batch's outcomes against the observed
// wallet balance change.
package accounting

import (
	"time"

	"solana-ledger-ops/internal/domain"
)

// Input is everything Reconcile needs about a finished batch.
type Input struct {
	RunID             string
	Kind              domain.Kind
	BalanceBefore     uint64
	BalanceAfter      uint64
	BalanceAfterKnown bool
	Outcomes          []domain.Outcome
	Skipped           int
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Reconcile tallies outcomes and derives the incidental cost: the part of
// the balance change not explained by confirmed values. For an inflow batch
// intended = +sum, for an outflow batch intended = -sum, and
// IncidentalCost = (after - before) - intended, negative when fees were paid.
// Without a known after balance the deltas stay zero.
func Reconcile(in Input) *domain.BatchReport {
	r := &domain.BatchReport{
		RunID:             in.RunID,
		Kind:              in.Kind,
		TotalTargets:      len(in.Outcomes) + in.Skipped,
		Skipped:           in.Skipped,
		BalanceBefore:     in.BalanceBefore,
		BalanceAfter:      in.BalanceAfter,
		BalanceAfterKnown: in.BalanceAfterKnown,
		Outcomes:          in.Outcomes,
		StartedAt:         in.StartedAt,
		FinishedAt:        in.FinishedAt,
	}

	for _, o := range in.Outcomes {
		if o.Succeeded() {
			r.Succeeded++
			r.ValueLamports += o.Value()
		} else {
			r.Failed++
		}
	}

	if in.BalanceAfterKnown {
		r.ActualDelta = int64(in.BalanceAfter) - int64(in.BalanceBefore)
		intended := int64(in.Kind.Direction()) * int64(r.ValueLamports)
		r.IncidentalCost = r.ActualDelta - intended
	}

	return r
}
