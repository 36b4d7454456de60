package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the operation a batch ran.
type Kind string

const (
	KindReclaim  Kind = "reclaim"
	KindTransfer Kind = "transfer"
)

// Direction is how successful outcomes move the wallet balance.
type Direction int

const (
	// Inflow outcomes add value to the wallet (rent recovery).
	Inflow Direction = 1
	// Outflow outcomes remove value from the wallet (transfers).
	Outflow Direction = -1
)

// Direction returns the balance direction of a batch kind.
func (k Kind) Direction() Direction {
	if k == KindTransfer {
		return Outflow
	}
	return Inflow
}

// BatchReport summarizes one batch run. Amounts are lamports.
type BatchReport struct {
	RunID        string
	Kind         Kind
	TotalTargets int
	Succeeded    int
	Failed       int
	Skipped      int // abandoned by cancellation, never attempted

	ValueLamports uint64 // sum of outcome values, before fee reconciliation

	BalanceBefore     uint64
	BalanceAfter      uint64
	BalanceAfterKnown bool
	ActualDelta       int64 // BalanceAfter - BalanceBefore
	IncidentalCost    int64 // ActualDelta - intended delta; negative means fees paid

	Outcomes []Outcome

	StartedAt  time.Time
	FinishedAt time.Time
}

// ValueSOL returns ValueLamports in SOL.
func (r *BatchReport) ValueSOL() decimal.Decimal {
	return LamportsToSOL(int64(r.ValueLamports))
}

// IncidentalCostSOL returns IncidentalCost in SOL.
func (r *BatchReport) IncidentalCostSOL() decimal.Decimal {
	return LamportsToSOL(r.IncidentalCost)
}

// Failures returns the failed outcomes, for callers deciding what to retry.
func (r *BatchReport) Failures() []Failed {
	var out []Failed
	for _, o := range r.Outcomes {
		if f, ok := o.(Failed); ok {
			out = append(out, f)
		}
	}
	return out
}

// Progress is emitted after each chunk completes.
type Progress struct {
	Chunk     int // 1-based index of the chunk just completed
	Chunks    int
	Processed int
	Succeeded int
	Failed    int
	Total     int
}
