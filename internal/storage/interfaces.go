package storage

import (
	"context"

	"solana-ledger-ops/internal/domain"
)

// RunStore is the append-only run ledger: one report per batch run plus one
// row per outcome.
type RunStore interface {
	// InsertReport adds a finished run. Returns ErrDuplicateKey if run_id exists.
	// Outcomes on the report are ignored; use InsertOutcomes.
	InsertReport(ctx context.Context, r *domain.BatchReport) error

	// InsertOutcomes adds outcome rows atomically. Fails entire batch on any duplicate.
	InsertOutcomes(ctx context.Context, records []*OutcomeRecord) error

	// GetReport retrieves a run by its ID. Returns ErrNotFound if not exists.
	// The returned report has no Outcomes.
	GetReport(ctx context.Context, runID string) (*domain.BatchReport, error)

	// GetOutcomes retrieves the outcomes of a run, ordered by index ASC.
	GetOutcomes(ctx context.Context, runID string) ([]*OutcomeRecord, error)

	// GetOutcomesBySignature retrieves outcomes that carry signature.
	// Used to dedup before resubmitting a timed out operation.
	GetOutcomesBySignature(ctx context.Context, signature string) ([]*OutcomeRecord, error)
}
