package storage

import (
	"context"
	"errors"

	"solana-ledger-ops/internal/domain"
)

// teeStore writes to a primary store and any number of sinks, and reads from
// the primary only.
type teeStore struct {
	primary RunStore
	sinks   []RunStore
}

// Tee returns a RunStore that mirrors writes into sinks, e.g. a ClickHouse
// analytics copy of the PostgreSQL ledger. A primary write error is returned
// as is; sink errors are joined after it succeeds.
func Tee(primary RunStore, sinks ...RunStore) RunStore {
	if len(sinks) == 0 {
		return primary
	}
	return &teeStore{primary: primary, sinks: sinks}
}

func (t *teeStore) InsertReport(ctx context.Context, r *domain.BatchReport) error {
	if err := t.primary.InsertReport(ctx, r); err != nil {
		return err
	}
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.InsertReport(ctx, r))
	}
	return errors.Join(errs...)
}

func (t *teeStore) InsertOutcomes(ctx context.Context, records []*OutcomeRecord) error {
	if err := t.primary.InsertOutcomes(ctx, records); err != nil {
		return err
	}
	var errs []error
	for _, s := range t.sinks {
		errs = append(errs, s.InsertOutcomes(ctx, records))
	}
	return errors.Join(errs...)
}

func (t *teeStore) GetReport(ctx context.Context, runID string) (*domain.BatchReport, error) {
	return t.primary.GetReport(ctx, runID)
}

func (t *teeStore) GetOutcomes(ctx context.Context, runID string) ([]*OutcomeRecord, error) {
	return t.primary.GetOutcomes(ctx, runID)
}

func (t *teeStore) GetOutcomesBySignature(ctx context.Context, signature string) ([]*OutcomeRecord, error) {
	return t.primary.GetOutcomesBySignature(ctx, signature)
}
