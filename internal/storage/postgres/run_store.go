package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/observability"
	"solana-ledger-ops/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const reportColumns = `
	run_id, kind, total_targets, succeeded, failed, skipped,
	value_lamports, balance_before, balance_after, balance_after_known,
	actual_delta, incidental_cost, started_at, finished_at`

const outcomeColumns = `
	outcome_id, run_id, idx, kind, target, succeeded,
	stage, reason, detail, signature, value_lamports, explorer_url`

// InsertReport adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) InsertReport(ctx context.Context, r *domain.BatchReport) (err error) {
	if err := storage.ValidateReport(r); err != nil {
		return err
	}
	defer observe("insert_report", time.Now(), &err)

	query := `INSERT INTO batch_runs (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, string(r.Kind), r.TotalTargets, r.Succeeded, r.Failed, r.Skipped,
		int64(r.ValueLamports), int64(r.BalanceBefore), int64(r.BalanceAfter), r.BalanceAfterKnown,
		r.ActualDelta, r.IncidentalCost, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert batch run: %w", err)
	}
	return nil
}

// InsertOutcomes adds outcome rows in one transaction. Fails entire batch on any duplicate.
func (s *RunStore) InsertOutcomes(ctx context.Context, records []*storage.OutcomeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, o := range records {
		if err := storage.ValidateOutcome(o); err != nil {
			return err
		}
	}
	defer observe("insert_outcomes", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO batch_outcomes (` + outcomeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, o := range records {
		_, err := tx.Exec(ctx, query,
			o.OutcomeID, o.RunID, o.Index, string(o.Kind), o.Target, o.Succeeded,
			o.Stage, o.Reason, o.Detail, o.Signature, int64(o.ValueLamports), o.ExplorerURL,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isCheckViolation(err) {
				return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
			}
			return fmt.Errorf("insert batch outcome: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetReport retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetReport(ctx context.Context, runID string) (_ *domain.BatchReport, err error) {
	defer observe("get_report", time.Now(), &err)

	query := `SELECT ` + reportColumns + ` FROM batch_runs WHERE run_id = $1`

	var (
		r                     domain.BatchReport
		kind                  string
		value, before, after  int64
		startedAt, finishedAt time.Time
	)
	err = s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &kind, &r.TotalTargets, &r.Succeeded, &r.Failed, &r.Skipped,
		&value, &before, &after, &r.BalanceAfterKnown,
		&r.ActualDelta, &r.IncidentalCost, &startedAt, &finishedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get batch run: %w", err)
	}

	r.Kind = domain.Kind(kind)
	r.ValueLamports = uint64(value)
	r.BalanceBefore = uint64(before)
	r.BalanceAfter = uint64(after)
	r.StartedAt = startedAt.UTC()
	r.FinishedAt = finishedAt.UTC()
	return &r, nil
}

// GetOutcomes retrieves the outcomes of a run, ordered by index ASC.
func (s *RunStore) GetOutcomes(ctx context.Context, runID string) (_ []*storage.OutcomeRecord, err error) {
	defer observe("get_outcomes", time.Now(), &err)

	query := `SELECT ` + outcomeColumns + ` FROM batch_outcomes WHERE run_id = $1 ORDER BY idx ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get batch outcomes: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetOutcomesBySignature retrieves outcomes that carry signature.
func (s *RunStore) GetOutcomesBySignature(ctx context.Context, signature string) (_ []*storage.OutcomeRecord, err error) {
	if signature == "" {
		return nil, storage.ErrInvalidInput
	}
	defer observe("get_outcomes_by_signature", time.Now(), &err)

	query := `SELECT ` + outcomeColumns + ` FROM batch_outcomes WHERE signature = $1 ORDER BY run_id ASC, idx ASC`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get batch outcomes by signature: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

func scanOutcomes(rows pgx.Rows) ([]*storage.OutcomeRecord, error) {
	var result []*storage.OutcomeRecord
	for rows.Next() {
		var (
			o     storage.OutcomeRecord
			kind  string
			value int64
		)
		err := rows.Scan(
			&o.OutcomeID, &o.RunID, &o.Index, &kind, &o.Target, &o.Succeeded,
			&o.Stage, &o.Reason, &o.Detail, &o.Signature, &value, &o.ExplorerURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch outcome: %w", err)
		}
		o.Kind = domain.Kind(kind)
		o.ValueLamports = uint64(value)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch outcomes: %w", err)
	}
	return result, nil
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}
