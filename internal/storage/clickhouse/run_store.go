package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/observability"
	"solana-ledger-ops/internal/storage"
)

// RunStore implements storage.RunStore using ClickHouse.
// MergeTree does not enforce keys, so duplicates are checked before insert.
type RunStore struct {
	conn *Conn
}

// NewRunStore creates a new RunStore.
func NewRunStore(conn *Conn) *RunStore {
	return &RunStore{conn: conn}
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

	exists, err := s.count(ctx, "SELECT count() FROM batch_runs WHERE run_id = ?", r.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists > 0 {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO batch_runs (` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = s.conn.Exec(ctx, query,
		r.RunID, string(r.Kind), uint32(r.TotalTargets), uint32(r.Succeeded), uint32(r.Failed), uint32(r.Skipped),
		r.ValueLamports, r.BalanceBefore, r.BalanceAfter, r.BalanceAfterKnown,
		r.ActualDelta, r.IncidentalCost, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch run: %w", err)
	}
	return nil
}

// InsertOutcomes adds outcome rows in one block. Fails entire batch on any duplicate.
func (s *RunStore) InsertOutcomes(ctx context.Context, records []*storage.OutcomeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, o := range records {
		if err := storage.ValidateOutcome(o); err != nil {
			return err
		}
		if _, exists := seen[o.OutcomeID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[o.OutcomeID] = struct{}{}
		ids = append(ids, o.OutcomeID)
	}
	defer observe("insert_outcomes", time.Now(), &err)

	// Check for duplicates against existing rows
	existing, err := s.count(ctx, "SELECT count() FROM batch_outcomes WHERE outcome_id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO batch_outcomes (`+outcomeColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range records {
		err = batch.Append(
			o.OutcomeID, o.RunID, uint32(o.Index), string(o.Kind), o.Target, o.Succeeded,
			o.Stage, o.Reason, o.Detail, o.Signature, o.ValueLamports, o.ExplorerURL,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetReport retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetReport(ctx context.Context, runID string) (_ *domain.BatchReport, err error) {
	defer observe("get_report", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `SELECT `+reportColumns+` FROM batch_runs WHERE run_id = ? LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batch run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate batch runs: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		r                                 domain.BatchReport
		kind                              string
		total, succeeded, failed, skipped uint32
	)
	err = rows.Scan(
		&r.RunID, &kind, &total, &succeeded, &failed, &skipped,
		&r.ValueLamports, &r.BalanceBefore, &r.BalanceAfter, &r.BalanceAfterKnown,
		&r.ActualDelta, &r.IncidentalCost, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan batch run: %w", err)
	}

	r.Kind = domain.Kind(kind)
	r.TotalTargets = int(total)
	r.Succeeded = int(succeeded)
	r.Failed = int(failed)
	r.Skipped = int(skipped)
	return &r, nil
}

// GetOutcomes retrieves the outcomes of a run, ordered by index ASC.
func (s *RunStore) GetOutcomes(ctx context.Context, runID string) (_ []*storage.OutcomeRecord, err error) {
	defer observe("get_outcomes", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `SELECT `+outcomeColumns+` FROM batch_outcomes WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batch outcomes: %w", err)
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

	rows, err := s.conn.Query(ctx, `SELECT `+outcomeColumns+` FROM batch_outcomes WHERE signature = ? ORDER BY run_id ASC, idx ASC`, signature)
	if err != nil {
		return nil, fmt.Errorf("query batch outcomes by signature: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

func (s *RunStore) count(ctx context.Context, query string, args ...interface{}) (uint64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanOutcomes(rows driver.Rows) ([]*storage.OutcomeRecord, error) {
	var result []*storage.OutcomeRecord
	for rows.Next() {
		var (
			o    storage.OutcomeRecord
			kind string
			idx  uint32
		)
		err := rows.Scan(
			&o.OutcomeID, &o.RunID, &idx, &kind, &o.Target, &o.Succeeded,
			&o.Stage, &o.Reason, &o.Detail, &o.Signature, &o.ValueLamports, &o.ExplorerURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch outcome: %w", err)
		}
		o.Index = int(idx)
		o.Kind = domain.Kind(kind)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch outcomes: %w", err)
	}
	return result, nil
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *err)
}
