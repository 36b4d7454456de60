// Package batch runs one executor over many targets in fixed-size chunks.
// Items of a chunk run concurrently; chunks run one after another with a
// pause in between to stay under endpoint rate limits.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-ledger-ops/internal/accounting"
	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/observability"
)

// Defaults.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 2 * time.Second
)

// Executor performs one operation. It must never panic and reports every
// failure as a domain.Failed outcome.
type Executor[T any] interface {
	Execute(ctx context.Context, target T) domain.Outcome
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc[T any] func(ctx context.Context, target T) domain.Outcome

// Execute calls f.
func (f ExecutorFunc[T]) Execute(ctx context.Context, target T) domain.Outcome {
	return f(ctx, target)
}

// BalanceReader reads the wallet balance around a run.
type BalanceReader interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// Config controls chunking.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Options configures a Runner.
type Options[T any] struct {
	Kind     domain.Kind
	Wallet   string
	Executor Executor[T]
	Balances BalanceReader
	Config   Config
	// OnProgress is called on the orchestrating goroutine after each chunk.
	OnProgress func(domain.Progress)
	Logger     *zap.Logger
}

// Runner executes batches. A Runner holds no per-run state and may be reused.
type Runner[T any] struct {
	kind       domain.Kind
	wallet     string
	exec       Executor[T]
	balances   BalanceReader
	size       int
	delay      time.Duration
	onProgress func(domain.Progress)
	logger     *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner[T any](opts Options[T]) *Runner[T] {
	size := opts.Config.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := opts.Config.BatchDelay
	if delay < 0 {
		delay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner[T]{
		kind:       opts.Kind,
		wallet:     opts.Wallet,
		exec:       opts.Executor,
		balances:   opts.Balances,
		size:       size,
		delay:      delay,
		onProgress: opts.OnProgress,
		logger:     logger.Named("batch"),
	}
}

// Run attempts every target exactly once and reconciles the outcomes against
// the wallet balance. Item failures never abort the run.
//
// Cancellation is honored between chunks only: items already started finish
// under a non-cancellable context, the remaining targets are counted as
// skipped, and the partial report is returned together with ctx.Err().
// A failed initial balance read aborts before anything runs.
func (r *Runner[T]) Run(ctx context.Context, targets []T) (*domain.BatchReport, error) {
	runID := uuid.NewString()
	started := time.Now()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("kind", string(r.kind)))

	before, err := r.balances.GetBalance(ctx, r.wallet)
	if err != nil {
		return nil, fmt.Errorf("balance before run: %w", err)
	}

	total := len(targets)
	chunks := (total + r.size - 1) / r.size
	outcomes := make([]domain.Outcome, 0, total)
	execCtx := context.WithoutCancel(ctx)

	var runErr error
	succeeded, failed := 0, 0

	for i := 0; i < chunks; i++ {
		if i > 0 && r.delay > 0 {
			timer := time.NewTimer(r.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		lo := i * r.size
		hi := min(lo+r.size, total)
		results := r.runChunk(execCtx, targets[lo:hi])

		for _, o := range results {
			if o.Succeeded() {
				succeeded++
			} else {
				failed++
			}
			observability.RecordOutcome(string(r.kind), o.Succeeded(), failedStage(o))
		}
		outcomes = append(outcomes, results...)

		observability.RecordChunk(string(r.kind), len(outcomes), total)
		logger.Debug("chunk complete",
			zap.Int("chunk", i+1),
			zap.Int("chunks", chunks),
			zap.Int("processed", len(outcomes)))

		if r.onProgress != nil {
			r.onProgress(domain.Progress{
				Chunk:     i + 1,
				Chunks:    chunks,
				Processed: len(outcomes),
				Succeeded: succeeded,
				Failed:    failed,
				Total:     total,
			})
		}
	}

	after, afterErr := r.balances.GetBalance(execCtx, r.wallet)
	if afterErr != nil {
		logger.Warn("balance after run unavailable, skipping reconciliation", zap.Error(afterErr))
	}

	report := accounting.Reconcile(accounting.Input{
		RunID:             runID,
		Kind:              r.kind,
		BalanceBefore:     before,
		BalanceAfter:      after,
		BalanceAfterKnown: afterErr == nil,
		Outcomes:          outcomes,
		Skipped:           total - len(outcomes),
		StartedAt:         started,
		FinishedAt:        time.Now(),
	})

	status := "ok"
	switch {
	case runErr != nil:
		status = "cancelled"
	case report.Failed > 0:
		status = "partial"
	}
	observability.RecordBatch(string(r.kind), status, report.FinishedAt.Sub(started).Seconds(), report.ValueLamports, report.IncidentalCost)

	logger.Info("batch finished",
		zap.String("status", status),
		zap.Int("total", report.TotalTargets),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Uint64("value_lamports", report.ValueLamports),
		zap.Int64("incidental_lamports", report.IncidentalCost))

	return report, runErr
}

// runChunk executes one chunk concurrently. Each goroutine owns one slot of
// the result slice.
func (r *Runner[T]) runChunk(ctx context.Context, chunk []T) []domain.Outcome {
	results := make([]domain.Outcome, len(chunk))

	var g errgroup.Group
	for j := range chunk {
		g.Go(func() error {
			results[j] = r.exec.Execute(ctx, chunk[j])
			return nil
		})
	}
	_ = g.Wait() // executors report failures as outcomes

	for j, o := range results {
		if o == nil {
			results[j] = domain.NewFailed(fmt.Sprint(chunk[j]), domain.StageBuilt, domain.ErrUpstreamUnavailable, "executor returned no outcome")
		}
	}
	return results
}

func failedStage(o domain.Outcome) string {
	if f, ok := o.(domain.Failed); ok {
		return string(f.Stage)
	}
	return ""
}
