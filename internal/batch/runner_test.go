package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"solana-ledger-ops/internal/domain"
)

// balances serves successive balance reads.
type balances struct {
	mu     sync.Mutex
	values []uint64
	errs   []error
	calls  int
}

func (b *balances) GetBalance(context.Context, string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return 0, b.errs[i]
	}
	if i < len(b.values) {
		return b.values[i], nil
	}
	return 0, nil
}

// recorder is an Executor that records start/end times per target.
type recorder struct {
	mu       sync.Mutex
	work     time.Duration
	starts   map[int]time.Time
	ends     map[int]time.Time
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	fail     func(int) bool
}

func newRecorder(work time.Duration) *recorder {
	return &recorder{work: work, starts: map[int]time.Time{}, ends: map[int]time.Time{}}
}

func (r *recorder) Execute(_ context.Context, target int) domain.Outcome {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	r.starts[target] = time.Now()
	r.mu.Unlock()

	time.Sleep(r.work)

	r.mu.Lock()
	r.ends[target] = time.Now()
	r.mu.Unlock()
	r.inFlight.Add(-1)

	addr := fmt.Sprintf("acct-%d", target)
	if r.fail != nil && r.fail(target) {
		return domain.NewFailed(addr, domain.StageSent, domain.ErrConfirmationTimeout, "confirmation timeout")
	}
	return domain.ClosureSucceeded{Account: addr, Signature: "sig-" + addr, RentRecovered: 2_000_000}
}

func targets(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func newTestRunner(t *testing.T, exec Executor[int], bal BalanceReader, cfg Config, progress func(domain.Progress)) *Runner[int] {
	t.Helper()
	return NewRunner(Options[int]{
		Kind:       domain.KindReclaim,
		Wallet:     "wallet",
		Executor:   exec,
		Balances:   bal,
		Config:     cfg,
		OnProgress: progress,
		Logger:     zaptest.NewLogger(t),
	})
}

func TestRun_ChunksAndDelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	const delay = 60 * time.Millisecond
	rec := newRecorder(20 * time.Millisecond)
	var progress []domain.Progress

	r := newTestRunner(t, rec, &balances{}, Config{BatchSize: 5, BatchDelay: delay}, func(p domain.Progress) {
		progress = append(progress, p)
	})

	report, err := r.Run(context.Background(), targets(13))
	require.NoError(t, err)

	assert.Equal(t, 13, report.TotalTargets)
	assert.Equal(t, 13, report.Succeeded)
	assert.Len(t, report.Outcomes, 13)
	assert.Equal(t, int32(13), rec.calls.Load(), "exactly one attempt per target")
	assert.LessOrEqual(t, rec.peak.Load(), int32(5), "never more than one chunk in flight")

	require.Len(t, progress, 3)
	assert.Equal(t, []int{5, 10, 13}, []int{progress[0].Processed, progress[1].Processed, progress[2].Processed})
	assert.Equal(t, 3, progress[2].Chunks)
	assert.Equal(t, 13, progress[2].Total)

	// chunks are 0-4, 5-9, 10-12 and separated by the delay
	chunkBounds := [][2]int{{0, 5}, {5, 10}, {10, 13}}
	for c := 1; c < len(chunkBounds); c++ {
		var prevEnd time.Time
		for i := chunkBounds[c-1][0]; i < chunkBounds[c-1][1]; i++ {
			if rec.ends[i].After(prevEnd) {
				prevEnd = rec.ends[i]
			}
		}
		for i := chunkBounds[c][0]; i < chunkBounds[c][1]; i++ {
			gap := rec.starts[i].Sub(prevEnd)
			assert.GreaterOrEqual(t, gap, delay, "target %d started %s after previous chunk", i, gap)
		}
	}
}

func TestRun_ConcurrentWithinChunk(t *testing.T) {
	defer goleak.VerifyNone(t)

	// each item waits for its chunk mates; sequential execution would deadlock
	var wg sync.WaitGroup
	wg.Add(4)
	exec := ExecutorFunc[int](func(_ context.Context, target int) domain.Outcome {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return domain.ClosureSucceeded{Account: fmt.Sprint(target)}
		case <-time.After(2 * time.Second):
			return domain.NewFailed(fmt.Sprint(target), domain.StageBuilt, domain.ErrUpstreamUnavailable, "ran sequentially")
		}
	})

	report, err := newTestRunner(t, exec, &balances{}, Config{BatchSize: 4}, nil).Run(context.Background(), targets(4))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)
}

func TestRun_Empty(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder(0)
	called := false
	r := newTestRunner(t, rec, &balances{}, Config{BatchDelay: time.Hour}, func(domain.Progress) { called = true })

	report, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, report.TotalTargets)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Zero(t, rec.calls.Load())
	assert.False(t, called)
}

func TestRun_FailuresDoNotAbort(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder(0)
	rec.fail = func(i int) bool { return i%2 == 1 }

	report, err := newTestRunner(t, rec, &balances{}, Config{BatchSize: 3}, nil).Run(context.Background(), targets(7))
	require.NoError(t, err)

	assert.Equal(t, int32(7), rec.calls.Load())
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	assert.Len(t, report.Failures(), 3)
}

func TestRun_CancelAtChunkBoundary(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newTestRunner(t, rec, &balances{}, Config{BatchSize: 5, BatchDelay: time.Hour}, func(p domain.Progress) {
		if p.Chunk == 1 {
			cancel()
		}
	})

	start := time.Now()
	report, err := r.Run(ctx, targets(13))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute, "cancellation must interrupt the delay")

	require.NotNil(t, report)
	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, 8, report.Skipped)
	assert.Equal(t, 13, report.TotalTargets)
	assert.Equal(t, int32(5), rec.calls.Load())
}

func TestRun_InFlightItemsFinishAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := ExecutorFunc[int](func(itemCtx context.Context, target int) domain.Outcome {
		cancel()
		time.Sleep(10 * time.Millisecond)
		if itemCtx.Err() != nil {
			return domain.NewFailed(fmt.Sprint(target), domain.StageSent, itemCtx.Err(), "interrupted")
		}
		return domain.ClosureSucceeded{Account: fmt.Sprint(target), RentRecovered: 1}
	})

	report, err := newTestRunner(t, exec, &balances{}, Config{BatchSize: 3}, nil).Run(ctx, targets(6))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 3, report.Skipped)
}

func TestRun_BalanceBeforeFatal(t *testing.T) {
	rec := newRecorder(0)
	bal := &balances{errs: []error{errors.New("connection refused")}}

	report, err := newTestRunner(t, rec, bal, Config{}, nil).Run(context.Background(), targets(3))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Zero(t, rec.calls.Load())
}

func TestRun_BalanceAfterBestEffort(t *testing.T) {
	rec := newRecorder(0)
	bal := &balances{values: []uint64{10_000_000_000}, errs: []error{nil, errors.New("timeout")}}

	report, err := newTestRunner(t, rec, bal, Config{}, nil).Run(context.Background(), targets(2))
	require.NoError(t, err)
	assert.False(t, report.BalanceAfterKnown)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.IncidentalCost)
}

func TestRun_Reconciles(t *testing.T) {
	rec := newRecorder(0)
	// 3 closures of 0.002 SOL, 15000 lamports of fees
	bal := &balances{values: []uint64{1_000_000_000, 1_005_985_000}}

	report, err := newTestRunner(t, rec, bal, Config{BatchSize: 2}, nil).Run(context.Background(), targets(3))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, domain.KindReclaim, report.Kind)
	assert.Equal(t, uint64(6_000_000), report.ValueLamports)
	assert.Equal(t, int64(5_985_000), report.ActualDelta)
	assert.Equal(t, int64(-15_000), report.IncidentalCost)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}
