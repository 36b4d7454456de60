package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/storage"
)

func createTestReport(runID string) *domain.BatchReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.BatchReport{
		RunID:             runID,
		Kind:              domain.KindReclaim,
		TotalTargets:      2,
		Succeeded:         1,
		Failed:            1,
		ValueLamports:     2039280,
		BalanceBefore:     5_000_000_000,
		BalanceAfter:      5_002_034_280,
		BalanceAfterKnown: true,
		ActualDelta:       2034280,
		IncidentalCost:    -5000,
		Outcomes: []domain.Outcome{
			domain.ClosureSucceeded{Account: "acct-1", Signature: "sig-1", RentRecovered: 2039280},
			domain.Failed{Address: "acct-2", Stage: domain.StageSent, Reason: domain.ErrConfirmationTimeout, Detail: "confirmation timeout", Signature: "sig-2"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestRunStore_InsertAndGetReport(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(conn)

	report := createTestReport("ch-run-1")
	require.NoError(t, store.InsertReport(ctx, report))

	got, err := store.GetReport(ctx, "ch-run-1")
	require.NoError(t, err)

	assert.Equal(t, domain.KindReclaim, got.Kind)
	assert.Equal(t, 2, got.TotalTargets)
	assert.Equal(t, uint64(2039280), got.ValueLamports)
	assert.Equal(t, int64(-5000), got.IncidentalCost)
	assert.True(t, got.BalanceAfterKnown)
	assert.True(t, report.FinishedAt.Equal(got.FinishedAt))
}

func TestRunStore_DuplicateAndNotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(conn)

	require.NoError(t, store.InsertReport(ctx, createTestReport("ch-run-2")))
	assert.ErrorIs(t, store.InsertReport(ctx, createTestReport("ch-run-2")), storage.ErrDuplicateKey)

	_, err := store.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_Outcomes(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(conn)

	records := storage.NewOutcomeRecords(createTestReport("ch-run-3"))
	require.NoError(t, store.InsertOutcomes(ctx, records))
	assert.ErrorIs(t, store.InsertOutcomes(ctx, records[1:]), storage.ErrDuplicateKey)

	got, err := store.GetOutcomes(ctx, "ch-run-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acct-1", got[0].Target)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, "sent", got[1].Stage)
	assert.Equal(t, "confirmation timeout", got[1].Reason)

	bySig, err := store.GetOutcomesBySignature(ctx, "sig-2")
	require.NoError(t, err)
	require.Len(t, bySig, 1)
	assert.False(t, bySig[0].Succeeded)
}
