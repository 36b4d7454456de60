package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/storage"
)

func testReport(runID string) *domain.BatchReport {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.BatchReport{
		RunID:             runID,
		Kind:              domain.KindReclaim,
		TotalTargets:      3,
		Succeeded:         2,
		Failed:            1,
		ValueLamports:     4078560,
		BalanceBefore:     10_000_000_000,
		BalanceAfter:      10_004_068_560,
		BalanceAfterKnown: true,
		ActualDelta:       4068560,
		IncidentalCost:    -10000,
		Outcomes: []domain.Outcome{
			domain.ClosureSucceeded{Account: "a1", Signature: "s1", RentRecovered: 2039280},
			domain.ClosureSucceeded{Account: "a2", Signature: "s2", RentRecovered: 2039280},
			domain.NewFailed("a3", domain.StageBuilt, domain.ErrPreconditionFailed, "balance not zero"),
		},
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Second),
	}
}

func TestRunStore_InsertAndGetReport(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if err := store.InsertReport(ctx, testReport("run1")); err != nil {
		t.Fatalf("InsertReport failed: %v", err)
	}

	got, err := store.GetReport(ctx, "run1")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}

	if got.IncidentalCost != -10000 {
		t.Errorf("IncidentalCost mismatch: got %d, want %d", got.IncidentalCost, -10000)
	}
	if got.Outcomes != nil {
		t.Errorf("expected report without outcomes, got %d", len(got.Outcomes))
	}
}

func TestRunStore_DuplicateReport(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if err := store.InsertReport(ctx, testReport("run1")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertReport(ctx, testReport("run1"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_InvalidReport(t *testing.T) {
	store := NewRunStore()

	err := store.InsertReport(context.Background(), &domain.BatchReport{Kind: domain.KindReclaim})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRunStore_NotFound(t *testing.T) {
	store := NewRunStore()

	_, err := store.GetReport(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_Outcomes(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	records := storage.NewOutcomeRecords(testReport("run1"))
	// Insert out of order; reads come back by index
	shuffled := []*storage.OutcomeRecord{records[2], records[0], records[1]}
	if err := store.InsertOutcomes(ctx, shuffled); err != nil {
		t.Fatalf("InsertOutcomes failed: %v", err)
	}

	got, err := store.GetOutcomes(ctx, "run1")
	if err != nil {
		t.Fatalf("GetOutcomes failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(got))
	}
	for i, o := range got {
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
	}
	if got[2].Reason != "precondition failed" {
		t.Errorf("Reason mismatch: got %q", got[2].Reason)
	}

	other, err := store.GetOutcomes(ctx, "run2")
	if err != nil {
		t.Fatalf("GetOutcomes failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no outcomes for unknown run, got %d", len(other))
	}
}

func TestRunStore_InsertOutcomesAtomic(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	records := storage.NewOutcomeRecords(testReport("run1"))
	if err := store.InsertOutcomes(ctx, records[:1]); err != nil {
		t.Fatalf("InsertOutcomes failed: %v", err)
	}

	// records[0] already exists, so nothing in this batch may land
	err := store.InsertOutcomes(ctx, records)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetOutcomes(ctx, "run1")
	if len(got) != 1 {
		t.Errorf("expected 1 outcome after failed batch, got %d", len(got))
	}

	// Intra-batch duplicate
	err = store.InsertOutcomes(ctx, []*storage.OutcomeRecord{records[1], records[1]})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestRunStore_GetOutcomesBySignature(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if err := store.InsertOutcomes(ctx, storage.NewOutcomeRecords(testReport("run1"))); err != nil {
		t.Fatalf("InsertOutcomes failed: %v", err)
	}

	got, err := store.GetOutcomesBySignature(ctx, "s2")
	if err != nil {
		t.Fatalf("GetOutcomesBySignature failed: %v", err)
	}
	if len(got) != 1 || got[0].Target != "a2" {
		t.Errorf("unexpected result: %+v", got)
	}

	_, err = store.GetOutcomesBySignature(ctx, "")
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
