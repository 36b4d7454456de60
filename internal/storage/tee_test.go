package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/storage"
	"solana-ledger-ops/internal/storage/memory"
)

type brokenStore struct {
	*memory.RunStore
}

func (brokenStore) InsertReport(context.Context, *domain.BatchReport) error {
	return errors.New("sink down")
}

func TestTee_MirrorsWrites(t *testing.T) {
	ctx := context.Background()
	primary, sink := memory.NewRunStore(), memory.NewRunStore()
	store := storage.Tee(primary, sink)

	report := &domain.BatchReport{
		RunID:    "run-1",
		Kind:     domain.KindReclaim,
		Outcomes: []domain.Outcome{domain.ClosureSucceeded{Account: "a", Signature: "s", RentRecovered: 1}},
	}
	require.NoError(t, store.InsertReport(ctx, report))
	require.NoError(t, store.InsertOutcomes(ctx, storage.NewOutcomeRecords(report)))

	for _, s := range []storage.RunStore{primary, sink, store} {
		_, err := s.GetReport(ctx, "run-1")
		assert.NoError(t, err)
		outcomes, err := s.GetOutcomes(ctx, "run-1")
		require.NoError(t, err)
		assert.Len(t, outcomes, 1)
	}
}

func TestTee_PrimaryErrorStops(t *testing.T) {
	ctx := context.Background()
	primary, sink := memory.NewRunStore(), memory.NewRunStore()
	store := storage.Tee(primary, sink)

	err := store.InsertReport(ctx, &domain.BatchReport{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	require.NoError(t, primary.InsertReport(ctx, &domain.BatchReport{RunID: "dup", Kind: domain.KindReclaim}))
	err = store.InsertReport(ctx, &domain.BatchReport{RunID: "dup", Kind: domain.KindReclaim})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = sink.GetReport(ctx, "dup")
	assert.ErrorIs(t, err, storage.ErrNotFound, "sink must not receive a rejected write")
}

func TestTee_SinkErrorReported(t *testing.T) {
	ctx := context.Background()
	primary := memory.NewRunStore()
	store := storage.Tee(primary, brokenStore{memory.NewRunStore()})

	err := store.InsertReport(ctx, &domain.BatchReport{RunID: "run-2", Kind: domain.KindTransfer})
	assert.EqualError(t, err, "sink down")

	_, err = primary.GetReport(ctx, "run-2")
	assert.NoError(t, err)
}

func TestTee_NoSinks(t *testing.T) {
	primary := memory.NewRunStore()
	assert.Same(t, primary, storage.Tee(primary))
}
