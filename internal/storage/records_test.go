package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/idhash"
)

func TestNewOutcomeRecords(t *testing.T) {
	report := &domain.BatchReport{
		RunID: "run-1",
		Kind:  domain.KindTransfer,
		Outcomes: []domain.Outcome{
			domain.TransferSucceeded{Destination: "dest-a", Amount: 500, Signature: "sig-a", ExplorerURL: "https://explorer.solana.com/tx/sig-a"},
			domain.Failed{Address: "dest-b", Stage: domain.StageSent, Reason: domain.ErrConfirmationTimeout, Detail: "confirmation timeout", Signature: "sig-b"},
			domain.TransferSucceeded{Destination: "dest-a", Amount: 700, Signature: "sig-c"},
		},
	}

	records := NewOutcomeRecords(report)
	require.Len(t, records, 3)

	assert.Equal(t, idhash.ComputeOutcomeID("run-1", "dest-a", 0), records[0].OutcomeID)
	assert.True(t, records[0].Succeeded)
	assert.Equal(t, "confirmed", records[0].Stage)
	assert.Equal(t, uint64(500), records[0].ValueLamports)
	assert.Equal(t, "https://explorer.solana.com/tx/sig-a", records[0].ExplorerURL)

	assert.False(t, records[1].Succeeded)
	assert.Equal(t, "sent", records[1].Stage)
	assert.Equal(t, "confirmation timeout", records[1].Reason)
	assert.Equal(t, "sig-b", records[1].Signature)
	assert.Zero(t, records[1].ValueLamports)

	// Same destination twice still yields distinct IDs
	assert.NotEqual(t, records[0].OutcomeID, records[2].OutcomeID)
	assert.Equal(t, 2, records[2].Index)
	assert.Equal(t, domain.KindTransfer, records[2].Kind)
}

func TestNewOutcomeRecords_Closure(t *testing.T) {
	report := &domain.BatchReport{
		RunID:    "run-2",
		Kind:     domain.KindReclaim,
		Outcomes: []domain.Outcome{domain.ClosureSucceeded{Account: "acct", Signature: "sig", RentRecovered: 2039280}},
	}

	records := NewOutcomeRecords(report)
	require.Len(t, records, 1)
	assert.Equal(t, "sig", records[0].Signature)
	assert.Equal(t, uint64(2039280), records[0].ValueLamports)
	assert.Empty(t, records[0].Reason)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, ValidateReport(nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateReport(&domain.BatchReport{Kind: domain.KindReclaim}), ErrInvalidInput)
	assert.NoError(t, ValidateReport(&domain.BatchReport{RunID: "r", Kind: domain.KindReclaim}))

	assert.ErrorIs(t, ValidateOutcome(&OutcomeRecord{RunID: "r", Target: "t"}), ErrInvalidInput)
	assert.NoError(t, ValidateOutcome(&OutcomeRecord{OutcomeID: "id", RunID: "r", Target: "t"}))
}
