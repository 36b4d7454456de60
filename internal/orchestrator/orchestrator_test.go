package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-ledger-ops/internal/batch"
	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/ledger"
	"solana-ledger-ops/internal/solana"
	"solana-ledger-ops/internal/solana/stub"
	"solana-ledger-ops/internal/storage"
	"solana-ledger-ops/internal/storage/memory"
	"solana-ledger-ops/internal/wallet"
)

const rentExempt = 2_039_280

type testEnv struct {
	conn     *stub.Connection
	signer   *wallet.Keypair
	store    *memory.RunStore
	progress []domain.Progress
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kp, err := wallet.NewRandomKeypair()
	require.NoError(t, err)
	return &testEnv{conn: stub.NewConnection(), signer: kp, store: memory.NewRunStore()}
}

func (e *testEnv) service(t *testing.T, store storage.RunStore) *Service {
	t.Helper()
	svc, err := New(Options{
		Conn:   e.conn,
		Signer: e.signer,
		Submit: ledger.Config{PollInterval: time.Millisecond, RetryDelay: time.Millisecond},
		Batch:  batch.Config{BatchSize: 2},
		Store:  store,
		OnProgress: func(_ domain.Kind, p domain.Progress) {
			e.progress = append(e.progress, p)
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return svc
}

func (e *testEnv) wallet() string {
	return e.signer.PublicKey().String()
}

func randomAddress(t *testing.T) string {
	t.Helper()
	kp, err := wallet.NewRandomKeypair()
	require.NoError(t, err)
	return kp.PublicKey().String()
}

func (e *testEnv) addTokenAccount(t *testing.T, amount uint64) string {
	t.Helper()
	addr := randomAddress(t)
	mint := randomAddress(t)
	require.NoError(t, e.conn.SetTokenAccount(addr, solana.TokenProgramID, mint, e.wallet(), amount, rentExempt))
	e.conn.AddHolding(e.wallet(), solana.TokenHolding{
		Address:   addr,
		ProgramID: solana.TokenProgramID,
		Lamports:  rentExempt,
		Mint:      mint,
		Owner:     e.wallet(),
		Amount:    strconv.FormatUint(amount, 10),
		State:     "initialized",
	})
	return addr
}

func TestNew_RequiresDependencies(t *testing.T) {
	kp, err := wallet.NewRandomKeypair()
	require.NoError(t, err)

	_, err = New(Options{Signer: kp})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Options{Conn: stub.NewConnection()})
	assert.ErrorIs(t, err, domain.ErrSigner)
}

func TestService_ScanReclaimable(t *testing.T) {
	env := newTestEnv(t)
	empty1 := env.addTokenAccount(t, 0)
	env.addTokenAccount(t, 42)
	empty2 := env.addTokenAccount(t, 0)

	svc := env.service(t, nil)
	assert.Equal(t, env.wallet(), svc.Wallet())

	candidates, err := svc.ScanReclaimable(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, empty1, candidates[0].Address)
	assert.Equal(t, empty2, candidates[1].Address)
}

func TestService_ReclaimAll(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.addTokenAccount(t, 0)
	}
	env.addTokenAccount(t, 7)

	// 3 closures at 5000 lamports fee each
	before := uint64(1_000_000_000)
	after := before + 3*rentExempt - 15_000
	env.conn.SetBalances(env.wallet(), before, after)

	svc := env.service(t, env.store)
	report, err := svc.ReclaimAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.KindReclaim, report.Kind)
	assert.Equal(t, 3, report.TotalTargets)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, uint64(3*rentExempt), report.ValueLamports)
	assert.Equal(t, int64(-15_000), report.IncidentalCost)
	assert.Len(t, env.conn.Sent(), 3)

	// Chunks of 2: progress after 2 then 3
	require.Len(t, env.progress, 2)
	assert.Equal(t, 2, env.progress[0].Processed)
	assert.Equal(t, 3, env.progress[1].Processed)

	stored, err := env.store.GetReport(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Succeeded)

	outcomes, err := env.store.GetOutcomes(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.True(t, o.Succeeded)
		assert.NotEmpty(t, o.Signature)
	}

	prior, err := svc.PriorOutcomes(context.Background(), outcomes[0].Signature)
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, outcomes[0].Target, prior[0].Target)
}

func TestService_ReclaimAll_ScanFailure(t *testing.T) {
	env := newTestEnv(t)
	env.conn.Errors[stub.MethodGetTokenAccountsByOwner] = domain.ErrUpstreamUnavailable

	svc := env.service(t, env.store)
	report, err := svc.ReclaimAll(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Zero(t, env.conn.Calls(stub.MethodSendTransaction))
}

func TestService_Transfer(t *testing.T) {
	env := newTestEnv(t)
	env.conn.SetBalances(env.wallet(), 5_000_000_000, 5_000_000_000-1_000_000_000-5000)

	svc := env.service(t, env.store)
	report, err := svc.Transfer(context.Background(), []domain.TransferRequest{
		{Destination: randomAddress(t), AmountLamports: 1_000_000_000},
		{Destination: "not-an-address", AmountLamports: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindTransfer, report.Kind)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int64(-5000), report.IncidentalCost)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], domain.ErrInvalidInput)
	assert.True(t, failures[0].RetrySafe())

	outcomes, err := env.store.GetOutcomes(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Contains(t, outcomes[0].ExplorerURL, "https://explorer.solana.com/tx/")
	assert.Equal(t, "invalid input", outcomes[1].Reason)
}

func TestService_CancelledRunIsPersisted(t *testing.T) {
	env := newTestEnv(t)
	env.addTokenAccount(t, 0)

	svc := env.service(t, env.store)
	candidates, err := svc.ScanReclaimable(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Reclaim(ctx, candidates)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Skipped)

	stored, err := env.store.GetReport(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Skipped)
}

type failingStore struct {
	*memory.RunStore
	calls int
}

func (f *failingStore) InsertReport(context.Context, *domain.BatchReport) error {
	f.calls++
	return errors.New("connection refused")
}

func TestService_PersistenceFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	store := &failingStore{RunStore: memory.NewRunStore()}

	svc := env.service(t, store)
	report, err := svc.Transfer(context.Background(), []domain.TransferRequest{
		{Destination: randomAddress(t), AmountLamports: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, store.calls)
}

func TestService_PriorOutcomesWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t, nil)

	got, err := svc.PriorOutcomes(context.Background(), "sig")
	require.NoError(t, err)
	assert.Nil(t, got)
}
