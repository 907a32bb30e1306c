package funding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

var start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type transfer struct {
	from, to solana.PublicKey
	lamports uint64
}

type fakeSender struct {
	mu        sync.Mutex
	transfers []transfer
	fail      map[solana.PublicKey]error
	onSend    func(n int)
}

func (f *fakeSender) Transfer(ctx context.Context, from wallet.Signer, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	f.mu.Lock()
	f.transfers = append(f.transfers, transfer{from: from.Address(), to: to, lamports: lamports})
	n := len(f.transfers)
	f.mu.Unlock()

	if f.onSend != nil {
		f.onSend(n)
	}
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if err, ok := f.fail[to]; ok {
		return solana.Signature{}, err
	}
	if err, ok := f.fail[from.Address()]; ok {
		return solana.Signature{}, err
	}
	return solana.Signature{byte(n)}, nil
}

type fakeBalances map[solana.PublicKey]uint64

func (f fakeBalances) GetBalance(_ context.Context, pk solana.PublicKey, _ rpc.CommitmentType) (uint64, error) {
	if v, ok := f[pk]; ok {
		return v, nil
	}
	return 0, errors.New("account unavailable")
}

func keys(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		out[i] = solana.NewWallet().PublicKey()
	}
	return out
}

func newWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate(0, start)
	require.NoError(t, err)
	return w
}

func TestPlanSplitsEvenly(t *testing.T) {
	targets := keys(7)
	schedule, err := Planner{Interval: 3 * time.Second}.Plan(targets, 1_000_000_003, start)
	require.NoError(t, err)
	require.Len(t, schedule.Entries, 7)

	assert.Equal(t, uint64(1_000_000_003), schedule.Total())
	for i, e := range schedule.Entries {
		assert.Equal(t, targets[i], e.Target)
		want := uint64(142_857_143)
		if i < 2 {
			want++
		}
		assert.Equal(t, want, e.AmountLamports, "entry %d", i)
		if i > 0 {
			assert.True(t, e.ExecuteAt.After(schedule.Entries[i-1].ExecuteAt))
		}
	}
	assert.Equal(t, start, schedule.Entries[0].ExecuteAt)
	assert.Equal(t, start.Add(18*time.Second), schedule.Entries[6].ExecuteAt)
}

func TestPlanDefaultInterval(t *testing.T) {
	schedule, err := Planner{}.Plan(keys(2), 10, start)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, schedule.Entries[1].ExecuteAt.Sub(schedule.Entries[0].ExecuteAt))
}

func TestPlanErrors(t *testing.T) {
	_, err := Planner{}.Plan(nil, 10, start)
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = Planner{}.Plan(keys(3), 2, start)
	assert.ErrorIs(t, err, ErrAmountTooSmall)

	dup := keys(2)
	dup = append(dup, dup[0])
	_, err = Planner{}.Plan(dup, 300, start)
	assert.ErrorIs(t, err, ErrDuplicateTarget)

	_, err = Planner{Interval: -time.Second}.Plan(keys(1), 300, start)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestExecuteContinuesAfterFailure(t *testing.T) {
	source := newWallet(t)
	targets := keys(4)
	sender := &fakeSender{fail: map[solana.PublicKey]error{targets[1]: errors.New("insufficient lamports")}}
	router := NewRouter(sender, fakeBalances{source.PublicKey: 10 * domain.LamportsPerSOL}, nil, zaptest.NewLogger(t))

	schedule, err := Planner{Interval: time.Millisecond}.Plan(targets, 4_000, time.Now())
	require.NoError(t, err)

	var progress []int
	observer := events.ObserverFunc(func(current, total int, w solana.PublicKey, phase events.Phase) {
		assert.Equal(t, 4, total)
		assert.Equal(t, events.PhaseFund, phase)
		assert.Equal(t, targets[current-1], w)
		progress = append(progress, current)
	})

	summary, err := router.Execute(context.Background(), source, schedule, observer)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Len(t, sender.transfers, 4)
	assert.False(t, summary.Cancelled)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, targets[1], summary.Failed()[0].Wallet)
	assert.Equal(t, "insufficient_funds", summary.Failed()[0].Kind)
	assert.Len(t, summary.Succeeded(), 3)
	assert.Equal(t, uint64(3_000), summary.TotalLamports())

	for i, tr := range sender.transfers {
		assert.Equal(t, source.PublicKey, tr.from)
		assert.Equal(t, targets[i], tr.to)
	}
}

func TestExecuteStopsBetweenEntriesOnCancel(t *testing.T) {
	source := newWallet(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{onSend: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	router := NewRouter(sender, fakeBalances{source.PublicKey: domain.LamportsPerSOL}, nil, zaptest.NewLogger(t))

	schedule, err := Planner{Interval: time.Millisecond}.Plan(keys(5), 5_000, time.Now())
	require.NoError(t, err)

	summary, err := router.Execute(ctx, source, schedule, nil)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Outcomes, 2)
	// the transfer in flight at cancellation completes
	assert.True(t, summary.Outcomes[1].Success())
	assert.Len(t, sender.transfers, 2)
}

func TestExecuteChecksSourceBalance(t *testing.T) {
	source := newWallet(t)
	router := NewRouter(&fakeSender{}, fakeBalances{source.PublicKey: 1_000}, nil, zaptest.NewLogger(t))

	schedule, err := Planner{}.Plan(keys(2), 1_000, start)
	require.NoError(t, err)

	_, err = router.Execute(context.Background(), source, schedule, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = router.Execute(context.Background(), nil, schedule, nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestCollect(t *testing.T) {
	dest := solana.NewWallet().PublicKey()
	full, empty, broken, unreadable := newWallet(t), newWallet(t), newWallet(t), newWallet(t)

	balances := fakeBalances{
		full.PublicKey:   1_000_000,
		empty.PublicKey:  DefaultFeeReserve,
		broken.PublicKey: 50_000,
	}
	sender := &fakeSender{fail: map[solana.PublicKey]error{broken.PublicKey: errors.New("Blockhash not found")}}
	router := NewRouter(sender, balances, nil, zaptest.NewLogger(t))

	summary := router.Collect(context.Background(),
		[]wallet.Signer{full, empty, broken, unreadable}, dest, events.Nop())

	require.Len(t, summary.Outcomes, 4)
	assert.Equal(t, domain.OperationCollect, summary.Operation)

	assert.True(t, summary.Outcomes[0].Success())
	assert.Equal(t, uint64(1_000_000-DefaultFeeReserve), summary.Outcomes[0].Lamports)

	assert.True(t, summary.Outcomes[1].Success())
	assert.Equal(t, KindEmpty, summary.Outcomes[1].Kind)

	assert.False(t, summary.Outcomes[2].Success())
	assert.Equal(t, "blockhash_expired", summary.Outcomes[2].Kind)
	assert.False(t, summary.Outcomes[3].Success())

	require.Len(t, sender.transfers, 2)
	assert.Equal(t, dest, sender.transfers[0].to)
}

type fakeBuilder struct{ built int }

func (f *fakeBuilder) BuildTransfer(context.Context, wallet.Signer, solana.PublicKey, uint64) (*solana.Transaction, error) {
	f.built++
	return &solana.Transaction{}, nil
}

type fakeSubmitter struct{ timeout time.Duration }

func (f *fakeSubmitter) SendAndConfirm(_ context.Context, _ *solana.Transaction, timeout time.Duration) (solana.Signature, error) {
	f.timeout = timeout
	return solana.Signature{9}, nil
}

func TestChainSender(t *testing.T) {
	builder, submitter := &fakeBuilder{}, &fakeSubmitter{}
	sender := NewChainSender(builder, submitter, 0)

	sig, err := sender.Transfer(context.Background(), newWallet(t), solana.NewWallet().PublicKey(), 1)
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{9}, sig)
	assert.Equal(t, 1, builder.built)
	assert.Equal(t, DefaultConfirmTimeout, submitter.timeout)
}
