package bot

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pump-bundler/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/holdings"
	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/metrics"
	"github.com/rovshanmuradov/pump-bundler/internal/storage/memory"
	"github.com/rovshanmuradov/pump-bundler/internal/transaction"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

var (
	testMint = solana.NewWallet().PublicKey()
	testNow  = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fakeChain struct {
	mu       sync.Mutex
	curve    pumpfun.BondingCurve
	balances map[solana.PublicKey]uint64
	sendErr  map[solana.PublicKey]error
	sent     []*solana.Transaction
	onSend   func(n int)
}

func (f *fakeChain) GetAccountInfo(_ context.Context, _ solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	buf := new(bytes.Buffer)
	buf.Write(pumpfun.BondingCurveDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(f.curve); err != nil {
		return nil, err
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(buf.Bytes())},
	}, nil
}

func (f *fakeChain) GetTokenBalance(_ context.Context, owner, _ solana.PublicKey) (uint64, error) {
	return f.balances[owner], nil
}

func (f *fakeChain) SendAndConfirm(_ context.Context, tx *solana.Transaction, _ time.Duration) (solana.Signature, error) {
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	n := len(f.sent)
	f.mu.Unlock()

	if f.onSend != nil {
		f.onSend(n)
	}
	payer := tx.Message.AccountKeys[0]
	if err, ok := f.sendErr[payer]; ok {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

type builtBundle struct {
	legs   []transaction.Leg
	tipper solana.PublicKey
	tip    uint64
}

type fakeBuilder struct {
	trades  []transaction.Trade
	bundles []builtBundle
}

func fakeTx(payer solana.PublicKey, seq int) *solana.Transaction {
	return &solana.Transaction{
		Signatures: []solana.Signature{{byte(seq), 0xAB}},
		Message:    solana.Message{AccountKeys: []solana.PublicKey{payer}},
	}
}

func (f *fakeBuilder) BuildTrade(_ context.Context, signer wallet.Signer, trade transaction.Trade) (*solana.Transaction, error) {
	f.trades = append(f.trades, trade)
	return fakeTx(signer.Address(), len(f.trades)), nil
}

func (f *fakeBuilder) BuildBundle(_ context.Context, legs []transaction.Leg, tipper wallet.Signer, tip uint64) ([]*solana.Transaction, error) {
	f.bundles = append(f.bundles, builtBundle{legs: legs, tipper: tipper.Address(), tip: tip})
	txs := make([]*solana.Transaction, len(legs))
	for i, leg := range legs {
		txs[i] = fakeTx(leg.Signer.Address(), 10*len(f.bundles)+i)
	}
	return txs, nil
}

type fakeBundles struct {
	calls    int
	results  []error
	onSubmit func()
}

// Submit behaves like the engine: it polls until the bundle resolves and
// gives up with ctx's error if ctx ends first.
func (f *fakeBundles) Submit(ctx context.Context, txs []*solana.Transaction) (*jito.Job, error) {
	f.calls++
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if err := ctx.Err(); err != nil {
		return &jito.Job{Transactions: txs, Status: jito.StatusPending}, err
	}
	if f.calls <= len(f.results) && f.results[f.calls-1] != nil {
		return nil, f.results[f.calls-1]
	}
	return &jito.Job{Transactions: txs, BundleID: "bundle-" + string(rune('0'+f.calls)), Status: jito.StatusLanded, Attempt: 1}, nil
}

func testCurve() pumpfun.BondingCurve {
	return pumpfun.BondingCurve{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		TokenTotalSupply:     1_000_000_000_000_000,
	}
}

func signers(t *testing.T, n int) []wallet.Signer {
	t.Helper()
	out := make([]wallet.Signer, n)
	for i := range out {
		w, err := wallet.Generate(i, testNow)
		require.NoError(t, err)
		out[i] = w
	}
	return out
}

type harness struct {
	chain    *fakeChain
	builder  *fakeBuilder
	bundles  *fakeBundles
	ledger   *holdings.Ledger
	journal  *memory.Journal
	registry *prometheus.Registry
	campaign *Campaign
}

func newHarness(t *testing.T, observer events.Observer) *harness {
	t.Helper()
	h := &harness{
		chain:    &fakeChain{curve: testCurve(), balances: map[solana.PublicKey]uint64{}, sendErr: map[solana.PublicKey]error{}},
		builder:  &fakeBuilder{},
		bundles:  &fakeBundles{},
		ledger:   holdings.NewLedger(),
		journal:  memory.NewJournal(),
		registry: prometheus.NewRegistry(),
	}
	h.campaign = NewCampaign(CampaignConfig{
		Chain:       h.chain,
		Builder:     h.builder,
		Bundles:     h.bundles,
		Ledger:      h.ledger,
		Metrics:     metrics.NewCollector(h.registry),
		Journal:     h.journal,
		Observer:    observer,
		Logger:      zaptest.NewLogger(t),
		TipLamports: 10_000,
		Now:         func() time.Time { return testNow },
	})
	return h
}

func TestBundleBuySplitsIntoBundles(t *testing.T) {
	var progress []int
	h := newHarness(t, events.ObserverFunc(func(current, total int, _ solana.PublicKey, phase events.Phase) {
		assert.Equal(t, 7, total)
		assert.Equal(t, events.PhaseBundle, phase)
		progress = append(progress, current)
	}))
	wallets := signers(t, 7)

	summary, err := h.campaign.BundleBuy(context.Background(), testMint, wallets, 100_000_000, 500)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, progress)
	require.Len(t, h.builder.bundles, 2)
	assert.Len(t, h.builder.bundles[0].legs, jito.MaxBundleSize)
	assert.Len(t, h.builder.bundles[1].legs, 2)
	assert.Equal(t, wallets[4].Address(), h.builder.bundles[0].tipper)
	assert.Equal(t, wallets[6].Address(), h.builder.bundles[1].tipper)
	assert.Equal(t, uint64(10_000), h.builder.bundles[0].tip)

	// later legs pay the price impact of earlier ones
	legs := h.builder.bundles[0].legs
	for i := 1; i < len(legs); i++ {
		assert.Less(t, legs[i].Trade.TokenAmount, legs[i-1].Trade.TokenAmount)
		assert.Equal(t, legs[0].Trade.SolLimit, legs[i].Trade.SolLimit)
	}
	assert.Less(t, h.builder.bundles[1].legs[0].Trade.TokenAmount, legs[4].Trade.TokenAmount)

	curve := testCurve()
	first, err := pumpfun.QuoteBuy(100_000_000, curve.Reserves(), 500)
	require.NoError(t, err)
	assert.Equal(t, first.MinTokensOut, legs[0].Trade.TokenAmount)
	assert.Equal(t, uint64(105_000_000), legs[0].Trade.SolLimit)
	assert.Equal(t, transaction.Buy, legs[0].Trade.Side)

	assert.Len(t, summary.Succeeded(), 7)
	assert.Equal(t, "bundle-1", summary.Outcomes[0].BundleID)
	assert.Equal(t, "bundle-2", summary.Outcomes[6].BundleID)
	assert.Equal(t, uint64(700_000_000), summary.TotalLamports())

	agg := h.ledger.Aggregate()
	assert.Equal(t, testMint, agg.Mint)
	assert.Len(t, agg.PerWallet, 7)
	assert.Equal(t, summary.TotalTokens(), agg.TotalTokens)
	assert.Equal(t, uint64(700_000_000), agg.TotalLamportsSpent)

	saved, err := h.journal.GetSummary(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Outcomes, 7)

	assert.Equal(t, float64(7), tradeCount(t, h.registry, "buy", "success"))
}

func TestBundleBuyReportsFailedBundle(t *testing.T) {
	h := newHarness(t, nil)
	h.bundles.results = []error{nil, &jito.BundleError{BundleID: "b-x", Status: jito.StatusExpired, Attempts: 3}}
	wallets := signers(t, 6)

	summary, err := h.campaign.BundleBuy(context.Background(), testMint, wallets, 50_000_000, 100)
	require.NoError(t, err)

	assert.Len(t, summary.Succeeded(), 5)
	failedOutcomes := summary.Failed()
	require.Len(t, failedOutcomes, 1)
	assert.Equal(t, wallets[5].Address(), failedOutcomes[0].Wallet)
	assert.Equal(t, "bundle_expired", failedOutcomes[0].Kind)
	assert.Equal(t, "b-x", failedOutcomes[0].BundleID)

	assert.Equal(t, 5, h.ledger.Len())
	_, held := h.ledger.Get(wallets[5].Address())
	assert.False(t, held)
}

func TestBundleBuyFinishesLandedBundleAfterCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// cancel while the first bundle is still being polled
	h.bundles.onSubmit = cancel
	wallets := signers(t, 7)

	summary, err := h.campaign.BundleBuy(ctx, testMint, wallets, 100_000_000, 500)
	require.NoError(t, err)

	assert.Equal(t, 1, h.bundles.calls)
	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Outcomes, jito.MaxBundleSize)
	assert.Len(t, summary.Succeeded(), jito.MaxBundleSize)
	for _, o := range summary.Outcomes {
		assert.Equal(t, "bundle-1", o.BundleID)
		assert.NotZero(t, o.Tokens)
	}
	assert.Equal(t, jito.MaxBundleSize, h.ledger.Len())

	saved, err := h.journal.GetSummary(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Outcomes, jito.MaxBundleSize)
}

func TestBundleBuyQuoteFailureKeepsPartialSummary(t *testing.T) {
	h := newHarness(t, nil)
	// six tokens left on the curve: every buy takes one, the seventh has nothing to quote against
	h.chain.curve.VirtualTokenReserves = 6
	wallets := signers(t, 7)

	summary, err := h.campaign.BundleBuy(context.Background(), testMint, wallets, 100_000_000, 500)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 1, h.bundles.calls)
	require.Len(t, summary.Outcomes, 7)
	assert.Len(t, summary.Succeeded(), jito.MaxBundleSize)
	failedOutcomes := summary.Failed()
	require.Len(t, failedOutcomes, 2)
	for i, o := range failedOutcomes {
		assert.Equal(t, wallets[jito.MaxBundleSize+i].Address(), o.Wallet)
		assert.Equal(t, "invalid_reserves", o.Kind)
		assert.ErrorIs(t, o.Err, pumpfun.ErrInvalidReserves)
	}
	assert.False(t, summary.Cancelled)
	assert.Equal(t, jito.MaxBundleSize, h.ledger.Len())

	saved, err := h.journal.GetSummary(context.Background(), summary.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Outcomes, 7)
	assert.Equal(t, float64(2), tradeCount(t, h.registry, "buy", "failed"))
}

func TestBundleBuyRecordsSpendCapAsCost(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 1)

	_, err := h.campaign.BundleBuy(context.Background(), testMint, wallets, 100_000_000, 500)
	require.NoError(t, err)

	held, ok := h.ledger.Get(wallets[0].Address())
	require.True(t, ok)
	curve := testCurve()
	q, err := pumpfun.QuoteBuy(100_000_000, curve.Reserves(), 500)
	require.NoError(t, err)
	assert.Equal(t, q.LamportsIn, held.LamportsSpent)
	assert.Equal(t, q.MinTokensOut, held.TokenBalance)
}

func TestBundleBuyRejectsInput(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 2)
	ctx := context.Background()

	_, err := h.campaign.BundleBuy(ctx, testMint, nil, 1, 100)
	assert.ErrorIs(t, err, ErrNoWallets)

	_, err = h.campaign.BundleBuy(ctx, solana.PublicKey{}, wallets, 1, 100)
	assert.ErrorIs(t, err, ErrInvalidMint)

	_, err = h.campaign.BundleBuy(ctx, testMint, wallets, 0, 100)
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = h.campaign.BundleBuy(ctx, testMint, wallets, 1, 10_001)
	assert.ErrorIs(t, err, pumpfun.ErrInvalidSlippage)

	h.chain.curve.Complete = true
	_, err = h.campaign.BundleBuy(ctx, testMint, wallets, 1, 100)
	assert.ErrorIs(t, err, pumpfun.ErrCurveComplete)

	assert.Empty(t, h.builder.bundles)
}

func TestSpreadBuyContinuesAfterFailure(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 3)
	h.chain.sendErr[wallets[1].Address()] = errors.New("Transfer: insufficient lamports 10, need 100")

	summary, err := h.campaign.SpreadBuy(context.Background(), testMint, wallets, 20_000_000, 300, 0)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, domain.OperationSpreadBuy, summary.Operation)
	assert.True(t, summary.Outcomes[0].Success())
	assert.False(t, summary.Outcomes[1].Success())
	assert.Equal(t, "insufficient_funds", summary.Outcomes[1].Kind)
	assert.True(t, summary.Outcomes[2].Success())
	assert.NotZero(t, summary.Outcomes[2].Tokens)

	assert.Len(t, h.chain.sent, 3)
	assert.Equal(t, 2, h.ledger.Len())
	for _, trade := range h.builder.trades {
		assert.Equal(t, transaction.Buy, trade.Side)
		assert.Equal(t, testMint, trade.Accounts.Mint)
	}
}

func TestSpreadBuyStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.chain.onSend = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	summary, err := h.campaign.SpreadBuy(ctx, testMint, signers(t, 4), 20_000_000, 300, time.Hour)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Outcomes, 1)
	assert.True(t, summary.Outcomes[0].Success())
}

func TestSellAll(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 3)

	_, err := h.campaign.BundleBuy(context.Background(), testMint, wallets[:2], 10_000_000, 100)
	require.NoError(t, err)
	require.Equal(t, 2, h.ledger.Len())

	h.chain.balances[wallets[0].Address()] = 300_000_000_000
	h.chain.balances[wallets[1].Address()] = 150_000_000_000

	summary, err := h.campaign.SellAll(context.Background(), testMint, wallets, 1_000)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 3)
	assert.Len(t, summary.Succeeded(), 3)
	assert.Equal(t, uint64(300_000_000_000), summary.Outcomes[0].Tokens)
	assert.NotZero(t, summary.Outcomes[0].Lamports)
	assert.Equal(t, KindEmpty, summary.Outcomes[2].Kind)

	require.Len(t, h.builder.trades, 2)
	curve := testCurve()
	q, err := pumpfun.QuoteSell(300_000_000_000, curve.Reserves(), 1_000)
	require.NoError(t, err)
	assert.Equal(t, transaction.Sell, h.builder.trades[0].Side)
	assert.Equal(t, q.MinLamportsOut, h.builder.trades[0].SolLimit)

	assert.Zero(t, h.ledger.Len())

	list, err := h.journal.ListSummaries(context.Background(), domain.OperationSellAll, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSellAllReportsSendFailure(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 1)
	h.chain.balances[wallets[0].Address()] = 1_000
	h.chain.sendErr[wallets[0].Address()] = errors.New("custom program error: 0x1773")

	summary, err := h.campaign.SellAll(context.Background(), testMint, wallets, 100)
	require.NoError(t, err)

	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "slippage_exceeded", summary.Failed()[0].Kind)
}

func TestCampaignPublishesEvents(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 16)
	var (
		mu    sync.Mutex
		types []events.EventType
	)
	record := func(_ context.Context, ev events.Event) error {
		mu.Lock()
		types = append(types, ev.Type())
		mu.Unlock()
		return nil
	}
	bus.SubscribeFunc(events.CampaignStarted, record)
	bus.SubscribeFunc(events.BundleResolved, record)
	bus.SubscribeFunc(events.CampaignCompleted, record)

	h := newHarness(t, nil)
	h.campaign.bus = bus

	_, err := h.campaign.BundleBuy(context.Background(), testMint, signers(t, 2), 1_000_000, 100)
	require.NoError(t, err)
	require.NoError(t, bus.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{events.CampaignStarted, events.BundleResolved, events.CampaignCompleted}, types)
}

func tradeCount(t *testing.T, reg *prometheus.Registry, side, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "pump_bundler_trades_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["side"] == side && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestValuationUsesLiveCurve(t *testing.T) {
	h := newHarness(t, nil)
	wallets := signers(t, 2)

	_, err := h.campaign.BundleBuy(context.Background(), testMint, wallets, 50_000_000, 100)
	require.NoError(t, err)

	v, err := h.campaign.Valuation(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, v.Wallets, 2)
	assert.Equal(t, uint64(100_000_000), v.TotalLamportsSpent)
	assert.Equal(t, v.Wallets[0].SellEstimate+v.Wallets[1].SellEstimate, v.SellEstimate)
	// the fake curve never moved, so selling the slippage floor returns less than was spent
	assert.Negative(t, v.NetPnL)

	_, err = h.campaign.Valuation(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, holdings.ErrMintMismatch)
}
