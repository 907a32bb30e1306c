package pumpfun

import (
	"errors"
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var launchReserves = Reserves{Sol: 30_000_000_000, Token: 1_000_000_000_000_000}

func TestQuoteBuyScenario(t *testing.T) {
	quote, err := QuoteBuy(1_000_000_000, launchReserves, 500)
	require.NoError(t, err)

	// 1e15 - 3e25/31e9 = 1e15 - 967_741_935_483_870 (truncated)
	assert.Equal(t, uint64(32_258_064_516_130), quote.TokensOut)
	assert.Equal(t, uint64(30_645_161_290_323), quote.MinTokensOut)
	assert.Equal(t, uint64(1_050_000_000), quote.MaxSolCost)
	assert.Equal(t, uint64(1_000_000_000), quote.LamportsIn)
}

func TestQuoteZeroInput(t *testing.T) {
	buy, err := QuoteBuy(0, launchReserves, 100)
	require.NoError(t, err)
	assert.Zero(t, buy.MinTokensOut)
	assert.Zero(t, buy.TokensOut)

	sell, err := QuoteSell(0, launchReserves, 100)
	require.NoError(t, err)
	assert.Zero(t, sell.MinLamportsOut)
	assert.Zero(t, sell.LamportsOut)
}

func TestQuoteRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		reserves Reserves
		bps      uint64
		want     error
	}{
		{"slippage above 100%", launchReserves, 10_001, ErrInvalidSlippage},
		{"zero sol reserves", Reserves{Sol: 0, Token: 1}, 0, ErrInvalidReserves},
		{"zero token reserves", Reserves{Sol: 1, Token: 0}, 0, ErrInvalidReserves},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QuoteBuy(1_000, tt.reserves, tt.bps)
			assert.True(t, errors.Is(err, tt.want), "buy: got %v", err)

			_, err = QuoteSell(1_000, tt.reserves, tt.bps)
			assert.True(t, errors.Is(err, tt.want), "sell: got %v", err)
		})
	}
}

func TestQuoteSlippageBounds(t *testing.T) {
	full, err := QuoteBuy(5_000_000, launchReserves, MaxSlippageBps)
	require.NoError(t, err)
	assert.Zero(t, full.MinTokensOut)
	assert.Equal(t, uint64(10_000_000), full.MaxSolCost)

	none, err := QuoteBuy(5_000_000, launchReserves, 0)
	require.NoError(t, err)
	assert.Equal(t, none.TokensOut, none.MinTokensOut)
	assert.Equal(t, uint64(5_000_000), none.MaxSolCost)
}

func TestQuoteBuyProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 2_000; i++ {
		reserves := Reserves{
			Sol:   1 + rng.Uint64N(1<<40),
			Token: 1<<40 + rng.Uint64N(1<<55),
		}
		bps := rng.Uint64N(MaxSlippageBps + 1)
		a := rng.Uint64N(1 << 38)
		b := a + rng.Uint64N(1<<30)

		qa, err := QuoteBuy(a, reserves, bps)
		require.NoError(t, err)
		qb, err := QuoteBuy(b, reserves, bps)
		require.NoError(t, err)

		// monotonic in input
		assert.LessOrEqual(t, qa.MinTokensOut, qb.MinTokensOut, "reserves=%+v bps=%d a=%d b=%d", reserves, bps, a, b)

		// slippage never raises the floor above the raw quote
		raw, err := QuoteBuy(a, reserves, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, qa.MinTokensOut, raw.MinTokensOut)

		// round trip at a frozen snapshot returns at most rounding dust over the input
		back, err := QuoteSell(raw.TokensOut, reserves, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, back.LamportsOut, a+1, "reserves=%+v in=%d", reserves, a)
	}
}

func TestQuoteKeepsConstantProduct(t *testing.T) {
	quote, err := QuoteBuy(2_500_000_000, launchReserves, 0)
	require.NoError(t, err)

	after := launchReserves.Apply(quote.LamportsIn, quote.TokensOut)
	before := mulU64(launchReserves.Sol, launchReserves.Token)
	product := mulU64(after.Sol, after.Token)

	// the remaining token reserve is k/(S+in) truncated, so k shrinks by less than S+in
	assert.LessOrEqual(t, product.Cmp(before), 0)
	drift := new(big.Int).Sub(before, product)
	assert.Negative(t, drift.Cmp(new(big.Int).SetUint64(after.Sol)))
}

func TestApplySellKeepsConstantProduct(t *testing.T) {
	quote, err := QuoteSell(50_000_000_000_000, launchReserves, 0)
	require.NoError(t, err)

	after := launchReserves.ApplySell(quote.TokensIn, quote.LamportsOut)
	assert.Equal(t, launchReserves.Token+quote.TokensIn, after.Token)

	before := mulU64(launchReserves.Sol, launchReserves.Token)
	product := mulU64(after.Sol, after.Token)
	assert.LessOrEqual(t, product.Cmp(before), 0)
	drift := new(big.Int).Sub(before, product)
	assert.Negative(t, drift.Cmp(new(big.Int).SetUint64(after.Token)))
}

func TestQuoteMatchesExactDivision(t *testing.T) {
	// S=1000, T=1000, in=100: 1000 - 1_000_000/1100 = 1000 - 909
	buy, err := QuoteBuy(100, Reserves{Sol: 1000, Token: 1000}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(91), buy.TokensOut)

	// in=1000 divides exactly: 1000 - 500
	buy, err = QuoteBuy(1000, Reserves{Sol: 1000, Token: 1000}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), buy.TokensOut)

	sell, err := QuoteSell(100, Reserves{Sol: 1000, Token: 1000}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(91), sell.LamportsOut)
}

func TestApplySlippageTruncates(t *testing.T) {
	assert.Equal(t, uint64(94), ApplySlippage(99, 500))
	assert.Equal(t, uint64(0), ApplySlippage(1, 1))
	assert.Equal(t, uint64(1), ApplySlippage(1, 0))
}

func mulU64(a, b uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
}
