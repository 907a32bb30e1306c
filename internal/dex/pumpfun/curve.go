// =============================
// File: internal/dex/pumpfun/curve.go
// =============================
package pumpfun

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxSlippageBps is the upper bound of a slippage tolerance (100%).
const MaxSlippageBps = 10_000

var (
	ErrInvalidSlippage = errors.New("slippage must be within [0, 10000] bps")
	ErrInvalidReserves = errors.New("bonding curve reserves must be positive")
	ErrAmountOverflow  = errors.New("amount does not fit in 64 bits")
)

// QuoteBuy prices spending lamportsIn against the constant-product curve.
//
// tokensOut = tokenReserves - solReserves*tokenReserves/(solReserves + lamportsIn),
// with the division truncated, and MinTokensOut applies the slippage floor to it. MaxSolCost is the ceiling the
// program accepts for the same trade.
func QuoteBuy(lamportsIn uint64, reserves Reserves, slippageBps uint64) (BuyQuote, error) {
	if err := validate(reserves, slippageBps); err != nil {
		return BuyQuote{}, err
	}
	if lamportsIn == 0 {
		return BuyQuote{}, nil
	}

	out := constantProductOut(lamportsIn, reserves.Sol, reserves.Token)

	maxCost := new(big.Int).SetUint64(lamportsIn)
	maxCost.Mul(maxCost, big.NewInt(MaxSlippageBps+int64(slippageBps)))
	maxCost.Quo(maxCost, big.NewInt(MaxSlippageBps))
	if !maxCost.IsUint64() {
		return BuyQuote{}, fmt.Errorf("max sol cost for %d lamports: %w", lamportsIn, ErrAmountOverflow)
	}

	return BuyQuote{
		LamportsIn:   lamportsIn,
		TokensOut:    out,
		MinTokensOut: ApplySlippage(out, slippageBps),
		MaxSolCost:   maxCost.Uint64(),
	}, nil
}

// QuoteSell prices selling tokensIn into the curve; the mirror image of QuoteBuy.
func QuoteSell(tokensIn uint64, reserves Reserves, slippageBps uint64) (SellQuote, error) {
	if err := validate(reserves, slippageBps); err != nil {
		return SellQuote{}, err
	}
	if tokensIn == 0 {
		return SellQuote{}, nil
	}

	out := constantProductOut(tokensIn, reserves.Token, reserves.Sol)
	return SellQuote{
		TokensIn:       tokensIn,
		LamportsOut:    out,
		MinLamportsOut: ApplySlippage(out, slippageBps),
	}, nil
}

// ApplySlippage returns amount * (10000 - bps) / 10000 rounded toward zero.
// bps must already be validated.
func ApplySlippage(amount, slippageBps uint64) uint64 {
	v := new(big.Int).SetUint64(amount)
	v.Mul(v, new(big.Int).SetUint64(MaxSlippageBps-slippageBps))
	v.Quo(v, big.NewInt(MaxSlippageBps))
	return v.Uint64()
}

// Apply returns the reserves after a buy of lamportsIn that yielded tokensOut.
func (r Reserves) Apply(lamportsIn, tokensOut uint64) Reserves {
	return Reserves{Sol: r.Sol + lamportsIn, Token: r.Token - tokensOut}
}

// ApplySell returns the reserves after a sell of tokensIn that yielded lamportsOut.
func (r Reserves) ApplySell(tokensIn, lamportsOut uint64) Reserves {
	return Reserves{Sol: r.Sol - lamportsOut, Token: r.Token + tokensIn}
}

// constantProductOut computes outReserve - (inReserve*outReserve)/(inReserve+in),
// truncating the division. The result never exceeds outReserve, so it always
// fits in 64 bits.
func constantProductOut(in, inReserve, outReserve uint64) uint64 {
	k := new(big.Int).SetUint64(inReserve)
	k.Mul(k, new(big.Int).SetUint64(outReserve))

	den := new(big.Int).SetUint64(inReserve)
	den.Add(den, new(big.Int).SetUint64(in))

	remaining := k.Quo(k, den)
	return new(big.Int).Sub(new(big.Int).SetUint64(outReserve), remaining).Uint64()
}

func validate(reserves Reserves, slippageBps uint64) error {
	if slippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: got %d", ErrInvalidSlippage, slippageBps)
	}
	if reserves.Sol == 0 || reserves.Token == 0 {
		return ErrInvalidReserves
	}
	return nil
}
