package holdings

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/pump-bundler/internal/dex/pumpfun"
)

// WalletValue is the estimated exit of one holding.
type WalletValue struct {
	Holding
	SellEstimate uint64 // lamports
	NetPnL       int64  // lamports, SellEstimate - LamportsSpent
}

// Valuation estimates what selling every holding would return.
type Valuation struct {
	Aggregate
	Wallets       []WalletValue
	SellEstimate  uint64
	NetPnL        int64
	PnLPercentage decimal.Decimal
}

// Value prices the aggregate against reserves. Holdings are sold in PerWallet
// order and each sell moves the curve, so later wallets get a lower price, the
// same as an actual SellAll in that order would see. LamportsSpent is an upper
// bound on cost, so NetPnL is a lower bound.
func Value(agg Aggregate, reserves pumpfun.Reserves) (Valuation, error) {
	v := Valuation{Aggregate: agg, Wallets: make([]WalletValue, 0, len(agg.PerWallet))}
	for _, h := range agg.PerWallet {
		q, err := pumpfun.QuoteSell(h.TokenBalance, reserves, 0)
		if err != nil {
			return Valuation{}, fmt.Errorf("quote %s: %w", h.Wallet, err)
		}
		reserves = reserves.ApplySell(q.TokensIn, q.LamportsOut)

		wv := WalletValue{
			Holding:      h,
			SellEstimate: q.LamportsOut,
			NetPnL:       int64(q.LamportsOut) - int64(h.LamportsSpent),
		}
		v.Wallets = append(v.Wallets, wv)
		v.SellEstimate += wv.SellEstimate
		v.NetPnL += wv.NetPnL
	}

	if agg.TotalLamportsSpent > 0 {
		v.PnLPercentage = decimal.NewFromInt(v.NetPnL).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromBigInt(new(big.Int).SetUint64(agg.TotalLamportsSpent), 0)).
			Round(2)
	}
	return v, nil
}
