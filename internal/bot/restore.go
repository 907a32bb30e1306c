package bot

import (
	"errors"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/holdings"
)

// RestoreLedger replays journaled buys and sells of mint into ledger, oldest
// first, so a new process knows what earlier runs bought. Summaries of other
// mints and failed outcomes are skipped. It returns the number of outcomes applied.
func RestoreLedger(ledger *holdings.Ledger, mint solana.PublicKey, summaries []*domain.Summary) (int, error) {
	ordered := make([]*domain.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil && s.Mint.Equals(mint) {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	ledger.Track(mint)
	applied := 0
	for _, s := range ordered {
		for _, o := range s.Outcomes {
			if !o.Success() {
				continue
			}
			switch s.Operation {
			case domain.OperationBundleBuy, domain.OperationSpreadBuy:
				if err := ledger.RecordBuy(mint, o.Wallet, o.Tokens, o.Lamports, s.FinishedAt); err != nil {
					return applied, err
				}
			case domain.OperationSellAll:
				if _, err := ledger.RecordSell(o.Wallet); err != nil && !errors.Is(err, holdings.ErrNoHolding) {
					return applied, err
				}
			default:
				continue
			}
			applied++
		}
	}
	return applied, nil
}
