// Package pumpfun prices and encodes trades against the Pump.fun bonding curve program.
//
// The package has no network side effects except FetchBondingCurve:
//   - curve.go: constant-product quotes with slippage bounds.
//   - pda.go: bonding curve and token account derivation.
//   - instructions.go: 24-byte buy/sell payloads and the 12-account tables.
//   - accounts.go: bonding curve account decoding.
//   - config.go: protocol addresses and per-mint setup.
//
// Usage example:
//
//	cfg := pumpfun.GetDefaultConfig()
//	if err := cfg.SetupForToken("TOKEN_MINT_ADDRESS", logger); err != nil {
//	    log.Fatal(err)
//	}
//
//	curve, err := pumpfun.FetchBondingCurve(ctx, client, cfg.BondingCurve)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	quote, err := pumpfun.QuoteBuy(1_000_000_000, curve.Reserves(), 500)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ix, err := pumpfun.BuildBuyInstruction(cfg.InstructionAccounts(), user, quote.MinTokensOut, quote.MaxSolCost)
package pumpfun
