package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/bot"
	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/export"
	"github.com/rovshanmuradov/pump-bundler/internal/funding"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

var stdout io.Writer = os.Stdout

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func runGenerate(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("generate")
	count := fs.Int("n", 0, "number of wallets to create")
	importKey := fs.String("import", "", "base58 private key to add instead of generating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var created []*wallet.Wallet
	switch {
	case *importKey != "":
		w, err := a.store.Import(*importKey)
		if err != nil {
			return fmt.Errorf("import wallet: %w", err)
		}
		created = []*wallet.Wallet{w}
	case *count > 0:
		ws, err := a.store.Generate(*count)
		if err != nil {
			return fmt.Errorf("generate wallets: %w", err)
		}
		created = ws
	default:
		return errors.New("either -n or -import is required")
	}

	if err := a.store.Save(); err != nil {
		return fmt.Errorf("save wallets: %w", err)
	}
	for _, w := range created {
		fmt.Fprintf(stdout, "%d\t%s\n", w.Index, w.Address())
	}
	return nil
}

func runBalances(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("balances")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.store.Refresh(ctx, a.client, balanceReadLimit); err != nil {
		return fmt.Errorf("refresh balances: %w", err)
	}
	if err := a.store.Save(); err != nil {
		return fmt.Errorf("save wallets: %w", err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tADDRESS\tSOL\tFUNDED")
	var total uint64
	for _, w := range a.store.All() {
		total += w.BalanceLamports
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", w.Index, w.Address(), domain.LamportsToSOL(w.BalanceLamports), w.Funded)
	}
	fmt.Fprintf(tw, "\ttotal\t%s\t\n", domain.LamportsToSOL(total))
	return tw.Flush()
}

func runFund(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("fund")
	amount := fs.String("amount", "", "total SOL to split across the selected wallets")
	selector := fs.String("wallets", "all", `wallet selection: "all", "first:N" or indices like "0,2,5-7"`)
	interval := fs.Duration("interval", a.cfg.FundingInterval, "delay between transfers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	total, err := parseSOL(*amount)
	if err != nil {
		return err
	}
	funder, err := funderWallet()
	if err != nil {
		return err
	}
	targets, err := selectWallets(a.store.All(), *selector)
	if err != nil {
		return err
	}

	schedule, err := funding.Planner{Interval: *interval}.Plan(addresses(targets), total, time.Now())
	if err != nil {
		return fmt.Errorf("plan funding: %w", err)
	}
	summary, err := a.router().Execute(ctx, funder, schedule, a.progress("fund"))
	if err != nil {
		return err
	}
	a.record(ctx, summary)

	for _, o := range summary.Succeeded() {
		if err := a.store.MarkFunded(o.Wallet, o.Lamports); err != nil {
			a.logger.Warn("Funded wallet missing from store", zap.String("wallet", o.Wallet.String()))
		}
	}
	if err := a.store.Save(); err != nil {
		return fmt.Errorf("save wallets: %w", err)
	}
	return printSummary(summary)
}

func runCollect(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("collect")
	to := fs.String("to", "", "destination address (defaults to the funding wallet)")
	selector := fs.String("wallets", "all", "wallet selection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var dest solana.PublicKey
	if *to != "" {
		pk, err := solana.PublicKeyFromBase58(*to)
		if err != nil {
			return fmt.Errorf("invalid destination %q: %w", *to, err)
		}
		dest = pk
	} else {
		funder, err := funderWallet()
		if err != nil {
			return fmt.Errorf("no -to given: %w", err)
		}
		dest = funder.Address()
	}

	sources, err := selectWallets(a.store.All(), *selector)
	if err != nil {
		return err
	}
	summary := a.router().Collect(ctx, signers(sources), dest, a.progress("collect"))
	a.record(ctx, summary)
	return printSummary(summary)
}

func runBundleBuy(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("bundle-buy")
	mintRaw := fs.String("mint", "", "token mint address")
	amount := fs.String("amount", "", "SOL each wallet spends")
	slippage := fs.Uint64("slippage", a.cfg.SlippageBps, "slippage tolerance in basis points")
	selector := fs.String("wallets", "all", "wallet selection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mint, lamports, buyers, err := a.tradeArgs(*mintRaw, *amount, *selector)
	if err != nil {
		return err
	}
	campaign, err := a.campaign(true)
	if err != nil {
		return err
	}
	summary, err := campaign.BundleBuy(ctx, mint, buyers, lamports, *slippage)
	if err != nil {
		return err
	}
	return printSummary(summary)
}

func runSpreadBuy(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("spread-buy")
	mintRaw := fs.String("mint", "", "token mint address")
	amount := fs.String("amount", "", "SOL each wallet spends")
	slippage := fs.Uint64("slippage", a.cfg.SlippageBps, "slippage tolerance in basis points")
	delay := fs.Duration("delay", a.cfg.SpreadDelay, "pause between wallets")
	selector := fs.String("wallets", "all", "wallet selection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mint, lamports, buyers, err := a.tradeArgs(*mintRaw, *amount, *selector)
	if err != nil {
		return err
	}
	campaign, err := a.campaign(false)
	if err != nil {
		return err
	}
	summary, err := campaign.SpreadBuy(ctx, mint, buyers, lamports, *slippage, *delay)
	if err != nil {
		return err
	}
	return printSummary(summary)
}

func runSellAll(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sell-all")
	mintRaw := fs.String("mint", "", "token mint address")
	slippage := fs.Uint64("slippage", a.cfg.SlippageBps, "slippage tolerance in basis points")
	selector := fs.String("wallets", "all", "wallet selection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mint, err := parseMint(*mintRaw)
	if err != nil {
		return err
	}
	sellers, err := selectWallets(a.store.All(), *selector)
	if err != nil {
		return err
	}
	if err := a.restoreHoldings(ctx, mint); err != nil {
		return err
	}
	campaign, err := a.campaign(false)
	if err != nil {
		return err
	}
	summary, err := campaign.SellAll(ctx, mint, signers(sellers), *slippage)
	if err != nil {
		return err
	}
	return printSummary(summary)
}

func runHoldings(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("holdings")
	mintRaw := fs.String("mint", "", "token mint address")
	onChain := fs.Bool("chain", false, "also read each wallet's token balance from the chain")
	value := fs.Bool("value", false, "price the holdings against the live bonding curve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := parseMint(*mintRaw)
	if err != nil {
		return err
	}
	if err := a.restoreHoldings(ctx, mint); err != nil {
		return err
	}

	agg := a.ledger.Aggregate()
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	header := "WALLET\tTOKENS\tSPENT SOL\tACQUIRED"
	if *onChain {
		header += "\tON-CHAIN"
	}
	fmt.Fprintln(tw, header)
	for _, h := range agg.PerWallet {
		line := fmt.Sprintf("%s\t%d\t%s\t%s", h.Wallet, h.TokenBalance,
			domain.LamportsToSOL(h.LamportsSpent), h.AcquiredAt.Format(time.RFC3339))
		if *onChain {
			balance, err := a.client.GetTokenBalance(ctx, h.Wallet, mint)
			if err != nil {
				line += "\terror: " + err.Error()
			} else {
				line += fmt.Sprintf("\t%d", balance)
			}
		}
		fmt.Fprintln(tw, line)
	}
	fmt.Fprintf(tw, "total\t%d\t%s\t\n", agg.TotalTokens, domain.LamportsToSOL(agg.TotalLamportsSpent))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !*value || len(agg.PerWallet) == 0 {
		return nil
	}

	campaign, err := a.campaign(false)
	if err != nil {
		return err
	}
	v, err := campaign.Valuation(ctx, mint)
	if err != nil {
		return fmt.Errorf("value holdings: %w", err)
	}
	fmt.Fprintf(stdout, "sell estimate %s SOL, net %s SOL (%s%%)\n",
		domain.LamportsToSOL(v.SellEstimate), signedSOL(v.NetPnL), v.PnLPercentage)
	return nil
}

func signedSOL(lamports int64) string {
	if lamports < 0 {
		return "-" + domain.LamportsToSOL(uint64(-lamports)).String()
	}
	return domain.LamportsToSOL(uint64(lamports)).String()
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("history")
	op := fs.String("op", "", "only this operation (fund, collect, bundle_buy, spread_buy, sell_all)")
	limit := fs.Int("limit", 20, "maximum summaries to list")
	id := fs.String("id", "", "print the outcomes of one summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id != "" {
		summary, err := a.journal.GetSummary(ctx, *id)
		if err != nil {
			return err
		}
		return printSummary(summary)
	}

	summaries, err := a.journal.ListSummaries(ctx, domain.Operation(*op), *limit)
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERATION\tSTARTED\tOK\tFAILED\tSOL\tCANCELLED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%t\n", s.ID, s.Operation,
			s.StartedAt.Format(time.RFC3339), len(s.Succeeded()), len(s.Failed()),
			domain.LamportsToSOL(s.TotalLamports()), s.Cancelled)
	}
	return tw.Flush()
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("export")
	format := fs.String("format", string(export.FormatCSV), "csv or json")
	op := fs.String("op", "", "only this operation")
	since := fs.Duration("since", 0, "only summaries started within this window (0 for all)")
	onlyFailed := fs.Bool("failed", false, "only failed wallet outcomes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summaries, err := a.journal.ListSummaries(ctx, domain.Operation(*op), 0)
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}
	options := export.ExportOptions{
		Format:     export.ExportFormat(strings.ToLower(*format)),
		Operation:  domain.Operation(*op),
		OnlyFailed: *onlyFailed,
		OutputDir:  a.cfg.ExportDir,
	}
	if *since > 0 {
		options.StartTime = time.Now().Add(-*since)
	}

	path, err := export.NewSummaryExporter(a.logger).ExportSummaries(summaries, options)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}

func (a *app) tradeArgs(mintRaw, amount, selector string) (solana.PublicKey, uint64, []wallet.Signer, error) {
	mint, err := parseMint(mintRaw)
	if err != nil {
		return solana.PublicKey{}, 0, nil, err
	}
	lamports, err := parseSOL(amount)
	if err != nil {
		return solana.PublicKey{}, 0, nil, err
	}
	ws, err := selectWallets(a.store.All(), selector)
	if err != nil {
		return solana.PublicKey{}, 0, nil, err
	}
	return mint, lamports, signers(ws), nil
}

// restoreHoldings rebuilds the ledger for mint from journaled sweeps.
func (a *app) restoreHoldings(ctx context.Context, mint solana.PublicKey) error {
	summaries, err := a.journal.ListSummaries(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}
	applied, err := bot.RestoreLedger(a.ledger, mint, summaries)
	if err != nil {
		return fmt.Errorf("restore holdings: %w", err)
	}
	a.logger.Debug("Holdings restored",
		zap.String("mint", mint.String()),
		zap.Int("outcomes", applied),
		zap.Int("wallets", a.ledger.Len()))
	return nil
}

func (a *app) progress(sweep string) events.Observer {
	return events.Multi(events.NewLogObserver(a.logger), events.NewBusObserver(a.bus, sweep))
}

func funderWallet() (*wallet.Wallet, error) {
	key := os.Getenv(funderKeyVariable)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", funderKeyVariable)
	}
	w, err := wallet.NewWallet(key)
	if err != nil {
		return nil, fmt.Errorf("funding wallet: %w", err)
	}
	return w, nil
}

func printSummary(s *domain.Summary) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s %s  id=%s", s.Operation, s.StartedAt.Format(time.RFC3339), s.ID)
	if !s.Mint.IsZero() {
		fmt.Fprintf(tw, "  mint=%s", s.Mint)
	}
	if s.Cancelled {
		fmt.Fprint(tw, "  (cancelled)")
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "WALLET\tSOL\tTOKENS\tRESULT\tDETAIL")
	for _, o := range s.Outcomes {
		result, detail := "ok", o.Signature.String()
		if o.BundleID != "" && o.Success() {
			detail = "bundle " + o.BundleID
		}
		if o.Kind != "" {
			result = o.Kind
		}
		if !o.Success() {
			result, detail = "failed", o.Error()
			if o.Kind != "" {
				result = o.Kind
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.Wallet, domain.LamportsToSOL(o.Lamports), o.Tokens, result, detail)
	}
	fmt.Fprintf(tw, "succeeded %d, failed %d, total %s SOL, %d tokens\n",
		len(s.Succeeded()), len(s.Failed()), domain.LamportsToSOL(s.TotalLamports()), s.TotalTokens())
	return tw.Flush()
}
