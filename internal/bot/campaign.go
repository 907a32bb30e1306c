// internal/bot/campaign.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/holdings"
	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/metrics"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
	"github.com/rovshanmuradov/pump-bundler/internal/transaction"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultSpreadDelay    = 3 * time.Second

	// KindEmpty marks a wallet that had nothing to sell.
	KindEmpty = "empty"
)

var (
	ErrNoWallets   = errors.New("no wallets selected")
	ErrZeroAmount  = errors.New("amount must be positive")
	ErrInvalidMint = errors.New("mint address is required")
)

// ChainClient is the part of the RPC client a campaign reads and sends through.
type ChainClient interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	SendAndConfirm(ctx context.Context, tx *solana.Transaction, timeout time.Duration) (solana.Signature, error)
}

// TradeBuilder assembles signed trades and bundles.
type TradeBuilder interface {
	BuildTrade(ctx context.Context, signer wallet.Signer, trade transaction.Trade) (*solana.Transaction, error)
	BuildBundle(ctx context.Context, legs []transaction.Leg, tipper wallet.Signer, tipLamports uint64) ([]*solana.Transaction, error)
}

// BundleSubmitter lands bundles through the relay.
type BundleSubmitter interface {
	Submit(ctx context.Context, txs []*solana.Transaction) (*jito.Job, error)
}

// CampaignConfig wires the collaborators of a Campaign.
type CampaignConfig struct {
	Chain    ChainClient
	Builder  TradeBuilder
	Bundles  BundleSubmitter
	Ledger   *holdings.Ledger
	Metrics  *metrics.Collector
	Journal  storage.Journal // optional
	Bus      *events.Bus     // optional
	Observer events.Observer // optional
	Logger   *zap.Logger

	// Protocol overrides program addresses; nil means mainnet defaults.
	Protocol       *pumpfun.Config
	TipLamports    uint64
	ConfirmTimeout time.Duration
	Now            func() time.Time
}

// Campaign runs multi-wallet buy and sell sweeps for one mint at a time.
// Wallets are processed sequentially; cancellation is honoured between wallets.
type Campaign struct {
	chain          ChainClient
	builder        TradeBuilder
	bundles        BundleSubmitter
	ledger         *holdings.Ledger
	metrics        *metrics.Collector
	journal        storage.Journal
	bus            *events.Bus
	observer       events.Observer
	logger         *zap.Logger
	protocol       pumpfun.Config
	tipLamports    uint64
	confirmTimeout time.Duration
	now            func() time.Time
}

// NewCampaign creates a campaign runner.
func NewCampaign(cfg CampaignConfig) *Campaign {
	c := &Campaign{
		chain:          cfg.Chain,
		builder:        cfg.Builder,
		bundles:        cfg.Bundles,
		ledger:         cfg.Ledger,
		metrics:        cfg.Metrics,
		journal:        cfg.Journal,
		bus:            cfg.Bus,
		observer:       cfg.Observer,
		logger:         cfg.Logger,
		tipLamports:    cfg.TipLamports,
		confirmTimeout: cfg.ConfirmTimeout,
		now:            cfg.Now,
	}
	if cfg.Protocol != nil {
		c.protocol = *cfg.Protocol
	} else {
		c.protocol = *pumpfun.GetDefaultConfig()
	}
	if c.ledger == nil {
		c.ledger = holdings.NewLedger()
	}
	if c.observer == nil {
		c.observer = events.Nop()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("campaign")
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = DefaultConfirmTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Ledger returns the holdings the campaign records into.
func (c *Campaign) Ledger() *holdings.Ledger {
	return c.ledger
}

// BundleBuy buys lamportsEach worth of mint from every wallet through Jito bundles.
// Wallets are split into bundles of at most jito.MaxBundleSize legs; the last wallet
// of each bundle pays its tip. All legs are quoted from one curve snapshot, advanced
// leg by leg so later legs account for the price impact of earlier ones.
func (c *Campaign) BundleBuy(ctx context.Context, mint solana.PublicKey, wallets []wallet.Signer, lamportsEach, slippageBps uint64) (*domain.Summary, error) {
	if err := validateSweep(mint, wallets, slippageBps); err != nil {
		return nil, err
	}
	if lamportsEach == 0 {
		return nil, ErrZeroAmount
	}

	accounts, err := c.accountsFor(mint)
	if err != nil {
		return nil, err
	}
	reserves, err := c.fetchReserves(ctx, accounts.BondingCurve)
	if err != nil {
		return nil, err
	}

	c.ledger.Track(mint)
	summary := c.begin(domain.OperationBundleBuy, mint, len(wallets))

	processed := 0
	for start := 0; start < len(wallets); start += jito.MaxBundleSize {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		end := min(start+jito.MaxBundleSize, len(wallets))
		chunk := wallets[start:end]

		legs := make([]transaction.Leg, len(chunk))
		quotes := make([]pumpfun.BuyQuote, len(chunk))
		var quoteErr error
		for i, w := range chunk {
			q, err := pumpfun.QuoteBuy(lamportsEach, reserves, slippageBps)
			if err != nil {
				quoteErr = fmt.Errorf("quote buy: %w", err)
				break
			}
			reserves = reserves.Apply(q.LamportsIn, q.TokensOut)
			quotes[i] = q
			legs[i] = transaction.Leg{Signer: w, Trade: transaction.Trade{
				Side:        transaction.Buy,
				Accounts:    accounts,
				TokenAmount: q.MinTokensOut,
				SolLimit:    q.MaxSolCost,
			}}
		}
		if quoteErr != nil {
			// Nothing from this chunk on has been sent.
			c.logger.Warn("Quote failed, skipping remaining wallets",
				zap.Int("remaining", len(wallets)-start),
				zap.Error(quoteErr))
			for _, w := range wallets[start:] {
				outcome := failed(domain.Outcome{Wallet: w.Address(), Lamports: lamportsEach}, quoteErr)
				c.metrics.RecordTrade(transaction.Buy.String(), false)
				summary.Add(outcome)
			}
			break
		}

		for i, w := range chunk {
			c.observer.OnProgress(processed+i+1, len(wallets), w.Address(), events.PhaseBundle)
		}
		processed += len(chunk)

		// Once submitted, the bundle is tracked to its final status so a landed
		// bundle is never reported as failed.
		job, txs, err := c.submitBundle(context.WithoutCancel(ctx), legs, chunk[len(chunk)-1])
		c.publishBundle(summary.ID, job, err)
		for i, w := range chunk {
			// quoted spend; buying MinTokensOut costs no more than this
			outcome := domain.Outcome{Wallet: w.Address(), Lamports: quotes[i].LamportsIn}
			if err != nil {
				outcome.Err = err
				outcome.Kind = failureKind(err)
				var bundleErr *jito.BundleError
				if errors.As(err, &bundleErr) {
					outcome.BundleID = bundleErr.BundleID
				}
			} else {
				outcome.Tokens = quotes[i].MinTokensOut
				outcome.BundleID = job.BundleID
				outcome.Signature = txs[i].Signatures[0]
				c.recordBuy(mint, outcome)
			}
			c.metrics.RecordTrade(transaction.Buy.String(), err == nil)
			summary.Add(outcome)
		}

		if err != nil {
			c.logger.Warn("Bundle did not land",
				zap.Int("legs", len(chunk)),
				zap.Error(err))
		} else {
			c.logger.Info("Bundle landed",
				zap.String("bundle_id", job.BundleID),
				zap.Int("legs", len(chunk)))
		}
	}

	return c.finish(ctx, summary), nil
}

func (c *Campaign) submitBundle(ctx context.Context, legs []transaction.Leg, tipper wallet.Signer) (*jito.Job, []*solana.Transaction, error) {
	txs, err := c.builder.BuildBundle(ctx, legs, tipper, c.tipLamports)
	if err != nil {
		return nil, nil, fmt.Errorf("build bundle: %w", err)
	}
	job, err := c.bundles.Submit(ctx, txs)
	if err != nil {
		return job, nil, err
	}
	return job, txs, nil
}

// SpreadBuy buys from each wallet in turn with a single RPC-sent transaction,
// waiting delay between wallets. Each buy is quoted against a fresh curve read.
// A buy already sent when ctx is cancelled runs to completion.
func (c *Campaign) SpreadBuy(ctx context.Context, mint solana.PublicKey, wallets []wallet.Signer, lamportsEach, slippageBps uint64, delay time.Duration) (*domain.Summary, error) {
	if err := validateSweep(mint, wallets, slippageBps); err != nil {
		return nil, err
	}
	if lamportsEach == 0 {
		return nil, ErrZeroAmount
	}
	if delay < 0 {
		delay = DefaultSpreadDelay
	}

	accounts, err := c.accountsFor(mint)
	if err != nil {
		return nil, err
	}

	c.ledger.Track(mint)
	summary := c.begin(domain.OperationSpreadBuy, mint, len(wallets))

	for i, w := range wallets {
		if i > 0 && !sleep(ctx, delay) {
			summary.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		c.observer.OnProgress(i+1, len(wallets), w.Address(), events.PhaseBuy)

		outcome := c.buyOne(context.WithoutCancel(ctx), accounts, w, lamportsEach, slippageBps)
		if outcome.Success() {
			c.recordBuy(mint, outcome)
		} else {
			c.logger.Warn("Buy failed",
				zap.String("wallet", w.Address().String()),
				zap.String("kind", outcome.Kind),
				zap.Error(outcome.Err))
		}
		c.metrics.RecordTrade(transaction.Buy.String(), outcome.Success())
		summary.Add(outcome)
	}

	return c.finish(ctx, summary), nil
}

func (c *Campaign) buyOne(ctx context.Context, accounts pumpfun.InstructionAccounts, w wallet.Signer, lamports, slippageBps uint64) domain.Outcome {
	outcome := domain.Outcome{Wallet: w.Address(), Lamports: lamports}

	reserves, err := c.fetchReserves(ctx, accounts.BondingCurve)
	if err != nil {
		return failed(outcome, err)
	}
	q, err := pumpfun.QuoteBuy(lamports, reserves, slippageBps)
	if err != nil {
		return failed(outcome, err)
	}
	tx, err := c.builder.BuildTrade(ctx, w, transaction.Trade{
		Side:        transaction.Buy,
		Accounts:    accounts,
		TokenAmount: q.MinTokensOut,
		SolLimit:    q.MaxSolCost,
	})
	if err != nil {
		return failed(outcome, err)
	}
	sig, err := c.chain.SendAndConfirm(ctx, tx, c.confirmTimeout)
	if err != nil {
		outcome.Signature = sig
		return failed(outcome, err)
	}

	outcome.Signature = sig
	outcome.Tokens = q.MinTokensOut
	return outcome
}

// SellAll sells each wallet's full on-chain balance of mint, one wallet at a time.
// Wallets with no balance are reported as KindEmpty successes.
func (c *Campaign) SellAll(ctx context.Context, mint solana.PublicKey, wallets []wallet.Signer, slippageBps uint64) (*domain.Summary, error) {
	if err := validateSweep(mint, wallets, slippageBps); err != nil {
		return nil, err
	}
	accounts, err := c.accountsFor(mint)
	if err != nil {
		return nil, err
	}

	summary := c.begin(domain.OperationSellAll, mint, len(wallets))
	tracked := c.ledger.Mint().Equals(mint)

	for i, w := range wallets {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		c.observer.OnProgress(i+1, len(wallets), w.Address(), events.PhaseSell)

		outcome := c.sellOne(context.WithoutCancel(ctx), accounts, w, slippageBps)
		if outcome.Success() {
			if tracked {
				if _, err := c.ledger.RecordSell(w.Address()); err != nil && !errors.Is(err, holdings.ErrNoHolding) {
					c.logger.Warn("Failed to update holdings", zap.Error(err))
				}
			}
		} else {
			c.logger.Warn("Sell failed",
				zap.String("wallet", w.Address().String()),
				zap.String("kind", outcome.Kind),
				zap.Error(outcome.Err))
		}
		if outcome.Kind != KindEmpty {
			c.metrics.RecordTrade(transaction.Sell.String(), outcome.Success())
		}
		summary.Add(outcome)
	}

	return c.finish(ctx, summary), nil
}

func (c *Campaign) sellOne(ctx context.Context, accounts pumpfun.InstructionAccounts, w wallet.Signer, slippageBps uint64) domain.Outcome {
	outcome := domain.Outcome{Wallet: w.Address()}

	balance, err := c.chain.GetTokenBalance(ctx, w.Address(), accounts.Mint)
	if err != nil {
		return failed(outcome, err)
	}
	if balance == 0 {
		outcome.Kind = KindEmpty
		return outcome
	}
	outcome.Tokens = balance

	reserves, err := c.fetchReserves(ctx, accounts.BondingCurve)
	if err != nil {
		return failed(outcome, err)
	}
	q, err := pumpfun.QuoteSell(balance, reserves, slippageBps)
	if err != nil {
		return failed(outcome, err)
	}
	tx, err := c.builder.BuildTrade(ctx, w, transaction.Trade{
		Side:        transaction.Sell,
		Accounts:    accounts,
		TokenAmount: balance,
		SolLimit:    q.MinLamportsOut,
	})
	if err != nil {
		return failed(outcome, err)
	}
	sig, err := c.chain.SendAndConfirm(ctx, tx, c.confirmTimeout)
	outcome.Signature = sig
	if err != nil {
		return failed(outcome, err)
	}
	outcome.Lamports = q.MinLamportsOut
	return outcome
}

// Valuation prices the ledger's holdings of mint against the live curve.
func (c *Campaign) Valuation(ctx context.Context, mint solana.PublicKey) (holdings.Valuation, error) {
	if mint.IsZero() {
		return holdings.Valuation{}, ErrInvalidMint
	}
	if !c.ledger.Mint().Equals(mint) && c.ledger.Len() > 0 {
		return holdings.Valuation{}, holdings.ErrMintMismatch
	}
	accounts, err := c.accountsFor(mint)
	if err != nil {
		return holdings.Valuation{}, err
	}
	reserves, err := c.fetchReserves(ctx, accounts.BondingCurve)
	if err != nil {
		return holdings.Valuation{}, err
	}
	return holdings.Value(c.ledger.Aggregate(), reserves)
}

func (c *Campaign) accountsFor(mint solana.PublicKey) (pumpfun.InstructionAccounts, error) {
	cfg := c.protocol
	if err := cfg.SetupForToken(mint.String(), c.logger); err != nil {
		return pumpfun.InstructionAccounts{}, err
	}
	return cfg.InstructionAccounts(), nil
}

func (c *Campaign) fetchReserves(ctx context.Context, curve solana.PublicKey) (pumpfun.Reserves, error) {
	bc, err := pumpfun.FetchBondingCurve(ctx, c.chain, curve)
	if err != nil {
		return pumpfun.Reserves{}, err
	}
	return bc.TradableReserves()
}

func (c *Campaign) recordBuy(mint solana.PublicKey, o domain.Outcome) {
	if err := c.ledger.RecordBuy(mint, o.Wallet, o.Tokens, o.Lamports, c.now()); err != nil {
		c.logger.Error("Failed to record holding",
			zap.String("wallet", o.Wallet.String()),
			zap.Error(err))
	}
}

func (c *Campaign) begin(op domain.Operation, mint solana.PublicKey, wallets int) *domain.Summary {
	summary := domain.NewSummary(op, mint, c.now())
	c.logger.Info("Campaign started",
		zap.String("id", summary.ID),
		zap.String("operation", string(op)),
		zap.String("mint", mint.String()),
		zap.Int("wallets", wallets))
	c.publish(events.StartedEvent{
		BaseEvent: c.base(events.CampaignStarted, summary.ID),
		Operation: string(op),
		Mint:      mint,
		Wallets:   wallets,
	})
	return summary
}

// finish stamps the summary, journals it and announces completion. The journal
// write is detached from ctx so cancelled sweeps are still recorded.
func (c *Campaign) finish(ctx context.Context, summary *domain.Summary) *domain.Summary {
	summary.FinishedAt = c.now()
	succeeded, failedCount := len(summary.Succeeded()), len(summary.Failed())

	c.logger.Info("Campaign finished",
		zap.String("id", summary.ID),
		zap.String("operation", string(summary.Operation)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failedCount),
		zap.Bool("cancelled", summary.Cancelled),
		zap.String("total_sol", domain.LamportsToSOL(summary.TotalLamports()).String()))

	if c.journal != nil {
		if err := c.journal.SaveSummary(context.WithoutCancel(ctx), summary); err != nil {
			c.logger.Error("Failed to journal summary", zap.String("id", summary.ID), zap.Error(err))
		}
	}
	c.publish(events.CompletedEvent{
		BaseEvent: c.base(events.CampaignCompleted, summary.ID),
		Operation: string(summary.Operation),
		Succeeded: succeeded,
		Failed:    failedCount,
		Cancelled: summary.Cancelled,
	})
	return summary
}

func (c *Campaign) publishBundle(campaignID string, job *jito.Job, err error) {
	ev := events.BundleEvent{BaseEvent: c.base(events.BundleResolved, campaignID)}
	var bundleErr *jito.BundleError
	switch {
	case err == nil && job != nil:
		ev.BundleID, ev.Status, ev.Attempts = job.BundleID, string(job.Status), job.Attempt
	case errors.As(err, &bundleErr):
		ev.BundleID, ev.Status, ev.Attempts = bundleErr.BundleID, string(bundleErr.Status), bundleErr.Attempts
	default:
		ev.Status = string(jito.StatusUnsent)
	}
	c.publish(ev)
}

func (c *Campaign) publish(ev events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ev); err != nil {
		c.logger.Debug("Event dropped", zap.String("type", string(ev.Type())), zap.Error(err))
	}
}

func (c *Campaign) base(t events.EventType, campaignID string) events.BaseEvent {
	return events.BaseEvent{EventType: t, EventTime: c.now(), CampaignID: campaignID}
}

func validateSweep(mint solana.PublicKey, wallets []wallet.Signer, slippageBps uint64) error {
	if mint.IsZero() {
		return ErrInvalidMint
	}
	if len(wallets) == 0 {
		return ErrNoWallets
	}
	if slippageBps > pumpfun.MaxSlippageBps {
		return fmt.Errorf("%w: got %d", pumpfun.ErrInvalidSlippage, slippageBps)
	}
	return nil
}

func failed(o domain.Outcome, err error) domain.Outcome {
	o.Err = err
	o.Kind = failureKind(err)
	return o
}

// failureKind labels err for the summary.
func failureKind(err error) string {
	var bundleErr *jito.BundleError
	switch {
	case errors.As(err, &bundleErr):
		return "bundle_" + string(bundleErr.Status)
	case errors.Is(err, pumpfun.ErrCurveComplete):
		return string(solbc.KindCurveComplete)
	case errors.Is(err, pumpfun.ErrCurveNotFound):
		return "curve_not_found"
	case errors.Is(err, pumpfun.ErrInvalidReserves):
		return "invalid_reserves"
	}
	return string(solbc.Classify(err))
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
