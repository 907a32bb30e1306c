// internal/funding/router.go
package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/events"
	"github.com/rovshanmuradov/pump-bundler/internal/metrics"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// DefaultFeeReserve is left behind by Collect to pay the transfer's signature fee.
const DefaultFeeReserve = 5_000

var (
	ErrNilSource         = errors.New("funding source is required")
	ErrInsufficientFunds = errors.New("source balance does not cover the schedule")
)

// KindEmpty marks a collect outcome for a wallet with nothing to sweep.
const KindEmpty = "empty"

// Sender moves lamports between wallets and returns once the transfer is confirmed.
type Sender interface {
	Transfer(ctx context.Context, from wallet.Signer, to solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// BalanceReader reads lamport balances.
type BalanceReader interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// Router executes funding schedules and collects balances back, one wallet at a time.
type Router struct {
	sender     Sender
	balances   BalanceReader
	metrics    *metrics.Collector
	logger     *zap.Logger
	feeReserve uint64
	now        func() time.Time
}

func NewRouter(sender Sender, balances BalanceReader, collector *metrics.Collector, logger *zap.Logger) *Router {
	return &Router{
		sender:     sender,
		balances:   balances,
		metrics:    collector,
		logger:     logger.Named("funding"),
		feeReserve: DefaultFeeReserve,
		now:        time.Now,
	}
}

// SetFeeReserve overrides the lamports kept back per wallet to pay transfer fees.
func (r *Router) SetFeeReserve(lamports uint64) {
	r.feeReserve = lamports
}

// Execute runs the schedule from source. A failed transfer is recorded and the
// run continues. Cancellation is checked between entries; a transfer already
// started runs to completion. The error is non-nil only when nothing was attempted.
func (r *Router) Execute(ctx context.Context, source wallet.Signer, schedule Schedule, observer events.Observer) (*domain.Summary, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if observer == nil {
		observer = events.Nop()
	}

	need := schedule.Total() + uint64(len(schedule.Entries))*r.feeReserve
	balance, err := r.balances.GetBalance(ctx, source.Address(), rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to read source balance: %w", err)
	}
	if balance < need {
		return nil, fmt.Errorf("%w: have %s SOL, need %s SOL", ErrInsufficientFunds,
			domain.LamportsToSOL(balance), domain.LamportsToSOL(need))
	}

	summary := domain.NewSummary(domain.OperationFund, solana.PublicKey{}, r.now())
	total := len(schedule.Entries)

	r.logger.Info("Funding started",
		zap.String("summary_id", summary.ID),
		zap.String("source", source.Address().String()),
		zap.Int("targets", total),
		zap.String("total_sol", domain.LamportsToSOL(schedule.Total()).String()))

	for i, entry := range schedule.Entries {
		if err := r.waitUntil(ctx, entry.ExecuteAt); err != nil {
			summary.Cancelled = true
			r.logger.Warn("Funding cancelled", zap.Int("completed", i), zap.Int("total", total))
			break
		}
		observer.OnProgress(i+1, total, entry.Target, events.PhaseFund)

		sig, err := r.sender.Transfer(context.WithoutCancel(ctx), source, entry.Target, entry.AmountLamports)
		outcome := domain.Outcome{Wallet: entry.Target, Lamports: entry.AmountLamports, Signature: sig, Err: err}
		if err != nil {
			outcome.Kind = string(solbc.Classify(err))
			r.logger.Error("Funding transfer failed",
				zap.String("target", entry.Target.String()),
				zap.String("kind", outcome.Kind),
				zap.Error(err))
		} else {
			r.logger.Info("Wallet funded",
				zap.String("target", entry.Target.String()),
				zap.String("sol", domain.LamportsToSOL(entry.AmountLamports).String()),
				zap.String("signature", sig.String()))
		}
		r.metrics.RecordTransfer(string(domain.OperationFund), err == nil)
		summary.Add(outcome)
	}

	summary.FinishedAt = r.now()
	r.logger.Info("Funding finished",
		zap.String("summary_id", summary.ID),
		zap.Int("succeeded", len(summary.Succeeded())),
		zap.Int("failed", len(summary.Failed())),
		zap.Bool("cancelled", summary.Cancelled))
	return summary, nil
}

// Collect sweeps each wallet's balance minus the fee reserve to dest.
func (r *Router) Collect(ctx context.Context, wallets []wallet.Signer, dest solana.PublicKey, observer events.Observer) *domain.Summary {
	if observer == nil {
		observer = events.Nop()
	}
	summary := domain.NewSummary(domain.OperationCollect, solana.PublicKey{}, r.now())

	for i, w := range wallets {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		observer.OnProgress(i+1, len(wallets), w.Address(), events.PhaseCollect)
		summary.Add(r.collectOne(ctx, w, dest))
	}

	summary.FinishedAt = r.now()
	r.logger.Info("Collect finished",
		zap.String("summary_id", summary.ID),
		zap.String("dest", dest.String()),
		zap.String("collected_sol", domain.LamportsToSOL(summary.TotalLamports()).String()),
		zap.Int("failed", len(summary.Failed())),
		zap.Bool("cancelled", summary.Cancelled))
	return summary
}

func (r *Router) collectOne(ctx context.Context, w wallet.Signer, dest solana.PublicKey) domain.Outcome {
	outcome := domain.Outcome{Wallet: w.Address()}
	if w.Address().Equals(dest) {
		outcome.Kind = KindEmpty
		return outcome
	}

	balance, err := r.balances.GetBalance(ctx, w.Address(), rpc.CommitmentConfirmed)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to read balance: %w", err)
		outcome.Kind = string(solbc.KindTransient)
		return outcome
	}
	if balance <= r.feeReserve {
		outcome.Kind = KindEmpty
		return outcome
	}

	amount := balance - r.feeReserve
	sig, err := r.sender.Transfer(context.WithoutCancel(ctx), w, dest, amount)
	r.metrics.RecordTransfer(string(domain.OperationCollect), err == nil)
	if err != nil {
		outcome.Err = err
		outcome.Kind = string(solbc.Classify(err))
		r.logger.Error("Collect transfer failed", zap.String("wallet", w.Address().String()), zap.Error(err))
		return outcome
	}
	outcome.Lamports = amount
	outcome.Signature = sig
	return outcome
}

func (r *Router) waitUntil(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := at.Sub(r.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
