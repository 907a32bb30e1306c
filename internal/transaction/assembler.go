// internal/transaction/assembler.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

const (
	DefaultComputeUnits              = 200_000
	DefaultPriorityFeeMicroLamports  = 5_000
	createIdempotentInstructionIndex = 1
)

var (
	// ErrChainUnavailable marks a failed chain read. Callers may retry.
	ErrChainUnavailable = errors.New("chain state unavailable")
	ErrNoLegs           = errors.New("bundle has no legs")
	ErrNoTipAccounts    = errors.New("no tip accounts configured")
	ErrNilSigner        = errors.New("signer is required")
)

// ChainClient is the chain state the assembler reads before signing.
type ChainClient interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
}

// Side is the direction of a trade.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Trade describes one buy or sell instruction.
// SolLimit is the max SOL cost for a buy and the min SOL output for a sell.
type Trade struct {
	Side        Side
	Accounts    pumpfun.InstructionAccounts
	TokenAmount uint64
	SolLimit    uint64
}

// Leg is one transaction of a bundle.
type Leg struct {
	Signer wallet.Signer
	Trade  Trade
}

// Options configures the compute budget of every trade transaction.
type Options struct {
	ComputeUnits             uint32
	PriorityFeeMicroLamports uint64
}

// Assembler turns trades into signed transactions.
type Assembler struct {
	client      ChainClient
	opts        Options
	tipAccounts []solana.PublicKey
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAssembler creates an assembler. rng picks tip accounts and must not be nil
// when bundles are built.
func NewAssembler(client ChainClient, opts Options, tipAccounts []solana.PublicKey, rng *rand.Rand, logger *zap.Logger) *Assembler {
	if opts.ComputeUnits == 0 {
		opts.ComputeUnits = DefaultComputeUnits
	}
	if opts.PriorityFeeMicroLamports == 0 {
		opts.PriorityFeeMicroLamports = DefaultPriorityFeeMicroLamports
	}
	return &Assembler{
		client:      client,
		opts:        opts,
		tipAccounts: tipAccounts,
		rng:         rng,
		logger:      logger.Named("assembler"),
	}
}

// BuildBuy builds and signs a single buy transaction paid by signer.
func (a *Assembler) BuildBuy(ctx context.Context, signer wallet.Signer, accounts pumpfun.InstructionAccounts, tokenAmount, maxSolCost uint64) (*solana.Transaction, error) {
	return a.BuildTrade(ctx, signer, Trade{Side: Buy, Accounts: accounts, TokenAmount: tokenAmount, SolLimit: maxSolCost})
}

// BuildSell builds and signs a single sell transaction paid by signer.
func (a *Assembler) BuildSell(ctx context.Context, signer wallet.Signer, accounts pumpfun.InstructionAccounts, tokenAmount, minSolOutput uint64) (*solana.Transaction, error) {
	return a.BuildTrade(ctx, signer, Trade{Side: Sell, Accounts: accounts, TokenAmount: tokenAmount, SolLimit: minSolOutput})
}

// BuildTrade builds and signs a plain trade transaction without a tip.
func (a *Assembler) BuildTrade(ctx context.Context, signer wallet.Signer, trade Trade) (*solana.Transaction, error) {
	if signer == nil {
		return nil, ErrNilSigner
	}
	instructions, err := a.tradeInstructions(ctx, signer.Address(), trade)
	if err != nil {
		return nil, err
	}
	return a.sign(ctx, signer.Address(), instructions, signer)
}

// BuildBundle builds one transaction per leg. The last leg also carries a tip
// paid by tipper to a randomly chosen tip account. The tipper co-signs that
// leg when it is not the leg's fee payer.
func (a *Assembler) BuildBundle(ctx context.Context, legs []Leg, tipper wallet.Signer, tipLamports uint64) ([]*solana.Transaction, error) {
	if len(legs) == 0 {
		return nil, ErrNoLegs
	}
	if tipper == nil {
		return nil, ErrNilSigner
	}

	txs := make([]*solana.Transaction, 0, len(legs))
	for i, leg := range legs[:len(legs)-1] {
		tx, err := a.BuildTrade(ctx, leg.Signer, leg.Trade)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	last := legs[len(legs)-1]
	tx, err := a.buildTipped(ctx, last, tipper, tipLamports)
	if err != nil {
		return nil, fmt.Errorf("leg %d: %w", len(legs)-1, err)
	}
	return append(txs, tx), nil
}

// buildTipped rebuilds the last leg with the tip transfer appended and signs it again.
func (a *Assembler) buildTipped(ctx context.Context, leg Leg, tipper wallet.Signer, tipLamports uint64) (*solana.Transaction, error) {
	if leg.Signer == nil {
		return nil, ErrNilSigner
	}
	tipAccount, err := a.pickTipAccount()
	if err != nil {
		return nil, err
	}

	instructions, err := a.tradeInstructions(ctx, leg.Signer.Address(), leg.Trade)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions,
		system.NewTransferInstruction(tipLamports, tipper.Address(), tipAccount).Build())

	a.logger.Debug("Tip added to last bundle leg",
		zap.String("tip_account", tipAccount.String()),
		zap.Uint64("tip_lamports", tipLamports))

	signers := []wallet.Signer{leg.Signer}
	if !tipper.Address().Equals(leg.Signer.Address()) {
		signers = append(signers, tipper)
	}
	return a.sign(ctx, leg.Signer.Address(), instructions, signers...)
}

// BuildTransfer builds and signs a plain SOL transfer.
func (a *Assembler) BuildTransfer(ctx context.Context, from wallet.Signer, to solana.PublicKey, lamports uint64) (*solana.Transaction, error) {
	if from == nil {
		return nil, ErrNilSigner
	}
	instructions := []solana.Instruction{
		system.NewTransferInstruction(lamports, from.Address(), to).Build(),
	}
	return a.sign(ctx, from.Address(), instructions, from)
}

func (a *Assembler) tradeInstructions(ctx context.Context, payer solana.PublicKey, trade Trade) ([]solana.Instruction, error) {
	instructions := a.computeBudget()

	userATA, err := pumpfun.DeriveUserTokenAccount(payer, trade.Accounts.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token account: %w", err)
	}

	if trade.Side == Buy {
		exists, err := a.client.AccountExists(ctx, userATA)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrChainUnavailable, err)
		}
		if !exists {
			instructions = append(instructions, createAssociatedTokenAccount(payer, userATA, trade.Accounts.Mint))
		}
	}

	var ix solana.Instruction
	switch trade.Side {
	case Buy:
		ix, err = pumpfun.BuildBuyInstruction(trade.Accounts, payer, trade.TokenAmount, trade.SolLimit)
	case Sell:
		ix, err = pumpfun.BuildSellInstruction(trade.Accounts, payer, trade.TokenAmount, trade.SolLimit)
	default:
		err = fmt.Errorf("unknown trade side %d", trade.Side)
	}
	if err != nil {
		return nil, err
	}
	return append(instructions, ix), nil
}

func (a *Assembler) computeBudget() []solana.Instruction {
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(a.opts.ComputeUnits).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(a.opts.PriorityFeeMicroLamports).Build(),
	}
}

// sign fetches a fresh blockhash, compiles the message and collects every signature.
func (a *Assembler) sign(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction, signers ...wallet.Signer) (*solana.Transaction, error) {
	blockhash, err := a.client.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get recent blockhash: %w", ErrChainUnavailable, err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	for _, s := range signers {
		if err := s.SignTransaction(tx); err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("transaction is not fully signed: %w", err)
	}
	return tx, nil
}

func (a *Assembler) pickTipAccount() (solana.PublicKey, error) {
	if len(a.tipAccounts) == 0 {
		return solana.PublicKey{}, ErrNoTipAccounts
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tipAccounts[a.rng.IntN(len(a.tipAccounts))], nil
}

// createAssociatedTokenAccount is the idempotent variant of the ATA program's create.
func createAssociatedTokenAccount(payer, ata, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		pumpfun.AssociatedTokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: payer, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		},
		[]byte{createIdempotentInstructionIndex},
	)
}
