// internal/domain/summary.go
package domain

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Operation names a wallet sweep.
type Operation string

const (
	OperationFund      Operation = "fund"
	OperationCollect   Operation = "collect"
	OperationBundleBuy Operation = "bundle_buy"
	OperationSpreadBuy Operation = "spread_buy"
	OperationSellAll   Operation = "sell_all"
)

// Outcome is the result of one wallet in a sweep.
type Outcome struct {
	Wallet    solana.PublicKey
	Lamports  uint64
	Tokens    uint64
	Signature solana.Signature
	BundleID  string
	Kind      string
	Err       error
}

// Success reports whether the wallet's step completed.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Error returns the failure text, empty on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary reports every wallet of a sweep, successes and failures alike.
type Summary struct {
	ID         string
	Operation  Operation
	Mint       solana.PublicKey
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Outcomes   []Outcome
}

// NewSummary starts a summary with a fresh id.
func NewSummary(op Operation, mint solana.PublicKey, started time.Time) *Summary {
	return &Summary{
		ID:        uuid.NewString(),
		Operation: op,
		Mint:      mint,
		StartedAt: started,
	}
}

func (s *Summary) Add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// Succeeded returns the outcomes without error.
func (s *Summary) Succeeded() []Outcome {
	return s.filter(true)
}

// Failed returns the outcomes that need attention.
func (s *Summary) Failed() []Outcome {
	return s.filter(false)
}

func (s *Summary) filter(success bool) []Outcome {
	out := make([]Outcome, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		if o.Success() == success {
			out = append(out, o)
		}
	}
	return out
}

// TotalLamports sums lamports over successful outcomes.
func (s *Summary) TotalLamports() uint64 {
	var total uint64
	for _, o := range s.Outcomes {
		if o.Success() {
			total += o.Lamports
		}
	}
	return total
}

// TotalTokens sums tokens over successful outcomes.
func (s *Summary) TotalTokens() uint64 {
	var total uint64
	for _, o := range s.Outcomes {
		if o.Success() {
			total += o.Tokens
		}
	}
	return total
}

// LamportsToSOL converts lamports to an exact SOL amount.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}

// SOLToLamports converts a SOL amount to lamports, truncating below one lamport.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	lamports := sol.Shift(9).Truncate(0)
	if lamports.IsNegative() || !lamports.BigInt().IsUint64() {
		return 0, &AmountError{Value: sol.String()}
	}
	return lamports.BigInt().Uint64(), nil
}

// AmountError is returned for SOL amounts outside the lamport range.
type AmountError struct {
	Value string
}

func (e *AmountError) Error() string {
	return "SOL amount out of range: " + e.Value
}
