// internal/holdings/ledger.go
package holdings

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMintMismatch is returned when a buy is recorded for a mint other than
	// the tracked one while holdings exist.
	ErrMintMismatch = errors.New("holdings exist for a different mint")
	ErrNoHolding    = errors.New("no holding for wallet")
)

// Holding is one wallet's position in the tracked token.
type Holding struct {
	Wallet        solana.PublicKey
	TokenBalance  uint64
	LamportsSpent uint64 // spend cap of the buys, an upper bound on their cost
	AcquiredAt    time.Time
}

// Aggregate is the total exposure across wallets.
type Aggregate struct {
	Mint               solana.PublicKey
	TotalTokens        uint64
	TotalLamportsSpent uint64
	PerWallet          []Holding
}

// Ledger tracks holdings of a single mint keyed by wallet.
type Ledger struct {
	mu       sync.RWMutex
	mint     solana.PublicKey
	holdings map[solana.PublicKey]*Holding
}

func NewLedger() *Ledger {
	return &Ledger{holdings: make(map[solana.PublicKey]*Holding)}
}

// Track switches the ledger to mint. Switching to a different mint clears all holdings.
func (l *Ledger) Track(mint solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mint.Equals(mint) {
		l.holdings = make(map[solana.PublicKey]*Holding)
	}
	l.mint = mint
}

// Mint returns the tracked mint, zero when nothing is tracked.
func (l *Ledger) Mint() solana.PublicKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mint
}

// RecordBuy adds tokens and cost to the wallet's holding. The acquisition time
// is kept from the first buy.
func (l *Ledger) RecordBuy(mint, wallet solana.PublicKey, tokens, lamports uint64, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mint.Equals(mint) {
		if len(l.holdings) > 0 {
			return fmt.Errorf("%w: tracking %s, got %s", ErrMintMismatch, l.mint, mint)
		}
		l.mint = mint
	}

	h, ok := l.holdings[wallet]
	if !ok {
		l.holdings[wallet] = &Holding{
			Wallet:        wallet,
			TokenBalance:  tokens,
			LamportsSpent: lamports,
			AcquiredAt:    at,
		}
		return nil
	}
	h.TokenBalance += tokens
	h.LamportsSpent += lamports
	return nil
}

// RecordSell removes the wallet's holding and returns it.
func (l *Ledger) RecordSell(wallet solana.PublicKey) (Holding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holdings[wallet]
	if !ok {
		return Holding{}, fmt.Errorf("%w: %s", ErrNoHolding, wallet)
	}
	delete(l.holdings, wallet)
	return *h, nil
}

// Get returns a copy of the wallet's holding.
func (l *Ledger) Get(wallet solana.PublicKey) (Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.holdings[wallet]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Aggregate sums all holdings. PerWallet is ordered by acquisition time, then address.
func (l *Ledger) Aggregate() Aggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	agg := Aggregate{Mint: l.mint, PerWallet: make([]Holding, 0, len(l.holdings))}
	for _, h := range l.holdings {
		agg.TotalTokens += h.TokenBalance
		agg.TotalLamportsSpent += h.LamportsSpent
		agg.PerWallet = append(agg.PerWallet, *h)
	}
	sort.Slice(agg.PerWallet, func(i, j int) bool {
		a, b := agg.PerWallet[i], agg.PerWallet[j]
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.Wallet.String() < b.Wallet.String()
	})
	return agg
}

// Len returns the number of wallets with a holding.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.holdings)
}

// Clear drops all holdings and the tracked mint.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings = make(map[solana.PublicKey]*Holding)
	l.mint = solana.PublicKey{}
}
