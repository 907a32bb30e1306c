// =============================
// File: internal/dex/pumpfun/types.go
// =============================
package pumpfun

import (
	"github.com/gagliardetto/solana-go"
)

// BondingCurve mirrors the on-chain bonding curve account after its 8-byte discriminator.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// Reserves returns the virtual reserves used for pricing.
func (bc *BondingCurve) Reserves() Reserves {
	return Reserves{Sol: bc.VirtualSolReserves, Token: bc.VirtualTokenReserves}
}

// Reserves is a snapshot of the virtual AMM reserves of one curve.
type Reserves struct {
	Sol   uint64
	Token uint64
}

// BuyQuote is the result of pricing a buy at a frozen snapshot.
type BuyQuote struct {
	LamportsIn   uint64
	TokensOut    uint64 // unthrottled output
	MinTokensOut uint64
	MaxSolCost   uint64
}

// SellQuote is the result of pricing a sell at a frozen snapshot.
type SellQuote struct {
	TokensIn       uint64
	LamportsOut    uint64 // unthrottled output
	MinLamportsOut uint64
}

// InstructionAccounts holds the protocol accounts required by buy and sell.
type InstructionAccounts struct {
	Program                solana.PublicKey
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey
	EventAuthority         solana.PublicKey
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
}

// CurveAccounts are the two deterministic addresses derived per mint.
type CurveAccounts struct {
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
}
