// =============================
// File: internal/dex/pumpfun/config.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Known PumpFun protocol addresses
var (
	// Program ID for Pump.fun protocol
	PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Global state account of the program
	PumpFunGlobal = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")

	// Protocol fee recipient
	PumpFunFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

	// Event authority for the Pump.fun protocol
	PumpFunEventAuth = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")

	// AssociatedTokenProgramID is the SPL associated token account program.
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID

	// SysvarRentPubkey is the rent sysvar passed to buy.
	SysvarRentPubkey = solana.SysVarRentPubkey
)

// Config holds the protocol addresses used to build instructions for one mint.
type Config struct {
	ContractAddress solana.PublicKey
	Global          solana.PublicKey
	FeeRecipient    solana.PublicKey
	EventAuthority  solana.PublicKey

	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
}

// GetDefaultConfig creates a configuration with mainnet protocol addresses and no mint.
func GetDefaultConfig() *Config {
	return &Config{
		ContractAddress: PumpFunProgramID,
		Global:          PumpFunGlobal,
		FeeRecipient:    PumpFunFeeRecipient,
		EventAuthority:  PumpFunEventAuth,
	}
}

// SetupForToken derives the bonding curve accounts for tokenMint.
func (cfg *Config) SetupForToken(tokenMint string, logger *zap.Logger) error {
	if tokenMint == "" {
		return fmt.Errorf("token mint address is required")
	}

	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return fmt.Errorf("invalid token mint address: %w", err)
	}

	if cfg.ContractAddress.IsZero() {
		cfg.ContractAddress = PumpFunProgramID
	}
	if cfg.Global.IsZero() {
		cfg.Global = PumpFunGlobal
	}
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = PumpFunFeeRecipient
	}
	if cfg.EventAuthority.IsZero() {
		cfg.EventAuthority = PumpFunEventAuth
	}

	curves, err := DeriveCurveAccounts(cfg.ContractAddress, mint)
	if err != nil {
		return err
	}

	cfg.Mint = mint
	cfg.BondingCurve = curves.BondingCurve
	cfg.AssociatedBondingCurve = curves.AssociatedBondingCurve

	logger.Info("PumpFun configuration prepared",
		zap.String("program_id", cfg.ContractAddress.String()),
		zap.String("token_mint", cfg.Mint.String()),
		zap.String("bonding_curve", cfg.BondingCurve.String()),
		zap.String("associated_bonding_curve", cfg.AssociatedBondingCurve.String()))

	return nil
}

// InstructionAccounts returns the protocol accounts shared by buy and sell.
func (cfg *Config) InstructionAccounts() InstructionAccounts {
	return InstructionAccounts{
		Program:                cfg.ContractAddress,
		Global:                 cfg.Global,
		FeeRecipient:           cfg.FeeRecipient,
		EventAuthority:         cfg.EventAuthority,
		Mint:                   cfg.Mint,
		BondingCurve:           cfg.BondingCurve,
		AssociatedBondingCurve: cfg.AssociatedBondingCurve,
	}
}
