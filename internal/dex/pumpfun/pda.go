// =============================
// File: internal/dex/pumpfun/pda.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const bondingCurveSeed = "bonding-curve"

// DeriveBondingCurve returns the bonding curve PDA of mint under programID.
func DeriveBondingCurve(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(bondingCurveSeed), mint.Bytes()}, programID)
}

// DeriveAssociatedBondingCurve returns the token account that holds the curve's
// token reserve: seeds (curve, token program, mint) under the associated token program.
func DeriveAssociatedBondingCurve(bondingCurve, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{bondingCurve.Bytes(), solana.TokenProgramID.Bytes(), mint.Bytes()},
		AssociatedTokenProgramID,
	)
}

// DeriveCurveAccounts derives both curve addresses for mint.
func DeriveCurveAccounts(programID, mint solana.PublicKey) (CurveAccounts, error) {
	curve, _, err := DeriveBondingCurve(programID, mint)
	if err != nil {
		return CurveAccounts{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	assoc, _, err := DeriveAssociatedBondingCurve(curve, mint)
	if err != nil {
		return CurveAccounts{}, fmt.Errorf("failed to derive associated bonding curve: %w", err)
	}
	return CurveAccounts{BondingCurve: curve, AssociatedBondingCurve: assoc}, nil
}

// DeriveUserTokenAccount returns the associated token account of owner for mint.
func DeriveUserTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token account: %w", err)
	}
	return ata, nil
}
