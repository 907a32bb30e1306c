// ==============================================
// File: internal/dex/pumpfun/instructions.go
// ==============================================
package pumpfun

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators (first 8 bytes of sha256("global:<name>")).
var (
	BuyDiscriminator  = [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	SellDiscriminator = [8]byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

const (
	// InstructionDataSize is discriminator + two u64 fields.
	InstructionDataSize = 24
	// InstructionAccountCount is the number of accounts for both buy and sell.
	InstructionAccountCount = 12
)

// EncodeBuyData serializes [disc][tokenAmount][maxSolCost].
func EncodeBuyData(tokenAmount, maxSolCost uint64) []byte {
	return encode(BuyDiscriminator, tokenAmount, maxSolCost)
}

// EncodeSellData serializes [disc][tokenAmount][minSolOutput].
func EncodeSellData(tokenAmount, minSolOutput uint64) []byte {
	return encode(SellDiscriminator, tokenAmount, minSolOutput)
}

func encode(disc [8]byte, first, second uint64) []byte {
	data := make([]byte, InstructionDataSize)
	copy(data, disc[:])
	binary.LittleEndian.PutUint64(data[8:16], first)
	binary.LittleEndian.PutUint64(data[16:24], second)
	return data
}

// BuyAccountMetas returns the account list of buy in program order.
func BuyAccountMetas(accounts InstructionAccounts, user, associatedUser solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: accounts.Global, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: associatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: SysvarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.Program, IsSigner: false, IsWritable: false},
	}
}

// SellAccountMetas returns the account list of sell in program order.
// Unlike buy it carries the associated token program and no rent sysvar.
func SellAccountMetas(accounts InstructionAccounts, user, associatedUser solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: accounts.Global, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: associatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: AssociatedTokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.Program, IsSigner: false, IsWritable: false},
	}
}

// BuildBuyInstruction builds a buy of tokenAmount paying at most maxSolCost lamports.
func BuildBuyInstruction(accounts InstructionAccounts, user solana.PublicKey, tokenAmount, maxSolCost uint64) (solana.Instruction, error) {
	if err := accounts.validate(); err != nil {
		return nil, err
	}
	associatedUser, err := DeriveUserTokenAccount(user, accounts.Mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		accounts.Program,
		BuyAccountMetas(accounts, user, associatedUser),
		EncodeBuyData(tokenAmount, maxSolCost),
	), nil
}

// BuildSellInstruction builds a sell of tokenAmount receiving at least minSolOutput lamports.
func BuildSellInstruction(accounts InstructionAccounts, user solana.PublicKey, tokenAmount, minSolOutput uint64) (solana.Instruction, error) {
	if err := accounts.validate(); err != nil {
		return nil, err
	}
	associatedUser, err := DeriveUserTokenAccount(user, accounts.Mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		accounts.Program,
		SellAccountMetas(accounts, user, associatedUser),
		EncodeSellData(tokenAmount, minSolOutput),
	), nil
}

func (a InstructionAccounts) validate() error {
	switch {
	case a.Program.IsZero():
		return fmt.Errorf("program address is required")
	case a.Mint.IsZero():
		return fmt.Errorf("token mint address is required")
	case a.BondingCurve.IsZero() || a.AssociatedBondingCurve.IsZero():
		return fmt.Errorf("bonding curve accounts are required")
	}
	return nil
}
