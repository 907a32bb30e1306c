// =============================
// File: internal/dex/pumpfun/accounts.go
// =============================
package pumpfun

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// BondingCurveDiscriminator prefixes every bonding curve account.
var BondingCurveDiscriminator = [8]byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}

var (
	ErrCurveNotFound = errors.New("bonding curve account not found")
	ErrCurveComplete = errors.New("bonding curve is complete")
)

// AccountReader is the part of the RPC client needed to read program state.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// FetchBondingCurve reads and decodes the bonding curve account at addr.
func FetchBondingCurve(ctx context.Context, client AccountReader, addr solana.PublicKey) (*BondingCurve, error) {
	info, err := client.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get bonding curve account: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, addr)
	}
	return DecodeBondingCurve(info.Value.Data.GetBinary())
}

// DecodeBondingCurve parses raw account data.
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid bonding curve data: insufficient length %d", len(data))
	}
	if !bytes.Equal(data[:8], BondingCurveDiscriminator[:]) {
		return nil, fmt.Errorf("invalid bonding curve data: unexpected discriminator %x", data[:8])
	}

	var bc BondingCurve
	if err := bin.NewBorshDecoder(data[8:]).Decode(&bc); err != nil {
		return nil, fmt.Errorf("failed to decode bonding curve: %w", err)
	}
	return &bc, nil
}

// TradableReserves returns the curve reserves or an error if the curve cannot trade.
func (bc *BondingCurve) TradableReserves() (Reserves, error) {
	if bc.Complete {
		return Reserves{}, ErrCurveComplete
	}
	r := bc.Reserves()
	if r.Sol == 0 || r.Token == 0 {
		return Reserves{}, ErrInvalidReserves
	}
	return r, nil
}
