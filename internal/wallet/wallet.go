// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet is a Solana key pair plus the metadata kept by the wallet store.
type Wallet struct {
	PrivateKey      solana.PrivateKey
	PublicKey       solana.PublicKey
	Index           int
	Funded          bool
	BalanceLamports uint64
	CreatedAt       time.Time
}

// NewWallet creates a wallet from a base58-encoded 64-byte private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		CreatedAt:  time.Now(),
	}, nil
}

// Generate creates a fresh random wallet.
func Generate(index int, now time.Time) (*Wallet, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		Index:      index,
		CreatedAt:  now,
	}, nil
}

// SignTransaction signs tx with the wallet key. Other required signers are left untouched.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.PartialSign(w.keyGetter)
	return err
}

func (w *Wallet) keyGetter(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(w.PublicKey) {
		return &w.PrivateKey
	}
	return nil
}

// Signer exposes the wallet's signing capability without its key material.
func (w *Wallet) Signer() Signer {
	return w
}

// Address returns the wallet public key.
func (w *Wallet) Address() solana.PublicKey {
	return w.PublicKey
}

// GetATA returns the associated token account of the wallet for mint.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	return ata, err
}

// String returns the wallet public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// Signer is the capability to sign as one public key.
type Signer interface {
	Address() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}
