package jito

import "github.com/gagliardetto/solana-go"

// Mainnet tip accounts published by the block engine.
var tipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4bVNa1xJZmCkrhGnVw6nNYS",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// TipAccounts returns the fixed tip account pool.
func TipAccounts() []solana.PublicKey {
	out := make([]solana.PublicKey, len(tipAccounts))
	for i, s := range tipAccounts {
		out[i] = solana.MustPublicKeyFromBase58(s)
	}
	return out
}
