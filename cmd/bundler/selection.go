package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

var errEmptySelection = errors.New("no wallets selected")

// selectWallets picks wallets by a selector: "all", "first:N", or a comma list
// of wallet indices and index ranges such as "0,2,5-7".
func selectWallets(all []*wallet.Wallet, selector string) ([]*wallet.Wallet, error) {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "" || selector == "all":
		if len(all) == 0 {
			return nil, errEmptySelection
		}
		return all, nil
	case strings.HasPrefix(selector, "first:"):
		n, err := strconv.Atoi(strings.TrimPrefix(selector, "first:"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid wallet count in %q", selector)
		}
		if n > len(all) {
			return nil, fmt.Errorf("requested %d wallets, only %d available", n, len(all))
		}
		return all[:n], nil
	}

	byIndex := make(map[int]*wallet.Wallet, len(all))
	for _, w := range all {
		byIndex[w.Index] = w
	}

	var picked []*wallet.Wallet
	seen := make(map[int]bool)
	for _, part := range strings.Split(selector, ",") {
		lo, hi, err := parseRange(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			w, ok := byIndex[i]
			if !ok {
				return nil, fmt.Errorf("wallet index %d: %w", i, wallet.ErrWalletNotFound)
			}
			if !seen[i] {
				seen[i] = true
				picked = append(picked, w)
			}
		}
	}
	if len(picked) == 0 {
		return nil, errEmptySelection
	}
	return picked, nil
}

func parseRange(part string) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(from)
	if err != nil || lo < 0 {
		return 0, 0, fmt.Errorf("invalid wallet index %q", part)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(to)
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("invalid wallet range %q", part)
	}
	return lo, hi, nil
}

func signers(ws []*wallet.Wallet) []wallet.Signer {
	out := make([]wallet.Signer, len(ws))
	for i, w := range ws {
		out[i] = w.Signer()
	}
	return out
}

func addresses(ws []*wallet.Wallet) []solana.PublicKey {
	out := make([]solana.PublicKey, len(ws))
	for i, w := range ws {
		out[i] = w.Address()
	}
	return out
}

// parseSOL converts a decimal SOL amount such as "0.25" to lamports.
func parseSOL(raw string) (uint64, error) {
	if raw == "" {
		return 0, errors.New("amount is required")
	}
	sol, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", raw, err)
	}
	lamports, err := domain.SOLToLamports(sol)
	if err != nil {
		return 0, err
	}
	if lamports == 0 {
		return 0, fmt.Errorf("amount %q is zero", raw)
	}
	return lamports, nil
}

func parseMint(raw string) (solana.PublicKey, error) {
	if raw == "" {
		return solana.PublicKey{}, errors.New("-mint is required")
	}
	mint, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint %q: %w", raw, err)
	}
	return mint, nil
}
