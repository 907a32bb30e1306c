package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
)

func summaryAt(op domain.Operation, at time.Time) *domain.Summary {
	s := domain.NewSummary(op, solana.NewWallet().PublicKey(), at)
	s.FinishedAt = at.Add(time.Minute)
	s.Add(domain.Outcome{Wallet: solana.NewWallet().PublicKey(), Lamports: 10})
	s.Add(domain.Outcome{Wallet: solana.NewWallet().PublicKey(), Err: errors.New("slippage")})
	return s
}

func TestJournalSaveGet(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	s := summaryAt(domain.OperationSellAll, time.Now())

	require.NoError(t, j.SaveSummary(ctx, s))
	assert.ErrorIs(t, j.SaveSummary(ctx, s), storage.ErrDuplicateKey)

	got, err := j.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Mint, got.Mint)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, "slippage", got.Outcomes[1].Error())

	got.Outcomes[0].Lamports = 99
	again, err := j.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), again.Outcomes[0].Lamports)

	_, err = j.GetSummary(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournalRejectsInvalid(t *testing.T) {
	j := NewJournal()
	assert.ErrorIs(t, j.SaveSummary(context.Background(), nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, j.SaveSummary(context.Background(), &domain.Summary{ID: "x"}), storage.ErrInvalidInput)
}

func TestJournalList(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	fund := summaryAt(domain.OperationFund, base)
	buy1 := summaryAt(domain.OperationBundleBuy, base.Add(time.Hour))
	buy2 := summaryAt(domain.OperationBundleBuy, base.Add(2*time.Hour))
	for _, s := range []*domain.Summary{fund, buy1, buy2} {
		require.NoError(t, j.SaveSummary(ctx, s))
	}

	all, err := j.ListSummaries(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, buy2.ID, all[0].ID)
	assert.Equal(t, fund.ID, all[2].ID)

	buys, err := j.ListSummaries(ctx, domain.OperationBundleBuy, 1)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	assert.Equal(t, buy2.ID, buys[0].ID)
}
