package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
)

const dsnEnv = "PUMP_BUNDLER_TEST_POSTGRES_DSN"

// setupTestDB connects to the database named by PUMP_BUNDLER_TEST_POSTGRES_DSN
// and applies migrations. Tests are skipped when it is unset.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// migrations are idempotent
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func TestJournal(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	journal := NewJournal(pool)

	started := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.NewSummary(domain.OperationBundleBuy, solana.NewWallet().PublicKey(), started)
	s.FinishedAt = started.Add(30 * time.Second)
	s.Add(domain.Outcome{
		Wallet:    solana.NewWallet().PublicKey(),
		Lamports:  100_000_000,
		Tokens:    3_500_000_000_000,
		Signature: solana.Signature{1, 2, 3},
		BundleID:  "bundle-1",
	})
	s.Add(domain.Outcome{
		Wallet: solana.NewWallet().PublicKey(),
		Kind:   "slippage_exceeded",
		Err:    errors.New("custom program error: 0x1772"),
	})

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, journal.SaveSummary(ctx, s))

		got, err := journal.GetSummary(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Operation, got.Operation)
		assert.Equal(t, s.Mint, got.Mint)
		assert.True(t, s.StartedAt.Equal(got.StartedAt))
		require.Len(t, got.Outcomes, 2)
		assert.Equal(t, s.Outcomes[0].Signature, got.Outcomes[0].Signature)
		assert.Equal(t, uint64(3_500_000_000_000), got.Outcomes[0].Tokens)
		assert.True(t, got.Outcomes[0].Success())
		assert.Equal(t, "slippage_exceeded", got.Outcomes[1].Kind)
		assert.Equal(t, "custom program error: 0x1772", got.Outcomes[1].Error())
	})

	t.Run("duplicate", func(t *testing.T) {
		assert.ErrorIs(t, journal.SaveSummary(ctx, s), storage.ErrDuplicateKey)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := journal.GetSummary(ctx, "missing-summary")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		list, err := journal.ListSummaries(ctx, domain.OperationBundleBuy, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, domain.OperationBundleBuy, list[0].Operation)
	})
}
