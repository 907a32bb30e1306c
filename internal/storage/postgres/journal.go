package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
)

// Journal implements storage.Journal using PostgreSQL.
type Journal struct {
	pool *Pool
}

// NewJournal creates a new Journal.
func NewJournal(pool *Pool) *Journal {
	return &Journal{pool: pool}
}

var _ storage.Journal = (*Journal)(nil)

// SaveSummary inserts a summary and its outcomes atomically.
func (j *Journal) SaveSummary(ctx context.Context, s *domain.Summary) error {
	if err := storage.Validate(s); err != nil {
		return err
	}
	for _, o := range s.Outcomes {
		if o.Lamports > math.MaxInt64 || o.Tokens > math.MaxInt64 {
			return fmt.Errorf("%w: outcome amount overflows BIGINT", storage.ErrInvalidInput)
		}
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO campaign_summaries (summary_id, operation, mint, started_at, finished_at, cancelled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, string(s.Operation), s.Mint.String(), s.StartedAt, s.FinishedAt, s.Cancelled)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert summary: %w", err)
	}

	if len(s.Outcomes) > 0 {
		batch := &pgx.Batch{}
		for i, o := range s.Outcomes {
			var sig string
			if !o.Signature.IsZero() {
				sig = o.Signature.String()
			}
			batch.Queue(`
				INSERT INTO campaign_outcomes (
					summary_id, position, wallet, lamports, tokens,
					signature, bundle_id, error_kind, error_text
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, s.ID, i, o.Wallet.String(), int64(o.Lamports), int64(o.Tokens),
				sig, o.BundleID, o.Kind, o.Error())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSummary retrieves a summary by id.
func (j *Journal) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	row := j.pool.QueryRow(ctx, `
		SELECT summary_id, operation, mint, started_at, finished_at, cancelled
		FROM campaign_summaries
		WHERE summary_id = $1
	`, id)
	s, err := scanSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}
	if err := j.loadOutcomes(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSummaries returns the newest summaries first.
func (j *Journal) ListSummaries(ctx context.Context, op domain.Operation, limit int) ([]*domain.Summary, error) {
	query := `
		SELECT summary_id, operation, mint, started_at, finished_at, cancelled
		FROM campaign_summaries
		WHERE ($1 = '' OR operation = $1)
		ORDER BY started_at DESC, summary_id
	`
	args := []any{string(op)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []*domain.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	for _, s := range out {
		if err := j.loadOutcomes(ctx, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (j *Journal) loadOutcomes(ctx context.Context, s *domain.Summary) error {
	rows, err := j.pool.Query(ctx, `
		SELECT wallet, lamports, tokens, signature, bundle_id, error_kind, error_text
		FROM campaign_outcomes
		WHERE summary_id = $1
		ORDER BY position
	`, s.ID)
	if err != nil {
		return fmt.Errorf("get outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			walletStr, sigStr, errText string
			lamports, tokens           int64
			o                          domain.Outcome
		)
		if err := rows.Scan(&walletStr, &lamports, &tokens, &sigStr, &o.BundleID, &o.Kind, &errText); err != nil {
			return fmt.Errorf("scan outcome: %w", err)
		}
		if o.Wallet, err = solana.PublicKeyFromBase58(walletStr); err != nil {
			return fmt.Errorf("decode outcome wallet: %w", err)
		}
		if sigStr != "" {
			if o.Signature, err = solana.SignatureFromBase58(sigStr); err != nil {
				return fmt.Errorf("decode outcome signature: %w", err)
			}
		}
		o.Lamports, o.Tokens = uint64(lamports), uint64(tokens)
		if errText != "" {
			o.Err = errors.New(errText)
		}
		s.Outcomes = append(s.Outcomes, o)
	}
	return rows.Err()
}

func scanSummary(row pgx.Row) (*domain.Summary, error) {
	var (
		s         domain.Summary
		operation string
		mint      string
		started   time.Time
		finished  time.Time
	)
	if err := row.Scan(&s.ID, &operation, &mint, &started, &finished, &s.Cancelled); err != nil {
		return nil, err
	}
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	s.Operation = domain.Operation(operation)
	s.Mint = pk
	s.StartedAt, s.FinishedAt = started.UTC(), finished.UTC()
	return &s, nil
}
