// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a summary with the same id was already saved.
	ErrDuplicateKey = errors.New("duplicate key: journal does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// Journal keeps finished sweep summaries so operators can look up which
// wallets still need attention after the process exits.
type Journal interface {
	// SaveSummary appends a summary. Returns ErrDuplicateKey if its id exists.
	SaveSummary(ctx context.Context, s *domain.Summary) error

	// GetSummary returns a summary with its outcomes. Returns ErrNotFound if missing.
	GetSummary(ctx context.Context, id string) (*domain.Summary, error)

	// ListSummaries returns the newest summaries first. An empty operation matches all.
	ListSummaries(ctx context.Context, op domain.Operation, limit int) ([]*domain.Summary, error)
}

// Validate checks the fields every journal requires.
func Validate(s *domain.Summary) error {
	if s == nil || s.ID == "" || s.Operation == "" {
		return ErrInvalidInput
	}
	return nil
}
