package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rovshanmuradov/pump-bundler/internal/domain"
	"github.com/rovshanmuradov/pump-bundler/internal/storage"
)

// Journal is an in-memory implementation of storage.Journal.
type Journal struct {
	mu   sync.RWMutex
	data map[string]*domain.Summary
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{data: make(map[string]*domain.Summary)}
}

var _ storage.Journal = (*Journal)(nil)

func (j *Journal) SaveSummary(_ context.Context, s *domain.Summary) error {
	if err := storage.Validate(s); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.data[s.ID]; exists {
		return storage.ErrDuplicateKey
	}
	j.data[s.ID] = clone(s)
	return nil
}

func (j *Journal) GetSummary(_ context.Context, id string) (*domain.Summary, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s, exists := j.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return clone(s), nil
}

func (j *Journal) ListSummaries(_ context.Context, op domain.Operation, limit int) ([]*domain.Summary, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []*domain.Summary
	for _, s := range j.data {
		if op == "" || s.Operation == op {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].StartedAt.After(out[b].StartedAt)
		}
		return out[a].ID < out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// clone copies a summary so callers cannot mutate stored state. Errors are
// flattened to text, matching what a persistent journal can return.
func clone(s *domain.Summary) *domain.Summary {
	c := *s
	c.Outcomes = make([]domain.Outcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		if o.Err != nil {
			o.Err = errors.New(o.Err.Error())
		}
		c.Outcomes[i] = o
	}
	return &c
}
