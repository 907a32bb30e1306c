// internal/funding/planner.go
package funding

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultInterval separates consecutive transfers of a schedule.
const DefaultInterval = 2 * time.Second

var (
	ErrNoTargets       = errors.New("no funding targets")
	ErrDuplicateTarget = errors.New("duplicate funding target")
	ErrAmountTooSmall  = errors.New("total amount is smaller than one lamport per target")
	ErrInvalidInterval = errors.New("funding interval must be positive")
)

// Entry is one direct transfer of a schedule.
type Entry struct {
	Target         solana.PublicKey
	AmountLamports uint64
	ExecuteAt      time.Time
}

// Schedule lists transfers in execution order. ExecuteAt is strictly increasing.
type Schedule struct {
	Entries []Entry
}

// Total returns the lamports the schedule moves.
func (s Schedule) Total() uint64 {
	var total uint64
	for _, e := range s.Entries {
		total += e.AmountLamports
	}
	return total
}

// Planner splits a funding amount across targets.
type Planner struct {
	Interval time.Duration
}

// Plan splits total evenly across targets in the given order. The remainder of
// the division goes one lamport each to the first entries.
func (p Planner) Plan(targets []solana.PublicKey, total uint64, start time.Time) (Schedule, error) {
	if len(targets) == 0 {
		return Schedule{}, ErrNoTargets
	}
	interval := p.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		return Schedule{}, ErrInvalidInterval
	}

	n := uint64(len(targets))
	share := total / n
	if share == 0 {
		return Schedule{}, fmt.Errorf("%w: %d lamports for %d targets", ErrAmountTooSmall, total, n)
	}
	remainder := total % n

	seen := make(map[solana.PublicKey]struct{}, len(targets))
	entries := make([]Entry, len(targets))
	for i, target := range targets {
		if _, dup := seen[target]; dup {
			return Schedule{}, fmt.Errorf("%w: %s", ErrDuplicateTarget, target)
		}
		seen[target] = struct{}{}

		amount := share
		if uint64(i) < remainder {
			amount++
		}
		entries[i] = Entry{
			Target:         target,
			AmountLamports: amount,
			ExecuteAt:      start.Add(time.Duration(i) * interval),
		}
	}
	return Schedule{Entries: entries}, nil
}
