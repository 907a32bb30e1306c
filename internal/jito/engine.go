// internal/jito/engine.go
package jito

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/metrics"
)

const (
	DefaultMaxRetries   = 3
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 60 * time.Second
)

var (
	ErrBundleTooLarge = fmt.Errorf("bundle exceeds %d transactions", MaxBundleSize)
	ErrEmptyBundle    = errors.New("bundle has no transactions")
	ErrNoEndpoints    = errors.New("no relay endpoints configured")
)

// Status is the lifecycle state of a bundle job.
type Status string

const (
	StatusUnsent  Status = "unsent"
	StatusPending Status = "pending"
	StatusLanded  Status = "landed"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is possible for this attempt.
func (s Status) Terminal() bool {
	return s == StatusLanded || s == StatusFailed || s == StatusExpired
}

// Job is one submission of a bundle to one relay endpoint.
// A retry creates a new Job against the next endpoint.
type Job struct {
	Transactions []*solana.Transaction
	Endpoint     string
	BundleID     string
	Status       Status
	Attempt      int
}

// BundleError is returned when every attempt ended without landing.
// BundleID and Status describe the last attempt.
type BundleError struct {
	BundleID string
	Status   Status
	Attempts int
	Err      error
}

func (e *BundleError) Error() string {
	msg := fmt.Sprintf("bundle not landed after %d attempts (last status %s", e.Attempts, e.Status)
	if e.BundleID != "" {
		msg += ", bundle " + e.BundleID
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// relay is the part of Client the engine depends on.
type relay interface {
	Endpoint() string
	SendBundle(ctx context.Context, encoded []string) (string, error)
	GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error)
}

// Config controls retries and polling.
type Config struct {
	Endpoints    []string
	MaxRetries   int
	PollInterval time.Duration
	Timeout      time.Duration
}

// Engine submits bundles, polls their status and rotates across relay endpoints.
// The rotation pointer is its only state between calls.
type Engine struct {
	relays       []relay
	maxRetries   int
	pollInterval time.Duration
	timeout      time.Duration
	metrics      *metrics.Collector
	logger       *zap.Logger

	mu   sync.Mutex
	next int
}

// NewEngine creates an engine with one Client per endpoint.
func NewEngine(cfg Config, collector *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	relays := make([]relay, len(cfg.Endpoints))
	for i, endpoint := range cfg.Endpoints {
		relays[i] = NewClient(endpoint)
	}
	return newEngine(relays, cfg, collector, logger), nil
}

func newEngine(relays []relay, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{
		relays:       relays,
		maxRetries:   cfg.MaxRetries,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		metrics:      collector,
		logger:       logger.Named("jito"),
	}
}

// Submit sends txs as one bundle until it lands or retries are exhausted.
// On exhaustion it returns the last job together with a *BundleError.
func (e *Engine) Submit(ctx context.Context, txs []*solana.Transaction) (*Job, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyBundle
	}
	if len(txs) > MaxBundleSize {
		return nil, ErrBundleTooLarge
	}
	encoded, err := EncodeTransactions(txs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		job     *Job
		lastErr error
	)
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		r := e.rotate()
		job = &Job{Transactions: txs, Endpoint: r.Endpoint(), Status: StatusUnsent, Attempt: attempt}

		lastErr = e.attempt(ctx, r, job, encoded)
		if job.Status == StatusLanded {
			e.logger.Info("Bundle landed",
				zap.String("bundle_id", job.BundleID),
				zap.String("endpoint", job.Endpoint),
				zap.Int("attempt", attempt))
			e.metrics.RecordBundle(string(StatusLanded), attempt, time.Since(start))
			return job, nil
		}

		e.logger.Warn("Bundle attempt did not land",
			zap.String("bundle_id", job.BundleID),
			zap.String("endpoint", job.Endpoint),
			zap.String("status", string(job.Status)),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	e.metrics.RecordBundle(string(job.Status), job.Attempt, time.Since(start))
	return job, &BundleError{
		BundleID: job.BundleID,
		Status:   job.Status,
		Attempts: job.Attempt,
		Err:      lastErr,
	}
}

// attempt drives one job through unsent → pending → terminal.
func (e *Engine) attempt(ctx context.Context, r relay, job *Job, encoded []string) error {
	bundleID, err := r.SendBundle(ctx, encoded)
	if err != nil {
		job.Status = StatusFailed
		return err
	}
	job.BundleID = bundleID
	job.Status = StatusPending

	status, err := e.poll(ctx, r, bundleID)
	job.Status = status
	return err
}

// poll checks the bundle status every pollInterval until it is terminal or the
// timeout passes. Status query errors are logged and polling continues.
func (e *Engine) poll(ctx context.Context, r relay, bundleID string) (Status, error) {
	deadline := time.NewTimer(e.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return StatusPending, ctx.Err()
		case <-deadline.C:
			return StatusExpired, nil
		case <-ticker.C:
			status, err := r.GetBundleStatus(ctx, bundleID)
			if err != nil {
				e.logger.Debug("Bundle status query failed",
					zap.String("bundle_id", bundleID),
					zap.String("endpoint", r.Endpoint()),
					zap.Error(err))
				continue
			}
			if status == nil {
				continue
			}
			if status.Failed() {
				return StatusFailed, fmt.Errorf("bundle %s failed: %s", bundleID, string(status.Err))
			}
			if status.Landed() {
				return StatusLanded, nil
			}
		}
	}
}

func (e *Engine) rotate() relay {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.relays[e.next]
	e.next = (e.next + 1) % len(e.relays)
	return r
}
