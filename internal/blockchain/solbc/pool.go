// internal/blockchain/solbc/pool.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 250 * time.Millisecond
	defaultReqTimeout    = 10 * time.Second
)

var ErrNoRPCNodes = errors.New("no RPC nodes available")

// node is a single RPC endpoint.
type node struct {
	client *solanarpc.Client
	url    string
}

// pool rotates requests over the configured RPC endpoints.
type pool struct {
	nodes    []node
	current  int
	mu       sync.Mutex
	attempts uint
	delay    time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func newPool(urls []string, logger *zap.Logger) (*pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}
	nodes := make([]node, len(urls))
	for i, url := range urls {
		nodes[i] = node{client: solanarpc.New(url), url: url}
	}
	return &pool{
		nodes:    nodes,
		attempts: defaultRetryAttempts,
		delay:    defaultRetryDelay,
		timeout:  defaultReqTimeout,
		logger:   logger,
	}, nil
}

// next returns the current node and advances the pointer.
func (p *pool) next() node {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.nodes[p.current]
	p.current = (p.current + 1) % len(p.nodes)
	return n
}

// execute runs operation against successive nodes with exponential backoff.
// Errors marked permanent, including JSON-RPC rejections, are not retried.
func execute[T any](ctx context.Context, p *pool, method string, operation func(context.Context, *solanarpc.Client) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.delay
	policy.MaxInterval = p.delay * 8

	attempt := 0
	op := func() (T, error) {
		attempt++
		n := p.next()

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		out, err := operation(reqCtx, n.client)
		if err == nil {
			return out, nil
		}

		wrapped := &Error{Err: err, NodeURL: n.url, Method: method}
		if isPermanent(err) {
			return out, backoff.Permanent(wrapped)
		}
		p.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", n.url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return out, wrapped
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(p.attempts))
}

func isPermanent(err error) bool {
	if errors.Is(err, solanarpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr)
}

// Error is an RPC failure annotated with the node and method.
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
