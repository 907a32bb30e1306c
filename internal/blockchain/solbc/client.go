// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var ErrConfirmationTimeout = errors.New("confirmation timeout")

// Client is a thin solana-go adapter that spreads calls over several RPC nodes.
type Client struct {
	pool   *pool
	logger *zap.Logger
}

// NewClient creates a client over the given RPC URLs.
func NewClient(rpcURLs []string, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("solbc-client")
	p, err := newPool(rpcURLs, logger)
	if err != nil {
		return nil, err
	}
	return &Client{pool: p, logger: logger}, nil
}

// GetRecentBlockhash fetches the latest blockhash. It is never cached.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := execute(ctx, c.pool, "getLatestBlockhash", func(ctx context.Context, rc *rpc.Client) (*rpc.GetLatestBlockhashResult, error) {
		return rc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	})
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetAccountInfo returns the account or nil when it does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := execute(ctx, c.pool, "getAccountInfo", func(ctx context.Context, rc *rpc.Client) (*rpc.GetAccountInfoResult, error) {
		return rc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return &rpc.GetAccountInfoResult{}, nil
	}
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// AccountExists reports whether pubkey holds an account.
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	info, err := c.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return info != nil && info.Value != nil, nil
}

// GetBalance returns the lamport balance of pubkey.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := execute(ctx, c.pool, "getBalance", func(ctx context.Context, rc *rpc.Client) (*rpc.GetBalanceResult, error) {
		return rc.GetBalance(ctx, pubkey, commitment)
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenBalance returns the raw token amount held by owner for mint.
// A missing token account is a zero balance.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive associated token account: %w", err)
	}

	result, err := execute(ctx, c.pool, "getTokenAccountBalance", func(ctx context.Context, rc *rpc.Client) (*rpc.GetTokenAccountBalanceResult, error) {
		return rc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	})
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get token account balance: %w", err)
	}
	if result == nil || result.Value == nil || result.Value.Amount == "" {
		return 0, nil
	}

	balance, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return balance, nil
}

// SendTransaction submits a signed transaction with preflight enabled.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := execute(ctx, c.pool, "sendTransaction", func(ctx context.Context, rc *rpc.Client) (solana.Signature, error) {
		return rc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// WaitForConfirmation polls the signature status until it is confirmed or fails.
func (c *Client) WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
		case <-ticker.C:
			statuses, err := execute(ctx, c.pool, "getSignatureStatuses", func(ctx context.Context, rc *rpc.Client) (*rpc.GetSignatureStatusesResult, error) {
				return rc.GetSignatureStatuses(ctx, false, signature)
			})
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", signature, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				return nil
			}
		}
	}
}

// SendAndConfirm sends tx and waits for confirmation.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction, timeout time.Duration) (solana.Signature, error) {
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := c.WaitForConfirmation(ctx, sig, timeout); err != nil {
		return sig, err
	}
	return sig, nil
}

// IsAccountNotFoundError reports whether err means the account does not exist.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	// getTokenAccountBalance answers "could not find account" as a JSON-RPC error
	return strings.Contains(strings.ToLower(err.Error()), "could not find account")
}
