// internal/jito/client.go
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/mr-tron/base58"
)

// MaxBundleSize is the relay's limit of transactions per bundle.
const MaxBundleSize = 5

// Relay confirmation states reported by getBundleStatuses.
const (
	ConfirmationProcessed = "processed"
	ConfirmationConfirmed = "confirmed"
	ConfirmationFinalized = "finalized"
)

// BundleStatus is one entry of getBundleStatuses.
type BundleStatus struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

// Failed reports whether the relay attached an execution error to the bundle.
// A successful bundle carries {"Ok": null}.
func (s *BundleStatus) Failed() bool {
	raw := bytes.TrimSpace(s.Err)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		_, ok := obj["Ok"]
		return !ok
	}
	return true
}

// Landed reports whether the bundle reached confirmed or finalized.
func (s *BundleStatus) Landed() bool {
	return s.ConfirmationStatus == ConfirmationConfirmed || s.ConfirmationStatus == ConfirmationFinalized
}

type bundleStatusesResult struct {
	Value []*BundleStatus `json:"value"`
}

// Client talks to one relay bundle endpoint over JSON-RPC 2.0.
type Client struct {
	endpoint string
	rpc      jsonrpc.RPCClient
}

// NewClient creates a client for the relay bundle endpoint, e.g.
// https://mainnet.block-engine.jito.wtf/api/v1/bundles.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint, rpc: jsonrpc.NewClient(endpoint)}
}

// Endpoint returns the relay URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendBundle submits base58-encoded signed transactions and returns the bundle id.
func (c *Client) SendBundle(ctx context.Context, encoded []string) (string, error) {
	var bundleID string
	if err := c.rpc.CallForInto(ctx, &bundleID, "sendBundle", []interface{}{encoded}); err != nil {
		return "", fmt.Errorf("sendBundle: %w", err)
	}
	if bundleID == "" {
		return "", fmt.Errorf("sendBundle: empty bundle id")
	}
	return bundleID, nil
}

// GetBundleStatus returns the relay status of bundleID, or nil when the relay
// does not know it yet.
func (c *Client) GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	var out bundleStatusesResult
	if err := c.rpc.CallForInto(ctx, &out, "getBundleStatuses", []interface{}{[]string{bundleID}}); err != nil {
		return nil, fmt.Errorf("getBundleStatuses: %w", err)
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// EncodeTransactions serializes signed transactions in the relay's base58 wire form.
func EncodeTransactions(txs []*solana.Transaction) ([]string, error) {
	encoded := make([]string, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize transaction %d: %w", i, err)
		}
		encoded[i] = base58.Encode(raw)
	}
	return encoded, nil
}
