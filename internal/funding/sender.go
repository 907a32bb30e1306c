package funding

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// DefaultConfirmTimeout bounds the wait for one transfer to confirm.
const DefaultConfirmTimeout = 60 * time.Second

// TransferBuilder builds signed system transfers.
type TransferBuilder interface {
	BuildTransfer(ctx context.Context, from wallet.Signer, to solana.PublicKey, lamports uint64) (*solana.Transaction, error)
}

// Submitter sends a transaction and waits for confirmation.
type Submitter interface {
	SendAndConfirm(ctx context.Context, tx *solana.Transaction, timeout time.Duration) (solana.Signature, error)
}

// ChainSender is a Sender over the transaction assembler and the RPC client.
type ChainSender struct {
	builder   TransferBuilder
	submitter Submitter
	timeout   time.Duration
}

func NewChainSender(builder TransferBuilder, submitter Submitter, timeout time.Duration) *ChainSender {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &ChainSender{builder: builder, submitter: submitter, timeout: timeout}
}

func (s *ChainSender) Transfer(ctx context.Context, from wallet.Signer, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	tx, err := s.builder.BuildTransfer(ctx, from, to, lamports)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.submitter.SendAndConfirm(ctx, tx, s.timeout)
}
