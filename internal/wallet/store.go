// ==================================
// File: internal/wallet/store.go
// ==================================
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Record is the persisted form of a wallet.
type Record struct {
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
	Index      int       `json:"index"`
	Funded     bool      `json:"funded"`
	Balance    uint64    `json:"balance"`
	CreatedAt  time.Time `json:"createdAt"`
}

var ErrWalletNotFound = errors.New("wallet not found")

// BalanceReader is the RPC call used by Refresh.
type BalanceReader interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// Store keeps the trading wallets and persists them as a JSON record array.
type Store struct {
	mu      sync.RWMutex
	path    string
	wallets []*Wallet
	logger  *zap.Logger
}

// NewStore creates an empty store bound to path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.Named("wallet-store"),
	}
}

// Load reads the record file. A missing file yields an empty store.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("Wallet file not found, starting empty", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read wallet file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse wallet file: %w", err)
	}

	wallets := make([]*Wallet, 0, len(records))
	for _, r := range records {
		w, err := fromRecord(r)
		if err != nil {
			return fmt.Errorf("wallet %d: %w", r.Index, err)
		}
		wallets = append(wallets, w)
	}

	s.mu.Lock()
	s.wallets = wallets
	s.mu.Unlock()

	s.logger.Info("Wallets loaded", zap.Int("count", len(wallets)))
	return nil
}

// Save writes all wallets to the record file.
func (s *Store) Save() error {
	s.mu.RLock()
	records := make([]Record, 0, len(s.wallets))
	for _, w := range s.wallets {
		records = append(records, toRecord(w))
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode wallets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Generate appends n new wallets and returns them.
func (s *Store) Generate(n int) ([]*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 0
	for _, w := range s.wallets {
		if w.Index >= next {
			next = w.Index + 1
		}
	}

	now := time.Now()
	created := make([]*Wallet, 0, n)
	for i := 0; i < n; i++ {
		w, err := Generate(next+i, now)
		if err != nil {
			return nil, err
		}
		created = append(created, w)
	}
	s.wallets = append(s.wallets, created...)

	s.logger.Info("Wallets generated", zap.Int("count", n), zap.Int("total", len(s.wallets)))
	return created, nil
}

// Import adds a wallet from its base58 private key.
func (s *Store) Import(privateKeyBase58 string) (*Wallet, error) {
	w, err := NewWallet(privateKeyBase58)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.wallets {
		if existing.PublicKey.Equals(w.PublicKey) {
			return existing, nil
		}
		if existing.Index >= w.Index {
			w.Index = existing.Index + 1
		}
	}
	s.wallets = append(s.wallets, w)
	return w, nil
}

// All returns the wallets ordered by index.
func (s *Store) All() []*Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Wallet, len(s.wallets))
	copy(out, s.wallets)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Get returns the wallet with public key pk.
func (s *Store) Get(pk solana.PublicKey) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.PublicKey.Equals(pk) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, pk)
}

// MarkFunded sets the funded flag and balance of pk.
func (s *Store) MarkFunded(pk solana.PublicKey, balance uint64) error {
	w, err := s.Get(pk)
	if err != nil {
		return err
	}
	s.mu.Lock()
	w.Funded = true
	w.BalanceLamports = balance
	s.mu.Unlock()
	return nil
}

// DeleteAll removes every wallet and returns how many were removed.
func (s *Store) DeleteAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.wallets)
	s.wallets = nil
	s.logger.Warn("All wallets deleted", zap.Int("count", n))
	return n
}

// Export returns the persisted records, private keys included.
func (s *Store) Export() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, toRecord(w))
	}
	return out
}

// Refresh updates the balance of every wallet. The reads run concurrently
// with at most limit requests in flight; nothing is sent on chain.
func (s *Store) Refresh(ctx context.Context, client BalanceReader, limit int) error {
	wallets := s.All()
	balances := make([]uint64, len(wallets))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, w := range wallets {
		g.Go(func() error {
			balance, err := client.GetBalance(gCtx, w.PublicKey, rpc.CommitmentConfirmed)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", w.PublicKey, err)
			}
			balances[i] = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	for i, w := range wallets {
		w.BalanceLamports = balances[i]
		if balances[i] > 0 {
			w.Funded = true
		}
	}
	s.mu.Unlock()
	return nil
}

func toRecord(w *Wallet) Record {
	return Record{
		PublicKey:  w.PublicKey.String(),
		PrivateKey: base58.Encode(w.PrivateKey),
		Index:      w.Index,
		Funded:     w.Funded,
		Balance:    w.BalanceLamports,
		CreatedAt:  w.CreatedAt,
	}
}

func fromRecord(r Record) (*Wallet, error) {
	w, err := NewWallet(r.PrivateKey)
	if err != nil {
		return nil, err
	}
	if r.PublicKey != "" && r.PublicKey != w.PublicKey.String() {
		return nil, fmt.Errorf("public key %s does not match private key", r.PublicKey)
	}
	w.Index = r.Index
	w.Funded = r.Funded
	w.BalanceLamports = r.Balance
	w.CreatedAt = r.CreatedAt
	return w, nil
}
