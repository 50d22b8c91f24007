package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletRepository is a concurrency-safe in-memory implementation of domain.WalletRepository.
// Row locking is provided by the db.LocalTxManager the escrow service runs under.
type WalletRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*domain.Wallet
	byUser map[uuid.UUID]uuid.UUID
}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{
		byID:   make(map[uuid.UUID]*domain.Wallet),
		byUser: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	w := *r.byID[id]
	return &w, nil
}

func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[wallet.UserID]; ok {
		return fmt.Errorf("create wallet for user %s: already exists", wallet.UserID)
	}
	w := *wallet
	r.byID[w.ID] = &w
	r.byUser[w.UserID] = w.ID
	return nil
}

func (r *WalletRepository) AdjustBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.byID[walletID]
	if !ok {
		return decimal.Zero, domain.ErrWalletNotFound
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	w.Balance = next
	return next, nil
}

type holdKey struct {
	user    uuid.UUID
	auction uuid.UUID
}

// HoldRepository keys holds by (user, auction), which makes a second active hold for the same pair impossible.
type HoldRepository struct {
	mu    sync.RWMutex
	holds map[holdKey]*domain.FundHold
}

func NewHoldRepository() *HoldRepository {
	return &HoldRepository{holds: make(map[holdKey]*domain.FundHold)}
}

func (r *HoldRepository) Get(ctx context.Context, userID, auctionID uuid.UUID) (*domain.FundHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.holds[holdKey{userID, auctionID}]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *HoldRepository) Upsert(ctx context.Context, hold *domain.FundHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := holdKey{hold.UserID, hold.AuctionID}
	if existing, ok := r.holds[key]; ok {
		existing.Amount = hold.Amount
		existing.UpdatedAt = hold.UpdatedAt
		return nil
	}
	cp := *hold
	r.holds[key] = &cp
	return nil
}

func (r *HoldRepository) Delete(ctx context.Context, userID, auctionID uuid.UUID) (*domain.FundHold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := holdKey{userID, auctionID}
	h, ok := r.holds[key]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	delete(r.holds, key)
	return h, nil
}

func (r *HoldRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.FundHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.FundHold
	for k, h := range r.holds {
		if k.auction == auctionID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *HoldRepository) TotalActiveByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := decimal.Zero
	for k, h := range r.holds {
		if k.user == userID {
			total = total.Add(h.Amount)
		}
	}
	return total, nil
}

// TransactionRepository is an append-only journal.
type TransactionRepository struct {
	mu  sync.RWMutex
	txs []*domain.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *tx
	r.txs = append(r.txs, &cp)
	return nil
}

func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.Transaction, error) {
	return r.filter(func(t *domain.Transaction) bool { return t.WalletID == walletID }), nil
}

func (r *TransactionRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Transaction, error) {
	return r.filter(func(t *domain.Transaction) bool { return t.AuctionID != nil && *t.AuctionID == auctionID }), nil
}

func (r *TransactionRepository) filter(keep func(*domain.Transaction) bool) []*domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range r.txs {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}
