package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// WalletRepository implements domain.WalletRepository interface
type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const selectWallet = `
        SELECT id, user_id, balance, created_at, updated_at
        FROM wallets
        WHERE user_id = $1
    `

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return r.get(ctx, selectWallet, userID)
}

// GetByUserIDForUpdate must run inside a transaction; the row lock is held until it ends.
func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return r.get(ctx, selectWallet+" FOR UPDATE", userID)
}

func (r *WalletRepository) get(ctx context.Context, query string, userID uuid.UUID) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&w.ID,
		&w.UserID,
		&w.Balance,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
        INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		wallet.ID,
		wallet.UserID,
		wallet.Balance,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	return err
}

// AdjustBalance applies delta and returns the new balance. The balance >= 0 check constraint
// turns an overdraft into an error instead of a negative balance.
func (r *WalletRepository) AdjustBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
        UPDATE wallets
        SET balance = balance + $2, updated_at = NOW()
        WHERE id = $1
        RETURNING balance
    `
	var balance decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, walletID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}
