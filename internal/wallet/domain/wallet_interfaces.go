package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// GetByUserIDForUpdate locks the wallet row for the rest of the surrounding transaction.
	GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Create(ctx context.Context, wallet *Wallet) error
	AdjustBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type HoldRepository interface {
	Get(ctx context.Context, userID, auctionID uuid.UUID) (*FundHold, error)
	// Upsert creates the hold or resizes the existing one for the same (user, auction).
	Upsert(ctx context.Context, hold *FundHold) error
	Delete(ctx context.Context, userID, auctionID uuid.UUID) (*FundHold, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*FundHold, error)
	TotalActiveByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*Transaction, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Transaction, error)
}
