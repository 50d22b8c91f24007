package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one user's spendable balance. Active holds reserve part of it
// without debiting; Available is what new holds and withdrawals may use.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FundHold is a provisional reservation of funds tied to one bidder and one auction.
// At most one exists per (UserID, AuctionID).
type FundHold struct {
	UserID    uuid.UUID
	AuctionID uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletSummary is the read model exposed to callers.
type WalletSummary struct {
	WalletID  uuid.UUID       `json:"wallet_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Held      decimal.Decimal `json:"held"`
	Available decimal.Decimal `json:"available"`
}

func NewWallet(userID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Available returns balance minus the given held total.
func (w *Wallet) Available(held decimal.Decimal) decimal.Decimal {
	return w.Balance.Sub(held)
}
