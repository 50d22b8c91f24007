package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit        TransactionType = "deposit"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionAuctionPayment TransactionType = "auction_payment"
	TransactionAuctionIncome  TransactionType = "auction_income"
	TransactionPlatformFee    TransactionType = "platform_fee"
)

type TransactionStatus string

const TransactionCompleted TransactionStatus = "completed"

// IsCredit reports whether the type adds funds to a wallet.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionDeposit, TransactionAuctionIncome, TransactionPlatformFee:
		return true
	}
	return false
}

// Transaction is an append-only journal row. Amount is signed: credits positive, debits negative.
type Transaction struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	Status      TransactionStatus
	ReferenceID *string
	AuctionID   *uuid.UUID
	CreatedAt   time.Time
}

func NewTransaction(walletID uuid.UUID, txType TransactionType, amount decimal.Decimal, auctionID *uuid.UUID, now time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      txType,
		Amount:    amount,
		Status:    TransactionCompleted,
		AuctionID: auctionID,
		CreatedAt: now,
	}
}
