package application

import (
	"context"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow is the part of the wallet context that bidding and settlement drive.
type Escrow interface {
	AvailableFor(ctx context.Context, userID, auctionID uuid.UUID) (decimal.Decimal, error)
	EnsureHold(ctx context.Context, userID, auctionID uuid.UUID, amount decimal.Decimal) (*walletdomain.FundHold, error)
	ReleaseHold(ctx context.Context, userID, auctionID uuid.UUID) error
	ReleaseAllForAuction(ctx context.Context, auctionID uuid.UUID, keep *uuid.UUID) error
	ConsumeHold(ctx context.Context, userID, auctionID uuid.UUID, amount decimal.Decimal) (*walletdomain.Transaction, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType walletdomain.TransactionType, auctionID *uuid.UUID) (*walletdomain.Transaction, error)
}

// DeadlineScheduler arms and disarms the finalization timer of an auction.
type DeadlineScheduler interface {
	Schedule(auctionID uuid.UUID, endTime time.Time)
	Cancel(auctionID uuid.UUID)
}

// LiveBroadcaster pushes live auction state to connected watchers.
type LiveBroadcaster interface {
	AuctionUpdated(state *domain.LiveState)
}

type noopBroadcaster struct{}

func (noopBroadcaster) AuctionUpdated(*domain.LiveState) {}

type noopScheduler struct{}

func (noopScheduler) Schedule(uuid.UUID, time.Time) {}
func (noopScheduler) Cancel(uuid.UUID)              {}
