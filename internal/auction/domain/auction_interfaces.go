package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionRepository interface {
	Create(ctx context.Context, auction *Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// Update writes the editable fields and status, only if the stored status still equals expected.
	// Otherwise it returns ErrInvalidTransition.
	Update(ctx context.Context, auction *Auction, expected Status) error
	// RecordBid bumps bid_count and raises current_bid/current_bidder when amount is higher, atomically.
	// It returns the leader the bid displaced, nil if there was none.
	RecordBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*uuid.UUID, error)
	// Close moves an approved auction to closed and stores the settled bid fields.
	Close(ctx context.Context, auctionID uuid.UUID, bidderID *uuid.UUID, finalBid decimal.NullDecimal) error
	ListByStatus(ctx context.Context, status Status) ([]*Auction, error)
	// ListEndedUnsettled returns approved auctions whose end_time is in [from, to].
	ListEndedUnsettled(ctx context.Context, from, to time.Time) ([]*Auction, error)
}

type BidRepository interface {
	Save(ctx context.Context, bid *Bid) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
	// Latest returns up to limit most recent bids, newest first.
	Latest(ctx context.Context, auctionID uuid.UUID, limit int) ([]*Bid, error)
}

type ResultRepository interface {
	// Create returns ErrResultExists when a result for the auction is already stored.
	Create(ctx context.Context, result *AuctionResult) error
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*AuctionResult, error)
}

// LiveStateMirror caches in-progress auction state for fast reads and broadcasts.
// Settlement never reads from it.
type LiveStateMirror interface {
	Get(ctx context.Context, auctionID uuid.UUID) (*LiveState, error)
	Put(ctx context.Context, state *LiveState) error
	Update(ctx context.Context, auctionID uuid.UUID, patch LiveStatePatch) error
	PushBid(ctx context.Context, bid *Bid) error
	Delete(ctx context.Context, auctionID uuid.UUID) error
}
