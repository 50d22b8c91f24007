package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrLiveStateMiss = errors.New("live state not cached")

// LiveBid is the compact bid shape kept in the recent-bid window.
type LiveBid struct {
	BidID     uuid.UUID       `json:"bid_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// LiveState is a non-authoritative snapshot of an auction in progress. RecentBids is newest first.
type LiveState struct {
	AuctionID       uuid.UUID           `json:"auction_id"`
	CurrentBid      decimal.NullDecimal `json:"current_bid"`
	CurrentBidderID *uuid.UUID          `json:"current_bidder_id,omitempty"`
	BidCount        int                 `json:"bid_count"`
	Status          Status              `json:"status"`
	Deadline        time.Time           `json:"deadline"`
	RecentBids      []LiveBid           `json:"recent_bids"`
}

// LiveStatePatch carries the fields Update should overwrite; nil fields are left alone.
type LiveStatePatch struct {
	CurrentBid      *decimal.Decimal
	CurrentBidderID *uuid.UUID
	BidCount        *int
	Status          *Status
	Deadline        *time.Time
}

func (p LiveStatePatch) Apply(s *LiveState) {
	if p.CurrentBid != nil {
		s.CurrentBid = decimal.NewNullDecimal(*p.CurrentBid)
	}
	if p.CurrentBidderID != nil {
		id := *p.CurrentBidderID
		s.CurrentBidderID = &id
	}
	if p.BidCount != nil {
		s.BidCount = *p.BidCount
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Deadline != nil {
		s.Deadline = *p.Deadline
	}
}

// SnapshotOf builds the mirror entry for an auction from durable state.
func SnapshotOf(a *Auction, recent []*Bid) *LiveState {
	s := &LiveState{
		AuctionID:  a.ID,
		CurrentBid: a.CurrentBid,
		BidCount:   a.BidCount,
		Status:     a.Status,
		Deadline:   a.EndTime,
		RecentBids: make([]LiveBid, 0, len(recent)),
	}
	if a.CurrentBidderID != nil {
		id := *a.CurrentBidderID
		s.CurrentBidderID = &id
	}
	for _, b := range recent {
		s.RecentBids = append(s.RecentBids, LiveBidOf(b))
	}
	return s
}

func LiveBidOf(b *Bid) LiveBid {
	return LiveBid{BidID: b.ID, UserID: b.UserID, Amount: b.Amount, CreatedAt: b.CreatedAt}
}

// Observe folds a newly accepted bid into the snapshot, keeping at most window recent bids.
func (s *LiveState) Observe(b LiveBid, window int) {
	s.BidCount++
	if !s.CurrentBid.Valid || b.Amount.GreaterThan(s.CurrentBid.Decimal) {
		s.CurrentBid = decimal.NewNullDecimal(b.Amount)
		id := b.UserID
		s.CurrentBidderID = &id
	}
	s.RecentBids = append([]LiveBid{b}, s.RecentBids...)
	if window > 0 && len(s.RecentBids) > window {
		s.RecentBids = s.RecentBids[:window]
	}
}
