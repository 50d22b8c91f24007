package domain

import (
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusClosed   Status = "closed"
	StatusRejected Status = "rejected"
)

// validTransitions lists every allowed move. approved -> pending happens when a seller edits a live listing.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusClosed, StatusRejected, StatusPending},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// Auction is the listing aggregate. CurrentBid, CurrentBidderID and BidCount are a denormalized
// hint for readers; the winner is always recomputed from the bid log at settlement.
type Auction struct {
	ID              uuid.UUID
	SellerID        uuid.UUID
	Title           string
	Description     string
	Category        string
	StartingPrice   decimal.Decimal
	ReservePrice    decimal.NullDecimal
	MinIncrement    decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	CurrentBid      decimal.NullDecimal
	CurrentBidderID *uuid.UUID
	BidCount        int
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AuctionDetails are the seller-editable fields.
type AuctionDetails struct {
	Title         string
	Description   string
	Category      string
	StartingPrice decimal.Decimal
	ReservePrice  decimal.NullDecimal
	MinIncrement  decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
}

// Validate checks the listing is self-consistent.
func (d AuctionDetails) Validate() error {
	switch {
	case d.Title == "":
		return ErrInvalidAuction
	case d.StartingPrice.IsNegative(), d.MinIncrement.IsNegative():
		return ErrInvalidAuction
	case d.ReservePrice.Valid && d.ReservePrice.Decimal.IsNegative():
		return ErrInvalidAuction
	case !d.EndTime.After(d.StartTime):
		return ErrInvalidAuction
	}
	return nil
}

func NewAuction(sellerID uuid.UUID, d AuctionDetails, now time.Time) (*Auction, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	a := &Auction{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.apply(d)
	return a, nil
}

func (a *Auction) apply(d AuctionDetails) {
	a.Title = d.Title
	a.Description = d.Description
	a.Category = d.Category
	a.StartingPrice = d.StartingPrice.Round(2)
	a.ReservePrice = d.ReservePrice
	if a.ReservePrice.Valid {
		a.ReservePrice.Decimal = a.ReservePrice.Decimal.Round(2)
	}
	a.MinIncrement = d.MinIncrement.Round(2)
	a.StartTime = d.StartTime
	a.EndTime = d.EndTime
}

// Edit replaces the listing details. An approved auction goes back to pending; the caller
// is responsible for disarming its deadline.
func (a *Auction) Edit(d AuctionDetails, now time.Time) error {
	if a.Status != StatusPending && a.Status != StatusApproved {
		log.Warn("Edit rejected: auction is not editable",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return ErrAuctionNotEditable
	}
	if err := d.Validate(); err != nil {
		return err
	}
	a.apply(d)
	if a.Status == StatusApproved {
		a.Status = StatusPending
	}
	a.UpdatedAt = now
	return nil
}

// TransitionTo moves the auction to next if the transition table allows it.
func (a *Auction) TransitionTo(next Status, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		log.Warn("Invalid auction status transition",
			zap.String("auctionID", a.ID.String()),
			zap.String("from", string(a.Status)),
			zap.String("to", string(next)),
		)
		return ErrInvalidTransition
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

// MinimumNextBid is the lowest amount the next bid may have.
func (a *Auction) MinimumNextBid() decimal.Decimal {
	base := a.StartingPrice
	if a.CurrentBid.Valid {
		base = a.CurrentBid.Decimal
	}
	return base.Add(a.MinIncrement)
}

// ValidateBid runs the auction-side bid checks in order: open, inside the bidding window,
// not the seller, at least the minimum next bid. Funds are checked by the caller.
func (a *Auction) ValidateBid(bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	fields := []zap.Field{
		zap.String("auctionID", a.ID.String()),
		zap.String("userID", bidderID.String()),
		zap.String("amount", amount.StringFixed(2)),
	}

	if a.Status != StatusApproved {
		log.Warn("Bid rejected: auction not open", append(fields, zap.String("status", string(a.Status)))...)
		return ErrAuctionNotOpen
	}
	if now.Before(a.StartTime) {
		log.Warn("Bid rejected: auction not started", append(fields, zap.Time("startTime", a.StartTime))...)
		return ErrAuctionNotStarted
	}
	if now.After(a.EndTime) {
		log.Warn("Bid rejected: auction ended", append(fields, zap.Time("endTime", a.EndTime))...)
		return ErrAuctionEnded
	}
	if bidderID == a.SellerID {
		log.Warn("Bid rejected: seller bidding on own auction", fields...)
		return ErrSelfBidding
	}
	if minimum := a.MinimumNextBid(); amount.LessThan(minimum) {
		log.Warn("Bid rejected: amount too low", append(fields, zap.String("minimum", minimum.StringFixed(2)))...)
		return ErrBidTooLow
	}
	return nil
}

// ApplyBid mirrors what the repository does to the denormalized bid fields. It returns the
// leader this bid displaced, nil when the bid did not take the lead or the leader raised their own bid.
func (a *Auction) ApplyBid(bid *Bid) *uuid.UUID {
	a.BidCount++
	if a.CurrentBid.Valid && !bid.Amount.GreaterThan(a.CurrentBid.Decimal) {
		return nil
	}
	prev := a.CurrentBidderID
	a.CurrentBid = decimal.NewNullDecimal(bid.Amount)
	bidder := bid.UserID
	a.CurrentBidderID = &bidder
	if prev == nil || *prev == bid.UserID {
		return nil
	}
	displaced := *prev
	return &displaced
}
