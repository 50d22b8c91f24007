package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ResultStatus string

const (
	ResultWon           ResultStatus = "won"
	ResultNoBids        ResultStatus = "no_bids"
	ResultReserveNotMet ResultStatus = "reserve_not_met"
)

// AuctionResult is written once per auction. Its existence means the auction is settled.
type AuctionResult struct {
	AuctionID  uuid.UUID           `json:"auction_id"`
	WinnerID   *uuid.UUID          `json:"winner_id"`
	FinalBid   decimal.NullDecimal `json:"final_bid"`
	ReserveMet bool                `json:"reserve_met"`
	Status     ResultStatus        `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Settlement is the outcome computed from the bid log.
type Settlement struct {
	Status     ResultStatus
	WinningBid *Bid
	ReserveMet bool
}

// WinningBid returns the highest bid, earliest first on ties, or nil for an empty slice.
func WinningBid(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if best == nil || b.Outranks(best) {
			best = b
		}
	}
	return best
}

// Settle decides the outcome of an auction from its full bid log. It does not look at the
// auction's denormalized current bid.
func Settle(reserve decimal.NullDecimal, bids []*Bid) Settlement {
	top := WinningBid(bids)
	if top == nil {
		return Settlement{Status: ResultNoBids}
	}
	if reserve.Valid && top.Amount.LessThan(reserve.Decimal) {
		return Settlement{Status: ResultReserveNotMet, WinningBid: top}
	}
	return Settlement{Status: ResultWon, WinningBid: top, ReserveMet: true}
}

// Winner returns the winning bidder, only for a won outcome.
func (s Settlement) Winner() *uuid.UUID {
	if s.Status != ResultWon {
		return nil
	}
	id := s.WinningBid.UserID
	return &id
}

func (s Settlement) Result(auctionID uuid.UUID, now time.Time) *AuctionResult {
	r := &AuctionResult{
		AuctionID:  auctionID,
		WinnerID:   s.Winner(),
		ReserveMet: s.ReserveMet,
		Status:     s.Status,
		CreatedAt:  now,
	}
	if s.WinningBid != nil {
		r.FinalBid = decimal.NewNullDecimal(s.WinningBid.Amount)
	}
	return r
}
