package http

import (
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlaceBidRequest struct {
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func toBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{ID: b.ID, AuctionID: b.AuctionID, UserID: b.UserID, Amount: b.Amount, CreatedAt: b.CreatedAt}
}

// AuctionRequest is the body of create and edit.
type AuctionRequest struct {
	SellerID      uuid.UUID           `json:"seller_id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	ReservePrice  decimal.NullDecimal `json:"reserve_price"`
	MinIncrement  decimal.Decimal     `json:"min_increment"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
}

func (r AuctionRequest) details() domain.AuctionDetails {
	return domain.AuctionDetails{
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		StartingPrice: r.StartingPrice,
		ReservePrice:  r.ReservePrice,
		MinIncrement:  r.MinIncrement,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}

type AuctionResponse struct {
	ID              uuid.UUID           `json:"id"`
	SellerID        uuid.UUID           `json:"seller_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Category        string              `json:"category"`
	StartingPrice   decimal.Decimal     `json:"starting_price"`
	ReservePrice    decimal.NullDecimal `json:"reserve_price"`
	MinIncrement    decimal.Decimal     `json:"min_increment"`
	MinimumNextBid  decimal.Decimal     `json:"minimum_next_bid"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	CurrentBid      decimal.NullDecimal `json:"current_bid"`
	CurrentBidderID *uuid.UUID          `json:"current_bidder_id,omitempty"`
	BidCount        int                 `json:"bid_count"`
	Status          domain.Status       `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:              a.ID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		Description:     a.Description,
		Category:        a.Category,
		StartingPrice:   a.StartingPrice,
		ReservePrice:    a.ReservePrice,
		MinIncrement:    a.MinIncrement,
		MinimumNextBid:  a.MinimumNextBid(),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		CurrentBid:      a.CurrentBid,
		CurrentBidderID: a.CurrentBidderID,
		BidCount:        a.BidCount,
		Status:          a.Status,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
