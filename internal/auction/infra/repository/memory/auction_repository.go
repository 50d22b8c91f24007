package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository is a concurrency-safe in-memory implementation of domain.AuctionRepository
type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*domain.Auction
}

func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func clone(a *domain.Auction) *domain.Auction {
	cp := *a
	if a.CurrentBidderID != nil {
		id := *a.CurrentBidderID
		cp.CurrentBidderID = &id
	}
	return &cp
}

func (r *AuctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.ID] = clone(auction)
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return clone(a), nil
}

func (r *AuctionRepository) Update(ctx context.Context, auction *domain.Auction, expected domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auction.ID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if stored.Status != expected {
		return domain.ErrInvalidTransition
	}
	next := clone(auction)
	// bid fields are owned by RecordBid and Close
	next.CurrentBid = stored.CurrentBid
	next.CurrentBidderID = stored.CurrentBidderID
	next.BidCount = stored.BidCount
	r.auctions[auction.ID] = next
	return nil
}

func (r *AuctionRepository) RecordBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a.ApplyBid(&domain.Bid{AuctionID: auctionID, UserID: bidderID, Amount: amount}), nil
}

func (r *AuctionRepository) Close(ctx context.Context, auctionID uuid.UUID, bidderID *uuid.UUID, finalBid decimal.NullDecimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if a.Status != domain.StatusApproved {
		return domain.ErrInvalidTransition
	}
	a.Status = domain.StatusClosed
	a.CurrentBidderID = bidderID
	if finalBid.Valid {
		a.CurrentBid = finalBid
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AuctionRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Auction, error) {
	return r.list(func(a *domain.Auction) bool { return a.Status == status }), nil
}

func (r *AuctionRepository) ListEndedUnsettled(ctx context.Context, from, to time.Time) ([]*domain.Auction, error) {
	return r.list(func(a *domain.Auction) bool {
		return a.Status == domain.StatusApproved && !a.EndTime.Before(from) && !a.EndTime.After(to)
	}), nil
}

func (r *AuctionRepository) list(keep func(*domain.Auction) bool) []*domain.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Auction
	for _, a := range r.auctions {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out
}

// BidRepository keeps the append-only bid log per auction.
type BidRepository struct {
	mu   sync.RWMutex
	bids map[uuid.UUID][]*domain.Bid
}

func NewBidRepository() *BidRepository {
	return &BidRepository{bids: make(map[uuid.UUID][]*domain.Bid)}
}

func (r *BidRepository) Save(ctx context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *bid
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], &cp)
	return nil
}

func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Bid, 0, len(r.bids[auctionID]))
	for _, b := range r.bids[auctionID] {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *BidRepository) Latest(ctx context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	all, _ := r.ListByAuction(ctx, auctionID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ResultRepository enforces one result per auction, like the primary key on auction_results.
type ResultRepository struct {
	mu      sync.RWMutex
	results map[uuid.UUID]*domain.AuctionResult
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{results: make(map[uuid.UUID]*domain.AuctionResult)}
}

func (r *ResultRepository) Create(ctx context.Context, result *domain.AuctionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.results[result.AuctionID]; ok {
		return domain.ErrResultExists
	}
	cp := *result
	r.results[result.AuctionID] = &cp
	return nil
}

func (r *ResultRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[auctionID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	cp := *res
	return &cp, nil
}
