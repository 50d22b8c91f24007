package application

import (
	"context"
	"errors"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetLiveStateUseCase serves live auction state from the mirror, seeding it from storage on a miss.
type GetLiveStateUseCase struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	mirror      domain.LiveStateMirror
	window      int
}

// NewGetLiveStateUseCase creates a new instance of GetLiveStateUseCase.
func NewGetLiveStateUseCase(auctionRepo domain.AuctionRepository, bidRepo domain.BidRepository, mirror domain.LiveStateMirror, window int) *GetLiveStateUseCase {
	return &GetLiveStateUseCase{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		mirror:      mirror,
		window:      window,
	}
}

func (uc *GetLiveStateUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*domain.LiveState, error) {
	state, err := uc.mirror.Get(ctx, auctionID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrLiveStateMiss) {
		log.Warn("GetLiveState: mirror read failed, falling back to storage",
			zap.String("auctionID", auctionID.String()),
			zap.Error(err),
		)
	}

	auction, err := uc.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	recent, err := uc.bidRepo.Latest(ctx, auctionID, uc.window)
	if err != nil {
		return nil, err
	}
	state = domain.SnapshotOf(auction, recent)

	// only auctions still taking bids are worth caching
	if auction.Status == domain.StatusApproved {
		if err := uc.mirror.Put(ctx, state); err != nil {
			log.Warn("GetLiveState: failed to seed mirror", zap.String("auctionID", auctionID.String()), zap.Error(err))
		}
	}
	return state, nil
}
