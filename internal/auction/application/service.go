package application

import (
	"context"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	// PlaceBid handles logic when a user makes a bid on an auction
	// receives a command with necesary data and returns the created bid or an error
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error)
	GetLiveState(ctx context.Context, auctionID uuid.UUID) (*domain.LiveState, error)
	// Finalize settles the auction; also the admin force-process entry point.
	Finalize(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error)
	GetResult(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error)

	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error)
	EditAuction(ctx context.Context, cmd EditAuctionDTO) (*domain.Auction, error)
	ApproveAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	RejectAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
}

// concret implementation of AuctionService (struct)
type auctionService struct {
	placeBidUC     *PlaceBidUseCase
	getLiveStateUC *GetLiveStateUseCase
	finalizeUC     *FinalizeAuctionUseCase
	getResultUC    *GetResultUseCase
	manageUC       *ManageAuctionUseCase
}

func NewAuctionService(
	placeBidUC *PlaceBidUseCase,
	getLiveStateUC *GetLiveStateUseCase,
	finalizeUC *FinalizeAuctionUseCase,
	getResultUC *GetResultUseCase,
	manageUC *ManageAuctionUseCase,
) AuctionService {
	return &auctionService{
		placeBidUC:     placeBidUC,
		getLiveStateUC: getLiveStateUC,
		finalizeUC:     finalizeUC,
		getResultUC:    getResultUC,
		manageUC:       manageUC,
	}
}

// PlaceBid implements AuctionService.
func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	return as.placeBidUC.Execute(ctx, cmd)
}

func (as *auctionService) GetLiveState(ctx context.Context, auctionID uuid.UUID) (*domain.LiveState, error) {
	return as.getLiveStateUC.Execute(ctx, auctionID)
}

func (as *auctionService) Finalize(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	return as.finalizeUC.Execute(ctx, auctionID)
}

func (as *auctionService) GetResult(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	return as.getResultUC.Execute(ctx, auctionID)
}

func (as *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	return as.manageUC.Create(ctx, cmd)
}

func (as *auctionService) EditAuction(ctx context.Context, cmd EditAuctionDTO) (*domain.Auction, error) {
	return as.manageUC.Edit(ctx, cmd)
}

func (as *auctionService) ApproveAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	return as.manageUC.Approve(ctx, auctionID)
}

func (as *auctionService) RejectAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	return as.manageUC.Reject(ctx, auctionID)
}

func (as *auctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	return as.manageUC.Get(ctx, auctionID)
}
