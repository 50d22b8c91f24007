package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAuctionDTO is the seller's listing request.
type CreateAuctionDTO struct {
	SellerID uuid.UUID
	Details  domain.AuctionDetails
}

type EditAuctionDTO struct {
	AuctionID uuid.UUID
	SellerID  uuid.UUID
	Details   domain.AuctionDetails
}

// ManageAuctionUseCase covers the listing lifecycle around bidding: create, edit, approve and reject.
// Every status change is a compare-and-set on the stored status, and the deadline timer follows it.
type ManageAuctionUseCase struct {
	auctionRepo domain.AuctionRepository
	escrow      Escrow
	mirror      domain.LiveStateMirror
	scheduler   DeadlineScheduler
	fees        domain.FeeSchedule
	txManager   db.TxManager
	clock       clock.Clock
}

func NewManageAuctionUseCase(
	auctionRepo domain.AuctionRepository,
	escrow Escrow,
	mirror domain.LiveStateMirror,
	scheduler DeadlineScheduler,
	fees domain.FeeSchedule,
	txManager db.TxManager,
	clk clock.Clock,
) *ManageAuctionUseCase {
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	return &ManageAuctionUseCase{
		auctionRepo: auctionRepo,
		escrow:      escrow,
		mirror:      mirror,
		scheduler:   scheduler,
		fees:        fees,
		txManager:   txManager,
		clock:       clk,
	}
}

func (uc *ManageAuctionUseCase) Create(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	if _, err := uc.fees.RateFor(cmd.Details.Category); err != nil {
		return nil, err
	}
	auction, err := domain.NewAuction(cmd.SellerID, cmd.Details, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.auctionRepo.Create(ctx, auction); err != nil {
		log.Error("CreateAuction: failed to persist auction", zap.String("sellerID", cmd.SellerID.String()), zap.Error(err))
		return nil, fmt.Errorf("create auction: %w", err)
	}
	log.Info("Auction created",
		zap.String("auctionID", auction.ID.String()),
		zap.String("sellerID", cmd.SellerID.String()),
		zap.String("category", auction.Category),
	)
	return auction, nil
}

// Edit rewrites the listing. Editing an approved auction sends it back to pending and disarms its deadline.
func (uc *ManageAuctionUseCase) Edit(ctx context.Context, cmd EditAuctionDTO) (*domain.Auction, error) {
	if _, err := uc.fees.RateFor(cmd.Details.Category); err != nil {
		return nil, err
	}
	var (
		auction     *domain.Auction
		wasApproved bool
	)
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		auction, err = uc.auctionRepo.GetByID(ctx, cmd.AuctionID)
		if err != nil {
			return err
		}
		if auction.SellerID != cmd.SellerID {
			return domain.ErrNotAuctionSeller
		}
		expected := auction.Status
		wasApproved = expected == domain.StatusApproved
		if err := auction.Edit(cmd.Details, uc.clock.Now()); err != nil {
			return err
		}
		return uc.auctionRepo.Update(ctx, auction, expected)
	})
	if err != nil {
		return nil, fmt.Errorf("edit auction: %w", err)
	}

	if wasApproved {
		uc.scheduler.Cancel(auction.ID)
		uc.dropLiveState(ctx, auction.ID)
		log.Info("Approved auction edited, back to pending", zap.String("auctionID", auction.ID.String()))
	}
	return auction, nil
}

// Approve opens the auction for bidding and arms its deadline.
func (uc *ManageAuctionUseCase) Approve(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	auction, err := uc.transition(ctx, auctionID, domain.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("approve auction: %w", err)
	}
	uc.scheduler.Schedule(auction.ID, auction.EndTime)
	if err := uc.mirror.Put(ctx, domain.SnapshotOf(auction, nil)); err != nil {
		log.Warn("ApproveAuction: failed to seed live state", zap.String("auctionID", auctionID.String()), zap.Error(err))
	}
	log.Info("Auction approved", zap.String("auctionID", auctionID.String()), zap.Time("endTime", auction.EndTime))
	return auction, nil
}

// Reject terminates a pending or approved auction and returns every bidder's held funds.
func (uc *ManageAuctionUseCase) Reject(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	auction, err := uc.transition(ctx, auctionID, domain.StatusRejected)
	if err != nil {
		return nil, fmt.Errorf("reject auction: %w", err)
	}
	uc.scheduler.Cancel(auctionID)
	uc.dropLiveState(ctx, auctionID)
	if err := uc.escrow.ReleaseAllForAuction(ctx, auctionID, nil); err != nil {
		log.Error("RejectAuction: failed to release holds", zap.String("auctionID", auctionID.String()), zap.Error(err))
		return auction, fmt.Errorf("reject auction: release holds: %w", err)
	}
	log.Info("Auction rejected", zap.String("auctionID", auctionID.String()))
	return auction, nil
}

func (uc *ManageAuctionUseCase) Get(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	return uc.auctionRepo.GetByID(ctx, auctionID)
}

func (uc *ManageAuctionUseCase) transition(ctx context.Context, auctionID uuid.UUID, next domain.Status) (*domain.Auction, error) {
	var auction *domain.Auction
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		auction, err = uc.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			return err
		}
		expected := auction.Status
		if err := auction.TransitionTo(next, uc.clock.Now()); err != nil {
			return err
		}
		return uc.auctionRepo.Update(ctx, auction, expected)
	})
	return auction, err
}

func (uc *ManageAuctionUseCase) dropLiveState(ctx context.Context, auctionID uuid.UUID) {
	if err := uc.mirror.Delete(ctx, auctionID); err != nil {
		log.Warn("Failed to drop live state", zap.String("auctionID", auctionID.String()), zap.Error(err))
	}
}
