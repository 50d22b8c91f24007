package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidDTO is DTO input for PlaceBid useCase, contains the necesary data to make a bid
type PlaceBidDTO struct {
	AuctionID uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
}

// PlaceBidUseCase validates a single bid, reserves the bidder's funds and records it.
// No lock spans the whole attempt: two bids on the same auction may interleave, and
// settlement, not this use case, decides the winner from the bid log.
type PlaceBidUseCase struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	escrow      Escrow
	mirror      domain.LiveStateMirror
	broadcaster LiveBroadcaster
	txManager   db.TxManager
	clock       clock.Clock
}

// NewPlaceBidUseCase creates a new instace of PlaceBidUseCase struct, it receives dependency through injection
func NewPlaceBidUseCase(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	escrow Escrow,
	mirror domain.LiveStateMirror,
	broadcaster LiveBroadcaster,
	txManager db.TxManager,
	clk clock.Clock,
) *PlaceBidUseCase {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &PlaceBidUseCase{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		escrow:      escrow,
		mirror:      mirror,
		broadcaster: broadcaster,
		txManager:   txManager,
		clock:       clk,
	}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	fields := []zap.Field{
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("userID", cmd.UserID.String()),
		zap.String("amount", cmd.Amount.StringFixed(2)),
	}
	log.Info("Executing PlaceBidUseCase", fields...)

	// 1. input validation, not business rules
	if !cmd.Amount.IsPositive() || !cmd.Amount.Equal(cmd.Amount.Round(2)) {
		log.Warn("PlaceBidUseCase: Invalid bid amount", fields...)
		return nil, domain.ErrInvalidAmount
	}

	// 2. auction checks, in order: open, bidding window, seller, minimum increment
	auction, err := uc.auctionRepo.GetByID(ctx, cmd.AuctionID)
	if err != nil {
		if !errors.Is(err, domain.ErrAuctionNotFound) {
			log.Error("PlaceBidUseCase: Failed to get auction", append(fields, zap.Error(err))...)
		}
		return nil, fmt.Errorf("place bid use case: failed to get auction %s: %w", cmd.AuctionID, err)
	}
	now := uc.clock.Now()
	if err := auction.ValidateBid(cmd.UserID, cmd.Amount, now); err != nil {
		return nil, fmt.Errorf("place bid use case: bid rejected for auction %s: %w", cmd.AuctionID, err)
	}

	// 3. funds: balance minus holds on other auctions must cover the bid
	available, err := uc.escrow.AvailableFor(ctx, cmd.UserID, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("place bid use case: %w", walletError(err))
	}
	if available.LessThan(cmd.Amount) {
		log.Warn("Bid rejected: insufficient funds", append(fields, zap.String("available", available.StringFixed(2)))...)
		return nil, fmt.Errorf("place bid use case: %w", domain.ErrInsufficientFunds)
	}

	// 4. reserve funds; re-checked under the wallet lock
	if _, err := uc.escrow.EnsureHold(ctx, cmd.UserID, cmd.AuctionID, cmd.Amount); err != nil {
		return nil, fmt.Errorf("place bid use case: failed to hold funds: %w", walletError(err))
	}

	// 5. persist the bid and the denormalized auction fields together
	bid := domain.NewBid(cmd.AuctionID, cmd.UserID, cmd.Amount, now)
	var displaced *uuid.UUID
	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.bidRepo.Save(ctx, bid); err != nil {
			return fmt.Errorf("failed to save new bid: %w", err)
		}
		prev, err := uc.auctionRepo.RecordBid(ctx, cmd.AuctionID, cmd.UserID, bid.Amount)
		if err != nil {
			return fmt.Errorf("failed to update auction bid fields: %w", err)
		}
		displaced = prev
		return nil
	})
	if err != nil {
		// the hold stays; settlement releases every hold that does not belong to the winner
		log.Error("PlaceBidUseCase: Failed to persist bid", append(fields, zap.Error(err))...)
		return nil, fmt.Errorf("place bid use case: %w", err)
	}

	// 6. only the leader this bid actually displaced gets their funds back; the auction row read
	// above may be stale
	if displaced != nil {
		if err := uc.escrow.ReleaseHold(ctx, *displaced, cmd.AuctionID); err != nil {
			log.Error("PlaceBidUseCase: Failed to release outbid hold",
				append(fields, zap.String("outbidUserID", displaced.String()), zap.Error(err))...)
		}
	}

	// 7. mirror and broadcast are best effort
	if err := uc.mirror.PushBid(ctx, bid); err != nil {
		log.Warn("PlaceBidUseCase: Failed to update live state", append(fields, zap.Error(err))...)
	}
	auction.ApplyBid(bid)
	state, err := uc.mirror.Get(ctx, cmd.AuctionID)
	if err != nil {
		state = domain.SnapshotOf(auction, []*domain.Bid{bid})
	}
	uc.broadcaster.AuctionUpdated(state)

	log.Info("Bid placed successfully", append(fields, zap.String("bidID", bid.ID.String()))...)
	return bid, nil
}

// walletError maps wallet failures onto bid rejection kinds.
func walletError(err error) error {
	switch {
	case errors.Is(err, walletdomain.ErrWalletNotFound):
		return domain.ErrWalletMissing
	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		return domain.ErrInsufficientFunds
	}
	return err
}
