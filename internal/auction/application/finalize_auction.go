package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/shared/notify"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// SettlementConfig parameterizes settlement per auction category.
type SettlementConfig struct {
	Fees            domain.FeeSchedule
	PlatformAccount uuid.UUID
}

// FinalizeAuctionUseCase settles an auction exactly once. The claim (result row plus status change)
// is one transaction guarded by the unique auction_id on results; fund movement runs afterwards,
// step by step, each step in its own wallet transaction. A failed step is logged and reported but
// does not stop the remaining steps.
type FinalizeAuctionUseCase struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	resultRepo  domain.ResultRepository
	escrow      Escrow
	mirror      domain.LiveStateMirror
	notifier    notify.Notifier
	txManager   db.TxManager
	clock       clock.Clock
	cfg         SettlementConfig

	pending sync.WaitGroup
}

func NewFinalizeAuctionUseCase(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	resultRepo domain.ResultRepository,
	escrow Escrow,
	mirror domain.LiveStateMirror,
	notifier notify.Notifier,
	txManager db.TxManager,
	clk clock.Clock,
	cfg SettlementConfig,
) *FinalizeAuctionUseCase {
	if notifier == nil {
		notifier = notify.Fanout()
	}
	return &FinalizeAuctionUseCase{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		resultRepo:  resultRepo,
		escrow:      escrow,
		mirror:      mirror,
		notifier:    notifier,
		txManager:   txManager,
		clock:       clk,
		cfg:         cfg,
	}
}

func (uc *FinalizeAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	fields := []zap.Field{zap.String("auctionID", auctionID.String())}
	log.Info("Executing FinalizeAuctionUseCase", fields...)

	// 1. already settled: only make sure the auction is closed
	existing, err := uc.resultRepo.GetByAuctionID(ctx, auctionID)
	if err == nil {
		uc.ensureClosed(ctx, existing)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrResultNotFound) {
		return nil, fmt.Errorf("finalize auction: failed to load result: %w", err)
	}

	auction, err := uc.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("finalize auction: %w", err)
	}
	if auction.Status == domain.StatusClosed {
		// closed by a concurrent finalizer after the first lookup
		if existing, err := uc.resultRepo.GetByAuctionID(ctx, auctionID); err == nil {
			return existing, nil
		}
	}
	if auction.Status != domain.StatusApproved {
		log.Warn("FinalizeAuction: auction not settleable", append(fields, zap.String("status", string(auction.Status)))...)
		return nil, domain.ErrAuctionNotSettleable
	}
	rate, err := uc.cfg.Fees.RateFor(auction.Category)
	if err != nil {
		return nil, fmt.Errorf("finalize auction: category %q: %w", auction.Category, err)
	}

	// 2. decide from the authoritative bid log
	bids, err := uc.bidRepo.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("finalize auction: failed to load bids: %w", err)
	}
	settlement := domain.Settle(auction.ReservePrice, bids)
	result := settlement.Result(auctionID, uc.clock.Now())

	// 3. claim
	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.resultRepo.Create(ctx, result); err != nil {
			return err
		}
		if err := uc.auctionRepo.Close(ctx, auctionID, result.WinnerID, result.FinalBid); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return domain.ErrAuctionNotSettleable
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrResultExists):
		log.Info("FinalizeAuction: already settled by another finalizer", fields...)
		return uc.resultRepo.GetByAuctionID(ctx, auctionID)
	case err != nil:
		log.Error("FinalizeAuction: failed to claim auction", append(fields, zap.Error(err))...)
		return nil, fmt.Errorf("finalize auction: claim: %w", err)
	}
	log.Info("Auction closed",
		append(fields, zap.String("outcome", string(result.Status)), zap.Int("bids", len(bids)))...)

	// 4. move funds
	proceeds, moveErr := uc.moveFunds(ctx, auction, settlement, rate)

	// 5. side effects
	if err := uc.mirror.Delete(ctx, auctionID); err != nil {
		log.Warn("FinalizeAuction: failed to drop live state", append(fields, zap.Error(err))...)
	}
	uc.notify(auction, result, proceeds, bids)

	if moveErr != nil {
		return result, fmt.Errorf("finalize auction: partial settlement: %w", moveErr)
	}
	return result, nil
}

func (uc *FinalizeAuctionUseCase) moveFunds(ctx context.Context, auction *domain.Auction, s domain.Settlement, rate decimal.Decimal) (domain.Proceeds, error) {
	winner := s.Winner()
	if winner == nil {
		return domain.Proceeds{}, uc.escrow.ReleaseAllForAuction(ctx, auction.ID, nil)
	}

	final := s.WinningBid.Amount
	proceeds := domain.SplitProceeds(final, rate)
	fields := []zap.Field{
		zap.String("auctionID", auction.ID.String()),
		zap.String("winnerID", winner.String()),
		zap.String("finalBid", final.StringFixed(2)),
	}

	errs := uc.escrow.ReleaseAllForAuction(ctx, auction.ID, winner)

	if _, err := uc.escrow.ConsumeHold(ctx, *winner, auction.ID, final); err != nil {
		// nothing was debited, so nothing may be credited
		log.Error("FinalizeAuction: failed to charge winner, credits skipped", append(fields, zap.Error(err))...)
		return proceeds, multierr.Append(errs, fmt.Errorf("charge winner: %w", err))
	}

	auctionID := auction.ID
	if proceeds.SellerCredit.IsPositive() {
		if _, err := uc.escrow.CreditBalance(ctx, auction.SellerID, proceeds.SellerCredit, walletdomain.TransactionAuctionIncome, &auctionID); err != nil {
			log.Error("FinalizeAuction: failed to credit seller", append(fields, zap.Error(err))...)
			errs = multierr.Append(errs, fmt.Errorf("credit seller: %w", err))
		}
	}
	if proceeds.PlatformFee.IsPositive() {
		if _, err := uc.escrow.CreditBalance(ctx, uc.cfg.PlatformAccount, proceeds.PlatformFee, walletdomain.TransactionPlatformFee, &auctionID); err != nil {
			log.Error("FinalizeAuction: failed to credit platform fee", append(fields, zap.Error(err))...)
			errs = multierr.Append(errs, fmt.Errorf("credit platform: %w", err))
		}
	}

	log.Info("Settlement funds moved",
		append(fields,
			zap.String("sellerCredit", proceeds.SellerCredit.StringFixed(2)),
			zap.String("platformFee", proceeds.PlatformFee.StringFixed(2)),
		)...)
	return proceeds, errs
}

func (uc *FinalizeAuctionUseCase) ensureClosed(ctx context.Context, result *domain.AuctionResult) {
	auction, err := uc.auctionRepo.GetByID(ctx, result.AuctionID)
	if err != nil || auction.Status != domain.StatusApproved {
		return
	}
	if err := uc.auctionRepo.Close(ctx, result.AuctionID, result.WinnerID, result.FinalBid); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		log.Error("FinalizeAuction: failed to close settled auction",
			zap.String("auctionID", result.AuctionID.String()),
			zap.Error(err),
		)
	}
}

// notify runs the notifiers in the background; they never hold up settlement.
func (uc *FinalizeAuctionUseCase) notify(auction *domain.Auction, result *domain.AuctionResult, proceeds domain.Proceeds, bids []*domain.Bid) {
	seen := make(map[uuid.UUID]bool)
	var affected []uuid.UUID
	for _, b := range bids {
		if !seen[b.UserID] {
			seen[b.UserID] = true
			affected = append(affected, b.UserID)
		}
	}
	if result.Status == domain.ResultWon {
		affected = append(affected, uc.cfg.PlatformAccount)
	}

	ev := notify.AuctionSettled{
		AuctionID:    auction.ID,
		SellerID:     auction.SellerID,
		WinnerID:     result.WinnerID,
		FinalBid:     result.FinalBid,
		Status:       string(result.Status),
		SellerCredit: proceeds.SellerCredit,
		PlatformFee:  proceeds.PlatformFee,
		Affected:     affected,
		SettledAt:    result.CreatedAt,
	}

	uc.pending.Add(1)
	go func() {
		defer uc.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		// failures are already logged by the notifier
		_ = uc.notifier.AuctionSettled(ctx, ev)
	}()
}

// Wait blocks until in-flight notifications finish.
func (uc *FinalizeAuctionUseCase) Wait() {
	uc.pending.Wait()
}
