package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// EscrowService owns every mutation of wallet balances and fund holds. Each operation runs in one
// transaction scoped to a single wallet, with the wallet row locked first, so the availability
// check and the write it guards cannot interleave with another writer on the same wallet.
type EscrowService struct {
	wallets      domain.WalletRepository
	holds        domain.HoldRepository
	transactions domain.TransactionRepository
	txManager    db.TxManager
	clock        clock.Clock
}

func NewEscrowService(
	wallets domain.WalletRepository,
	holds domain.HoldRepository,
	transactions domain.TransactionRepository,
	txManager db.TxManager,
	clk clock.Clock,
) *EscrowService {
	return &EscrowService{
		wallets:      wallets,
		holds:        holds,
		transactions: transactions,
		txManager:    txManager,
		clock:        clk,
	}
}

// AvailableFor returns what userID can commit to auctionID: balance minus holds on every other auction.
func (s *EscrowService) AvailableFor(ctx context.Context, userID, auctionID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.availableExcluding(ctx, wallet, auctionID)
}

func (s *EscrowService) availableExcluding(ctx context.Context, wallet *domain.Wallet, auctionID uuid.UUID) (decimal.Decimal, error) {
	held, err := s.holds.TotalActiveByUser(ctx, wallet.UserID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("escrow: failed to sum holds: %w", err)
	}
	own, err := s.holds.Get(ctx, wallet.UserID, auctionID)
	switch {
	case err == nil:
		held = held.Sub(own.Amount)
	case !errors.Is(err, domain.ErrHoldNotFound):
		return decimal.Zero, fmt.Errorf("escrow: failed to load hold: %w", err)
	}
	return wallet.Available(held), nil
}

// EnsureHold creates the (user, auction) hold or resizes it to amount.
func (s *EscrowService) EnsureHold(ctx context.Context, userID, auctionID uuid.UUID, amount decimal.Decimal) (*domain.FundHold, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var hold *domain.FundHold
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		available, err := s.availableExcluding(ctx, wallet, auctionID)
		if err != nil {
			return err
		}
		if available.LessThan(amount) {
			log.Warn("Hold rejected: insufficient funds",
				zap.String("userID", userID.String()),
				zap.String("auctionID", auctionID.String()),
				zap.String("amount", amount.StringFixed(2)),
				zap.String("available", available.StringFixed(2)),
			)
			return domain.ErrInsufficientFunds
		}

		now := s.clock.Now()
		hold = &domain.FundHold{
			UserID:    userID,
			AuctionID: auctionID,
			Amount:    amount,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.holds.Upsert(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Fund hold set",
		zap.String("userID", userID.String()),
		zap.String("auctionID", auctionID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)
	return hold, nil
}

// ReleaseHold drops the hold without touching the balance. Releasing a missing hold is a no-op.
func (s *EscrowService) ReleaseHold(ctx context.Context, userID, auctionID uuid.UUID) error {
	released, err := s.holds.Delete(ctx, userID, auctionID)
	if errors.Is(err, domain.ErrHoldNotFound) {
		return nil
	}
	if err != nil {
		log.Error("Failed to release hold",
			zap.String("userID", userID.String()),
			zap.String("auctionID", auctionID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("escrow: release hold: %w", err)
	}
	log.Info("Fund hold released",
		zap.String("userID", userID.String()),
		zap.String("auctionID", auctionID.String()),
		zap.String("amount", released.Amount.StringFixed(2)),
	)
	return nil
}

// ReleaseAllForAuction releases every hold on auctionID except the one owned by keep (if non-nil).
// Each release is independent; failures are collected and the rest still run.
func (s *EscrowService) ReleaseAllForAuction(ctx context.Context, auctionID uuid.UUID, keep *uuid.UUID) error {
	holds, err := s.holds.ListByAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("escrow: list holds for auction %s: %w", auctionID, err)
	}

	var errs error
	for _, h := range holds {
		if keep != nil && h.UserID == *keep {
			continue
		}
		errs = multierr.Append(errs, s.ReleaseHold(ctx, h.UserID, auctionID))
	}
	return errs
}

// ConsumeHold turns the (user, auction) hold into a real debit of amount and journals it as an
// auction payment. A missing hold row is tolerated: the debit is still guarded by the availability
// check done under the same wallet lock.
func (s *EscrowService) ConsumeHold(ctx context.Context, userID, auctionID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var journal *domain.Transaction
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		available, err := s.availableExcluding(ctx, wallet, auctionID)
		if err != nil {
			return err
		}
		if available.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}

		if _, err := s.holds.Delete(ctx, userID, auctionID); err != nil && !errors.Is(err, domain.ErrHoldNotFound) {
			return fmt.Errorf("escrow: delete consumed hold: %w", err)
		}
		if _, err := s.wallets.AdjustBalance(ctx, wallet.ID, amount.Neg()); err != nil {
			return fmt.Errorf("escrow: debit wallet: %w", err)
		}
		journal = domain.NewTransaction(wallet.ID, domain.TransactionAuctionPayment, amount.Neg(), &auctionID, s.clock.Now())
		return s.transactions.Create(ctx, journal)
	})
	if err != nil {
		log.Error("Failed to consume hold",
			zap.String("userID", userID.String()),
			zap.String("auctionID", auctionID.String()),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Fund hold consumed",
		zap.String("userID", userID.String()),
		zap.String("auctionID", auctionID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)
	return journal, nil
}

// CreditBalance adds amount to the user's wallet, opening it on first use, and journals it with txType in the same transaction.
func (s *EscrowService) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType domain.TransactionType, auctionID *uuid.UUID) (*domain.Transaction, error) {
	if !txType.IsCredit() {
		return nil, domain.ErrInvalidTransaction
	}
	return s.apply(ctx, userID, amount, txType, auctionID, nil, true)
}

// Deposit credits the wallet, opening it on first use.
func (s *EscrowService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*domain.Transaction, error) {
	return s.apply(ctx, userID, amount, domain.TransactionDeposit, nil, refPtr(reference), true)
}

// Withdraw debits the wallet; only funds not reserved by holds can leave.
func (s *EscrowService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*domain.Transaction, error) {
	return s.apply(ctx, userID, amount, domain.TransactionWithdrawal, nil, refPtr(reference), false)
}

func (s *EscrowService) apply(
	ctx context.Context,
	userID uuid.UUID,
	amount decimal.Decimal,
	txType domain.TransactionType,
	auctionID *uuid.UUID,
	reference *string,
	open bool,
) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var journal *domain.Transaction
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, userID)
		if errors.Is(err, domain.ErrWalletNotFound) && open {
			wallet, err = s.openWallet(ctx, userID)
		}
		if err != nil {
			return err
		}

		delta := amount
		if !txType.IsCredit() {
			held, err := s.holds.TotalActiveByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("escrow: failed to sum holds: %w", err)
			}
			if wallet.Available(held).LessThan(amount) {
				return domain.ErrInsufficientFunds
			}
			delta = amount.Neg()
		}

		if _, err := s.wallets.AdjustBalance(ctx, wallet.ID, delta); err != nil {
			return fmt.Errorf("escrow: adjust balance: %w", err)
		}
		journal = domain.NewTransaction(wallet.ID, txType, delta, auctionID, s.clock.Now())
		journal.ReferenceID = reference
		return s.transactions.Create(ctx, journal)
	})
	if err != nil {
		log.Warn("Wallet operation failed",
			zap.String("userID", userID.String()),
			zap.String("type", string(txType)),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Wallet balance changed",
		zap.String("userID", userID.String()),
		zap.String("type", string(txType)),
		zap.String("amount", journal.Amount.StringFixed(2)),
	)
	return journal, nil
}

// OpenWallet returns the user's wallet, creating an empty one if needed.
func (s *EscrowService) OpenWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		wallet, err = s.wallets.GetByUserIDForUpdate(ctx, userID)
		if errors.Is(err, domain.ErrWalletNotFound) {
			wallet, err = s.openWallet(ctx, userID)
		}
		return err
	})
	return wallet, err
}

func (s *EscrowService) openWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet := domain.NewWallet(userID, s.clock.Now())
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("escrow: open wallet: %w", err)
	}
	log.Info("Wallet opened", zap.String("userID", userID.String()), zap.String("walletID", wallet.ID.String()))
	return wallet, nil
}

// GetWallet returns balance, held and available amounts for the user.
func (s *EscrowService) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletSummary, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	held, err := s.holds.TotalActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("escrow: failed to sum holds: %w", err)
	}
	return &domain.WalletSummary{
		WalletID:  wallet.ID,
		UserID:    wallet.UserID,
		Balance:   wallet.Balance,
		Held:      held,
		Available: wallet.Available(held),
	}, nil
}

// Transactions lists the wallet journal, oldest first.
func (s *EscrowService) Transactions(ctx context.Context, userID uuid.UUID) ([]*domain.Transaction, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.transactions.ListByWallet(ctx, wallet.ID)
}

func refPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
