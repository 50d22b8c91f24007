package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) endAuction(a *domain.Auction) {
	f.clock.Advance(a.EndTime.Sub(f.clock.Now()) + time.Second)
}

func (f *fixture) payments(t *testing.T, auctionID uuid.UUID) map[walletdomain.TransactionType][]*walletdomain.Transaction {
	t.Helper()
	txs, err := f.journal.ListByAuction(context.Background(), auctionID)
	require.NoError(t, err)
	out := map[walletdomain.TransactionType][]*walletdomain.Transaction{}
	for _, tx := range txs {
		out[tx.Type] = append(out[tx.Type], tx)
	}
	return out
}

func TestFinalize_WonWithReserveMet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())
	first, second := f.bidder(t, "300"), f.bidder(t, "300")
	before := f.totalMoney(t, first, second, a.SellerID, f.platform)

	f.bid(t, a.ID, first, "120")
	f.bid(t, a.ID, second, "160")
	f.endAuction(a)

	res, err := f.service.Finalize(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWon, res.Status)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, second, *res.WinnerID)
	assert.True(t, res.FinalBid.Decimal.Equal(money("160")))
	assert.True(t, res.ReserveMet)

	assert.True(t, f.balance(t, second).Equal(money("140")))
	assert.True(t, f.balance(t, first).Equal(money("300")))
	assert.True(t, f.balance(t, a.SellerID).Equal(money("152.00")))
	assert.True(t, f.balance(t, f.platform).Equal(money("8.00")))
	assert.True(t, f.totalMoney(t, first, second, a.SellerID, f.platform).Equal(before))

	assert.True(t, f.wallet(t, first).Held.IsZero())
	assert.True(t, f.wallet(t, second).Held.IsZero())

	journal := f.payments(t, a.ID)
	require.Len(t, journal[walletdomain.TransactionAuctionPayment], 1)
	require.Len(t, journal[walletdomain.TransactionAuctionIncome], 1)
	require.Len(t, journal[walletdomain.TransactionPlatformFee], 1)
	assert.True(t, journal[walletdomain.TransactionAuctionPayment][0].Amount.Equal(money("-160")))

	closed, err := f.auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, second, *closed.CurrentBidderID)

	_, err = f.mirror.Get(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrLiveStateMiss)

	f.finalize.Wait()
	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, "won", ev.Status)
	assert.True(t, ev.PlatformFee.Equal(money("8")))
	assert.Contains(t, ev.Affected, first)
	assert.Contains(t, ev.Affected, second)
}

func TestFinalize_PremiumCategoryRate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d := listing()
	d.Category = "premium"
	a := f.openAuction(t, d)
	buyer := f.bidder(t, "300")
	f.bid(t, a.ID, buyer, "160")
	f.endAuction(a)

	_, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, a.SellerID).Equal(money("144")))
	assert.True(t, f.balance(t, f.platform).Equal(money("16")))
}

func TestFinalize_ReserveNotMet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	bidder := f.bidder(t, "300")
	f.bid(t, a.ID, bidder, "120")
	f.endAuction(a)

	res, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultReserveNotMet, res.Status)
	assert.Nil(t, res.WinnerID)
	assert.False(t, res.ReserveMet)
	assert.True(t, res.FinalBid.Decimal.Equal(money("120")))

	w := f.wallet(t, bidder)
	assert.True(t, w.Balance.Equal(money("300")))
	assert.True(t, w.Held.IsZero())
	assert.True(t, f.balance(t, a.SellerID).IsZero())
	assert.Empty(t, f.payments(t, a.ID))

	closed, err := f.auctions.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Nil(t, closed.CurrentBidderID)
}

func TestFinalize_NoBids(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	f.endAuction(a)

	res, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultNoBids, res.Status)
	assert.Nil(t, res.WinnerID)
	assert.False(t, res.FinalBid.Valid)

	closed, err := f.auctions.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Nil(t, closed.CurrentBidderID)
	assert.False(t, closed.CurrentBid.Valid)

	got, err := f.service.GetResult(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultNoBids, got.Status)
}

func TestFinalize_SequentialCallsAreIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	buyer := f.bidder(t, "300")
	f.bid(t, a.ID, buyer, "160")
	f.endAuction(a)

	first, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	second, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.WinnerID, *second.WinnerID)
	assert.True(t, f.balance(t, buyer).Equal(money("140")))
	assert.Len(t, f.payments(t, a.ID)[walletdomain.TransactionAuctionPayment], 1)
}

func TestFinalize_ConcurrentCallsSettleOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	alice, bob := f.bidder(t, "300"), f.bidder(t, "300")
	f.bid(t, a.ID, alice, "120")
	f.bid(t, a.ID, bob, "160")
	f.endAuction(a)

	var wg sync.WaitGroup
	results := make([]*domain.AuctionResult, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Finalize(context.Background(), a.ID)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, bob, *results[i].WinnerID)
	}
	journal := f.payments(t, a.ID)
	assert.Len(t, journal[walletdomain.TransactionAuctionPayment], 1)
	assert.Len(t, journal[walletdomain.TransactionAuctionIncome], 1)
	assert.Len(t, journal[walletdomain.TransactionPlatformFee], 1)
	assert.True(t, f.balance(t, bob).Equal(money("140")))
	assert.True(t, f.balance(t, a.SellerID).Equal(money("152")))

	f.finalize.Wait()
	assert.Len(t, f.notifier.events, 1)
}

func TestFinalize_EarlyForceProcess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	buyer := f.bidder(t, "300")
	f.bid(t, a.ID, buyer, "155")

	res, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWon, res.Status)

	_, err = f.service.PlaceBid(context.Background(), PlaceBidDTO{AuctionID: a.ID, UserID: f.bidder(t, "500"), Amount: money("200")})
	require.ErrorIs(t, err, domain.ErrAuctionNotOpen)
}

func TestFinalize_RejectsUnsettleable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Finalize(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)

	pending, err := f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: uuid.New(), Details: listing()})
	require.NoError(t, err)
	_, err = f.service.Finalize(ctx, pending.ID)
	require.ErrorIs(t, err, domain.ErrAuctionNotSettleable)

	_, err = f.service.GetResult(ctx, pending.ID)
	require.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestFinalize_PartialFailureStillSettles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.finalize.cfg.PlatformAccount = uuid.New() // no wallet behind it
	a := f.openAuction(t, listing())
	buyer := f.bidder(t, "300")
	f.bid(t, a.ID, buyer, "160")
	f.endAuction(a)

	res, err := f.service.Finalize(context.Background(), a.ID)
	require.Error(t, err)
	require.ErrorIs(t, err, walletdomain.ErrWalletNotFound)
	require.NotNil(t, res)
	assert.Equal(t, domain.ResultWon, res.Status)

	// the steps before and after the failed one still ran
	assert.True(t, f.balance(t, buyer).Equal(money("140")))
	assert.True(t, f.balance(t, a.SellerID).Equal(money("152")))

	// a retry sees the result and does not move funds again
	_, err = f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, buyer).Equal(money("140")))
}

func TestFinalize_WinnerWithoutFundsIsNotCredited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())
	buyer := f.bidder(t, "160")
	f.bid(t, a.ID, buyer, "160")
	// funds leave outside the hold: simulate the hold having been lost
	require.NoError(t, f.escrow.ReleaseHold(context.Background(), buyer, a.ID))
	_, err := f.escrow.Withdraw(context.Background(), buyer, money("100"), "")
	require.NoError(t, err)
	f.endAuction(a)

	_, err = f.service.Finalize(context.Background(), a.ID)
	require.ErrorIs(t, err, walletdomain.ErrInsufficientFunds)
	assert.True(t, f.balance(t, a.SellerID).IsZero())
	assert.True(t, f.balance(t, f.platform).IsZero())
	assert.True(t, f.balance(t, buyer).Equal(money("60")))
}

func TestFinalize_PaysSellerWithoutWallet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	seller := uuid.New()
	a, err := f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: seller, Details: listing()})
	require.NoError(t, err)
	a, err = f.service.ApproveAuction(ctx, a.ID)
	require.NoError(t, err)

	buyer := f.bidder(t, "300")
	before := f.totalMoney(t, buyer, f.platform)
	f.bid(t, a.ID, buyer, "160")
	f.endAuction(a)

	res, err := f.service.Finalize(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWon, res.Status)

	assert.True(t, f.balance(t, buyer).Equal(money("140")))
	assert.True(t, f.balance(t, seller).Equal(money("152.00")))
	assert.True(t, f.balance(t, f.platform).Equal(money("8.00")))
	assert.True(t, f.totalMoney(t, buyer, seller, f.platform).Equal(before))
	assert.Len(t, f.payments(t, a.ID)[walletdomain.TransactionAuctionIncome], 1)
}

// lossyAuctionRepo drops updates of the denormalized bid fields, the worst case of two bids
// interleaving between reading and writing the current highest bid.
type lossyAuctionRepo struct {
	domain.AuctionRepository
}

func (lossyAuctionRepo) RecordBid(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal) (*uuid.UUID, error) {
	return nil, nil
}

func TestFinalize_BidLogDecidesNotDenormalizedField(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withAuctionRepo(func(r domain.AuctionRepository) domain.AuctionRepository {
		return lossyAuctionRepo{r}
	}))
	a := f.openAuction(t, listing())
	high, low := f.bidder(t, "300"), f.bidder(t, "300")

	// both validated against a stale current bid of none
	f.bid(t, a.ID, high, "170")
	f.bid(t, a.ID, low, "155")

	stored, err := f.auctions.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, stored.CurrentBid.Valid)

	f.endAuction(a)
	res, err := f.service.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, high, *res.WinnerID)
	assert.True(t, res.FinalBid.Decimal.Equal(money("170")))
	assert.True(t, f.balance(t, high).Equal(money("130")))
	assert.True(t, f.wallet(t, low).Held.IsZero())
}

func TestFinalize_ConcurrentBiddersDurableLogWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())

	const n = 12
	bidders := make([]uuid.UUID, n)
	for i := range bidders {
		bidders[i] = f.bidder(t, "1000")
	}

	var wg sync.WaitGroup
	for i, u := range bidders {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			// rejections for stale minimums are expected under contention
			_, _ = f.service.PlaceBid(ctx, PlaceBidDTO{AuctionID: a.ID, UserID: u, Amount: money(fmt.Sprintf("%d", 150+10*i))})
		}(i, u)
	}
	wg.Wait()

	bids, err := f.bids.ListByAuction(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	want := domain.WinningBid(bids)

	f.endAuction(a)
	res, err := f.service.Finalize(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, want.UserID, *res.WinnerID)
	assert.True(t, res.FinalBid.Decimal.Equal(want.Amount))

	for _, u := range bidders {
		w := f.wallet(t, u)
		assert.True(t, w.Held.IsZero())
		if u == want.UserID {
			assert.True(t, w.Balance.Equal(money("1000").Sub(want.Amount)))
		} else {
			assert.True(t, w.Balance.Equal(money("1000")))
		}
	}
}
