package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/auction/infra/livestate"
	auctionmem "github.com/cristianortiz/escrowEngine/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/shared/notify"
	walletapp "github.com/cristianortiz/escrowEngine/internal/wallet/application"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	walletmem "github.com/cristianortiz/escrowEngine/internal/wallet/infra/repository/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	cancelled []uuid.UUID
}

func (s *recordingScheduler) Schedule(id uuid.UUID, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[id] = end
}

func (s *recordingScheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, id)
	s.cancelled = append(s.cancelled, id)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	states []*domain.LiveState
}

func (b *recordingBroadcaster) AuctionUpdated(s *domain.LiveState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, s)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.AuctionSettled
}

func (n *recordingNotifier) AuctionSettled(ctx context.Context, ev notify.AuctionSettled) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

// fixture wires every use case on the in-memory stores, the way cmd/main.go does with STORAGE_DRIVER=memory.
type fixture struct {
	clock       *clock.Fake
	auctions    domain.AuctionRepository
	bids        *auctionmem.BidRepository
	results     *auctionmem.ResultRepository
	holds       *walletmem.HoldRepository
	journal     *walletmem.TransactionRepository
	escrow      *walletapp.EscrowService
	mirror      *livestate.MemoryMirror
	scheduler   *recordingScheduler
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	platform    uuid.UUID

	placeBid  *PlaceBidUseCase
	finalize  *FinalizeAuctionUseCase
	manage    *ManageAuctionUseCase
	liveState *GetLiveStateUseCase
	service   AuctionService
}

type fixtureOption func(*fixture)

func withAuctionRepo(wrap func(domain.AuctionRepository) domain.AuctionRepository) fixtureOption {
	return func(f *fixture) { f.auctions = wrap(f.auctions) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	txm := db.NewLocalTxManager()
	f := &fixture{
		clock:       clock.NewFake(start.Add(time.Minute)),
		auctions:    auctionmem.NewAuctionRepository(),
		bids:        auctionmem.NewBidRepository(),
		results:     auctionmem.NewResultRepository(),
		holds:       walletmem.NewHoldRepository(),
		journal:     walletmem.NewTransactionRepository(),
		mirror:      livestate.NewMemoryMirror(20),
		scheduler:   &recordingScheduler{scheduled: map[uuid.UUID]time.Time{}},
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
		platform:    uuid.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.escrow = walletapp.NewEscrowService(walletmem.NewWalletRepository(), f.holds, f.journal, txm, f.clock)

	fees := domain.FeeSchedule{
		"standard": decimal.RequireFromString("0.05"),
		"premium":  decimal.RequireFromString("0.10"),
	}
	f.placeBid = NewPlaceBidUseCase(f.auctions, f.bids, f.escrow, f.mirror, f.broadcaster, txm, f.clock)
	f.finalize = NewFinalizeAuctionUseCase(f.auctions, f.bids, f.results, f.escrow, f.mirror, f.notifier, txm, f.clock,
		SettlementConfig{Fees: fees, PlatformAccount: f.platform})
	f.manage = NewManageAuctionUseCase(f.auctions, f.escrow, f.mirror, f.scheduler, fees, txm, f.clock)
	f.liveState = NewGetLiveStateUseCase(f.auctions, f.bids, f.mirror, 20)
	f.service = NewAuctionService(f.placeBid, f.liveState, f.finalize, NewGetResultUseCase(f.results), f.manage)

	_, err := f.escrow.OpenWallet(context.Background(), f.platform)
	require.NoError(t, err)
	return f
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func listing() domain.AuctionDetails {
	return domain.AuctionDetails{
		Title:         "Mechanical watch",
		Category:      "standard",
		StartingPrice: money("100"),
		ReservePrice:  decimal.NewNullDecimal(money("150")),
		MinIncrement:  money("5"),
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
	}
}

// openAuction creates and approves an auction for a fresh seller with an empty wallet.
func (f *fixture) openAuction(t *testing.T, d domain.AuctionDetails) *domain.Auction {
	t.Helper()
	ctx := context.Background()
	seller := uuid.New()
	_, err := f.escrow.OpenWallet(ctx, seller)
	require.NoError(t, err)

	a, err := f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: seller, Details: d})
	require.NoError(t, err)
	a, err = f.service.ApproveAuction(ctx, a.ID)
	require.NoError(t, err)
	return a
}

func (f *fixture) bidder(t *testing.T, funds string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := f.escrow.Deposit(context.Background(), id, money(funds), "")
	require.NoError(t, err)
	return id
}

func (f *fixture) bid(t *testing.T, auctionID, user uuid.UUID, amount string) *domain.Bid {
	t.Helper()
	f.clock.Advance(time.Second)
	b, err := f.service.PlaceBid(context.Background(), PlaceBidDTO{AuctionID: auctionID, UserID: user, Amount: money(amount)})
	require.NoError(t, err)
	return b
}

func (f *fixture) wallet(t *testing.T, user uuid.UUID) *walletdomain.WalletSummary {
	t.Helper()
	w, err := f.escrow.GetWallet(context.Background(), user)
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, user uuid.UUID) decimal.Decimal {
	t.Helper()
	return f.wallet(t, user).Balance
}

// totalMoney sums every balance the test knows about; settlement only moves money between them.
func (f *fixture) totalMoney(t *testing.T, users ...uuid.UUID) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, u := range users {
		total = total.Add(f.balance(t, u))
	}
	return total
}
