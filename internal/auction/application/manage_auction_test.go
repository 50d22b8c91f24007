package application

import (
	"context"
	"testing"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManage_ApproveSchedulesDeadline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.openAuction(t, listing())

	assert.Equal(t, domain.StatusApproved, a.Status)
	assert.Equal(t, a.EndTime, f.scheduler.scheduled[a.ID])

	state, err := f.service.GetLiveState(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, state.Status)
	assert.Equal(t, a.EndTime, state.Deadline)
}

func TestManage_EditApprovedGoesBackToPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())

	d := listing()
	d.EndTime = d.EndTime.Add(time.Hour)
	edited, err := f.service.EditAuction(ctx, EditAuctionDTO{AuctionID: a.ID, SellerID: a.SellerID, Details: d})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, edited.Status)
	assert.Contains(t, f.scheduler.cancelled, a.ID)
	assert.NotContains(t, f.scheduler.scheduled, a.ID)

	_, err = f.mirror.Get(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrLiveStateMiss)

	// re-approval arms the new deadline
	_, err = f.service.ApproveAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, d.EndTime, f.scheduler.scheduled[a.ID])
}

func TestManage_EditGuards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())

	_, err := f.service.EditAuction(ctx, EditAuctionDTO{AuctionID: a.ID, SellerID: uuid.New(), Details: listing()})
	require.ErrorIs(t, err, domain.ErrNotAuctionSeller)

	bad := listing()
	bad.Category = "vintage"
	_, err = f.service.EditAuction(ctx, EditAuctionDTO{AuctionID: a.ID, SellerID: a.SellerID, Details: bad})
	require.ErrorIs(t, err, domain.ErrUnknownCategory)

	_, err = f.service.RejectAuction(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.service.EditAuction(ctx, EditAuctionDTO{AuctionID: a.ID, SellerID: a.SellerID, Details: listing()})
	require.ErrorIs(t, err, domain.ErrAuctionNotEditable)
}

func TestManage_RejectReleasesHolds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())
	alice, bob := f.bidder(t, "300"), f.bidder(t, "300")
	f.bid(t, a.ID, alice, "120")
	f.bid(t, a.ID, bob, "160")

	rejected, err := f.service.RejectAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Contains(t, f.scheduler.cancelled, a.ID)

	for _, u := range []uuid.UUID{alice, bob} {
		w := f.wallet(t, u)
		assert.True(t, w.Held.IsZero())
		assert.True(t, w.Balance.Equal(money("300")))
	}

	_, err = f.service.Finalize(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrAuctionNotSettleable)
}

func TestManage_InvalidTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ApproveAuction(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)

	a := f.openAuction(t, listing())
	_, err = f.service.ApproveAuction(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.endAuction(a)
	_, err = f.service.Finalize(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.service.RejectAuction(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestManage_CreateValidates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	bad := listing()
	bad.Category = "vintage"
	_, err := f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: uuid.New(), Details: bad})
	require.ErrorIs(t, err, domain.ErrUnknownCategory)

	bad = listing()
	bad.EndTime = bad.StartTime.Add(-time.Minute)
	_, err = f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: uuid.New(), Details: bad})
	require.ErrorIs(t, err, domain.ErrInvalidAuction)

	a, err := f.service.CreateAuction(ctx, CreateAuctionDTO{SellerID: uuid.New(), Details: listing()})
	require.NoError(t, err)
	got, err := f.service.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.NotContains(t, f.scheduler.scheduled, a.ID)
}

func TestGetLiveState_SeedsMirrorFromStorage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.openAuction(t, listing())
	alice := f.bidder(t, "300")
	f.bid(t, a.ID, alice, "120")

	// simulate a restart: the mirror is empty, storage is not
	require.NoError(t, f.mirror.Delete(ctx, a.ID))

	state, err := f.service.GetLiveState(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.BidCount)
	assert.Equal(t, alice, *state.CurrentBidderID)
	require.Len(t, state.RecentBids, 1)

	cached, err := f.mirror.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, state.BidCount, cached.BidCount)

	_, err = f.service.GetLiveState(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}
