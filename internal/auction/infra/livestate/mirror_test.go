package livestate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 3

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func mirrors(t *testing.T) map[string]domain.LiveStateMirror {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]domain.LiveStateMirror{
		"memory": NewMemoryMirror(window),
		"redis":  NewRedisMirror(client, window, time.Hour),
	}
}

func seed(auctionID uuid.UUID) *domain.LiveState {
	return &domain.LiveState{
		AuctionID: auctionID,
		Status:    domain.StatusApproved,
		Deadline:  base.Add(time.Hour),
	}
}

func bid(auctionID, user uuid.UUID, amount string, i int) *domain.Bid {
	return domain.NewBid(auctionID, user, decimal.RequireFromString(amount), base.Add(time.Duration(i)*time.Second))
}

func TestMirror_MissBeforePut(t *testing.T) {
	for name, m := range mirrors(t) {
		t.Run(name, func(t *testing.T) {
			_, err := m.Get(context.Background(), uuid.New())
			require.ErrorIs(t, err, domain.ErrLiveStateMiss)
		})
	}
}

func TestMirror_PushBidKeepsBoundedWindow(t *testing.T) {
	for name, m := range mirrors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			auctionID := uuid.New()
			require.NoError(t, m.Put(ctx, seed(auctionID)))

			users := make([]uuid.UUID, 5)
			for i := range users {
				users[i] = uuid.New()
				require.NoError(t, m.PushBid(ctx, bid(auctionID, users[i], fmt.Sprintf("%d", 100+10*i), i)))
			}

			s, err := m.Get(ctx, auctionID)
			require.NoError(t, err)
			assert.Equal(t, 5, s.BidCount)
			require.Len(t, s.RecentBids, window)
			// newest first, oldest two trimmed
			assert.Equal(t, users[4], s.RecentBids[0].UserID)
			assert.Equal(t, users[2], s.RecentBids[2].UserID)
			require.True(t, s.CurrentBid.Valid)
			assert.True(t, s.CurrentBid.Decimal.Equal(decimal.RequireFromString("140")))
			require.NotNil(t, s.CurrentBidderID)
			assert.Equal(t, users[4], *s.CurrentBidderID)
			assert.Equal(t, domain.StatusApproved, s.Status)
			assert.True(t, s.Deadline.Equal(base.Add(time.Hour)))
		})
	}
}

func TestMirror_LowerBidDoesNotReplaceCurrent(t *testing.T) {
	for name, m := range mirrors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			auctionID := uuid.New()
			high, low := uuid.New(), uuid.New()
			require.NoError(t, m.Put(ctx, seed(auctionID)))

			require.NoError(t, m.PushBid(ctx, bid(auctionID, high, "160", 1)))
			require.NoError(t, m.PushBid(ctx, bid(auctionID, low, "120", 2)))

			s, err := m.Get(ctx, auctionID)
			require.NoError(t, err)
			assert.Equal(t, high, *s.CurrentBidderID)
			assert.True(t, s.CurrentBid.Decimal.Equal(decimal.RequireFromString("160")))
			assert.Len(t, s.RecentBids, 2)
		})
	}
}

func TestMirror_UpdateAndDelete(t *testing.T) {
	for name, m := range mirrors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			auctionID := uuid.New()

			closed := domain.StatusClosed
			// not cached: no-op, and must not create an entry
			require.NoError(t, m.Update(ctx, auctionID, domain.LiveStatePatch{Status: &closed}))
			require.NoError(t, m.PushBid(ctx, bid(auctionID, uuid.New(), "100", 0)))
			_, err := m.Get(ctx, auctionID)
			require.ErrorIs(t, err, domain.ErrLiveStateMiss)

			require.NoError(t, m.Put(ctx, seed(auctionID)))
			require.NoError(t, m.Update(ctx, auctionID, domain.LiveStatePatch{Status: &closed}))
			s, err := m.Get(ctx, auctionID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusClosed, s.Status)

			require.NoError(t, m.Delete(ctx, auctionID))
			_, err = m.Get(ctx, auctionID)
			require.ErrorIs(t, err, domain.ErrLiveStateMiss)
		})
	}
}

func TestMirror_PutTrimsToWindow(t *testing.T) {
	for name, m := range mirrors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			auctionID := uuid.New()
			s := seed(auctionID)
			for i := 0; i < 5; i++ {
				s.RecentBids = append(s.RecentBids, domain.LiveBidOf(bid(auctionID, uuid.New(), "100", 10-i)))
			}
			newest := s.RecentBids[0].BidID

			require.NoError(t, m.Put(ctx, s))
			got, err := m.Get(ctx, auctionID)
			require.NoError(t, err)
			require.Len(t, got.RecentBids, window)
			assert.Equal(t, newest, got.RecentBids[0].BidID)
		})
	}
}

func TestBidRing_Wraps(t *testing.T) {
	r := newBidRing(2)
	assert.Empty(t, r.newestFirst())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		r.push(domain.LiveBid{BidID: id})
	}
	got := r.newestFirst()
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].BidID)
	assert.Equal(t, ids[1], got[1].BidID)
}
