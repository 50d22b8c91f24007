package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// CacheKeys lists the read-cache keys that go stale when an auction settles.
func CacheKeys(ev AuctionSettled) []string {
	keys := []string{
		fmt.Sprintf("auction:%s", ev.AuctionID),
		fmt.Sprintf("auction:%s:live", ev.AuctionID),
		fmt.Sprintf("auction:%s:live:bids", ev.AuctionID),
		userKey(ev.SellerID, "wallet"),
	}
	if ev.WinnerID != nil {
		keys = append(keys, userKey(*ev.WinnerID, "wins"))
	}
	seen := map[uuid.UUID]bool{ev.SellerID: true}
	for _, id := range ev.Affected {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, userKey(id, "wallet"))
	}
	return keys
}

func userKey(id uuid.UUID, view string) string {
	return fmt.Sprintf("user:%s:%s", id, view)
}

// RedisCacheInvalidator drops cached auction and user views after settlement.
type RedisCacheInvalidator struct {
	client *redis.Client
}

func NewRedisCacheInvalidator(client *redis.Client) *RedisCacheInvalidator {
	return &RedisCacheInvalidator{client: client}
}

func (r *RedisCacheInvalidator) AuctionSettled(ctx context.Context, ev AuctionSettled) error {
	if err := r.client.Del(ctx, CacheKeys(ev)...).Err(); err != nil {
		return fmt.Errorf("notify: invalidate cache: %w", err)
	}
	return nil
}
