package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StateKey and BidsKey are the redis keys holding one auction's live state.
func StateKey(auctionID uuid.UUID) string { return fmt.Sprintf("auction:%s:live", auctionID) }
func BidsKey(auctionID uuid.UUID) string  { return fmt.Sprintf("auction:%s:live:bids", auctionID) }

// pushBidScript raises the current bid only when the new amount is higher and trims the bid
// list to the window, all in one round trip. Missing auctions are left alone.
var pushBidScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'bid_count', 1)
local cur = redis.call('HGET', KEYS[1], 'current_bid')
if (not cur) or cur == '' or tonumber(ARGV[1]) > tonumber(cur) then
  redis.call('HSET', KEYS[1], 'current_bid', ARGV[1], 'current_bidder', ARGV[2])
end
redis.call('LPUSH', KEYS[2], ARGV[3])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[4]) - 1)
return 1
`)

var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// RedisMirror shares live state between engine replicas.
type RedisMirror struct {
	client *redis.Client
	window int
	ttl    time.Duration
}

func NewRedisMirror(client *redis.Client, window int, ttl time.Duration) *RedisMirror {
	if window < 1 {
		window = 1
	}
	return &RedisMirror{client: client, window: window, ttl: ttl}
}

func (m *RedisMirror) Get(ctx context.Context, auctionID uuid.UUID) (*domain.LiveState, error) {
	fields, err := m.client.HGetAll(ctx, StateKey(auctionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("livestate: hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrLiveStateMiss
	}

	s := &domain.LiveState{AuctionID: auctionID, Status: domain.Status(fields["status"])}
	if v := fields["current_bid"]; v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("livestate: bad current_bid %q: %w", v, err)
		}
		s.CurrentBid = decimal.NewNullDecimal(d)
	}
	if v := fields["current_bidder"]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("livestate: bad current_bidder %q: %w", v, err)
		}
		s.CurrentBidderID = &id
	}
	if v := fields["bid_count"]; v != "" {
		if s.BidCount, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("livestate: bad bid_count %q: %w", v, err)
		}
	}
	if v := fields["deadline"]; v != "" {
		if s.Deadline, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("livestate: bad deadline %q: %w", v, err)
		}
	}

	raw, err := m.client.LRange(ctx, BidsKey(auctionID), 0, int64(m.window-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("livestate: lrange: %w", err)
	}
	s.RecentBids = make([]domain.LiveBid, 0, len(raw))
	for _, item := range raw {
		var b domain.LiveBid
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			return nil, fmt.Errorf("livestate: decode bid: %w", err)
		}
		s.RecentBids = append(s.RecentBids, b)
	}
	return s, nil
}

func (m *RedisMirror) Put(ctx context.Context, state *domain.LiveState) error {
	key, bidsKey := StateKey(state.AuctionID), BidsKey(state.AuctionID)

	fields := map[string]interface{}{
		"status":         string(state.Status),
		"deadline":       state.Deadline.UTC().Format(time.RFC3339Nano),
		"bid_count":      state.BidCount,
		"current_bid":    "",
		"current_bidder": "",
	}
	if state.CurrentBid.Valid {
		fields["current_bid"] = state.CurrentBid.Decimal.StringFixed(2)
	}
	if state.CurrentBidderID != nil {
		fields["current_bidder"] = state.CurrentBidderID.String()
	}

	bids := state.RecentBids
	if len(bids) > m.window {
		bids = bids[:m.window]
	}
	encoded := make([]interface{}, 0, len(bids))
	for _, b := range bids {
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("livestate: encode bid: %w", err)
		}
		encoded = append(encoded, raw)
	}

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, bidsKey)
		pipe.HSet(ctx, key, fields)
		if len(encoded) > 0 {
			pipe.RPush(ctx, bidsKey, encoded...)
		}
		if m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
			pipe.Expire(ctx, bidsKey, m.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("livestate: put: %w", err)
	}
	return nil
}

func (m *RedisMirror) Update(ctx context.Context, auctionID uuid.UUID, patch domain.LiveStatePatch) error {
	var args []interface{}
	if patch.CurrentBid != nil {
		args = append(args, "current_bid", patch.CurrentBid.StringFixed(2))
	}
	if patch.CurrentBidderID != nil {
		args = append(args, "current_bidder", patch.CurrentBidderID.String())
	}
	if patch.BidCount != nil {
		args = append(args, "bid_count", *patch.BidCount)
	}
	if patch.Status != nil {
		args = append(args, "status", string(*patch.Status))
	}
	if patch.Deadline != nil {
		args = append(args, "deadline", patch.Deadline.UTC().Format(time.RFC3339Nano))
	}
	if len(args) == 0 {
		return nil
	}
	if err := updateScript.Run(ctx, m.client, []string{StateKey(auctionID)}, args...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("livestate: update: %w", err)
	}
	return nil
}

func (m *RedisMirror) PushBid(ctx context.Context, bid *domain.Bid) error {
	raw, err := json.Marshal(domain.LiveBidOf(bid))
	if err != nil {
		return fmt.Errorf("livestate: encode bid: %w", err)
	}
	keys := []string{StateKey(bid.AuctionID), BidsKey(bid.AuctionID)}
	err = pushBidScript.Run(ctx, m.client, keys, bid.Amount.StringFixed(2), bid.UserID.String(), raw, m.window).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("livestate: push bid: %w", err)
	}
	return nil
}

func (m *RedisMirror) Delete(ctx context.Context, auctionID uuid.UUID) error {
	if err := m.client.Del(ctx, StateKey(auctionID), BidsKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("livestate: delete: %w", err)
	}
	return nil
}
