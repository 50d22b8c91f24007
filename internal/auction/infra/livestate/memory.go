package livestate

import (
	"context"
	"sync"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
)

type entry struct {
	state domain.LiveState
	bids  *bidRing
}

// MemoryMirror keeps live state in process memory. A restart loses it.
type MemoryMirror struct {
	mu      sync.RWMutex
	window  int
	entries map[uuid.UUID]*entry
}

func NewMemoryMirror(window int) *MemoryMirror {
	return &MemoryMirror{window: window, entries: make(map[uuid.UUID]*entry)}
}

func (m *MemoryMirror) Get(ctx context.Context, auctionID uuid.UUID) (*domain.LiveState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[auctionID]
	if !ok {
		return nil, domain.ErrLiveStateMiss
	}
	s := e.state
	if e.state.CurrentBidderID != nil {
		id := *e.state.CurrentBidderID
		s.CurrentBidderID = &id
	}
	s.RecentBids = e.bids.newestFirst()
	return &s, nil
}

func (m *MemoryMirror) Put(ctx context.Context, state *domain.LiveState) error {
	e := &entry{state: *state, bids: newBidRing(m.window)}
	e.state.RecentBids = nil
	// RecentBids arrive newest first
	for i := len(state.RecentBids) - 1; i >= 0; i-- {
		e.bids.push(state.RecentBids[i])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[state.AuctionID] = e
	return nil
}

// Update is a no-op for auctions that are not cached.
func (m *MemoryMirror) Update(ctx context.Context, auctionID uuid.UUID, patch domain.LiveStatePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[auctionID]; ok {
		patch.Apply(&e.state)
	}
	return nil
}

// PushBid is a no-op for auctions that are not cached; the next Get seeds them from storage.
func (m *MemoryMirror) PushBid(ctx context.Context, bid *domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[bid.AuctionID]
	if !ok {
		return nil
	}
	lb := domain.LiveBidOf(bid)
	e.state.Observe(lb, 0)
	e.state.RecentBids = nil
	e.bids.push(lb)
	return nil
}

func (m *MemoryMirror) Delete(ctx context.Context, auctionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, auctionID)
	return nil
}
