package livestate

import "github.com/cristianortiz/escrowEngine/internal/auction/domain"

// bidRing is a fixed-size ring of recent bids; pushing beyond capacity overwrites the oldest.
type bidRing struct {
	buf  []domain.LiveBid
	next int
	size int
}

func newBidRing(capacity int) *bidRing {
	if capacity < 1 {
		capacity = 1
	}
	return &bidRing{buf: make([]domain.LiveBid, capacity)}
}

func (r *bidRing) push(b domain.LiveBid) {
	r.buf[r.next] = b
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// newestFirst copies the ring contents, most recent bid first.
func (r *bidRing) newestFirst() []domain.LiveBid {
	out := make([]domain.LiveBid, 0, r.size)
	for i := 1; i <= r.size; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
