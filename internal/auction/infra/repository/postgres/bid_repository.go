package postgres

import (
	"context"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Save only inserts; bids are never updated.
func (r *BidRepository) Save(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, user_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.UserID,
		bid.Amount,
		bid.CreatedAt,
	)
	return err
}

// ListByAuction returns the full bid log in precedence order.
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY amount DESC, created_at ASC
    `
	return r.list(ctx, query, auctionID)
}

func (r *BidRepository) Latest(ctx context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	return r.list(ctx, query, auctionID, limit)
}

func (r *BidRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Bid, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid := &domain.Bid{}
		err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.UserID,
			&bid.Amount,
			&bid.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bids, nil
}
