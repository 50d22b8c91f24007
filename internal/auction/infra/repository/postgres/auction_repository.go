package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AuctionRepository implements domain.AuctionRepository interface
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `
        id, seller_id, title, description, category, starting_price, reserve_price, min_increment,
        start_time, end_time, current_bid, current_bidder_id, bid_count, status, created_at, updated_at
    `

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.Description,
		&a.Category,
		&a.StartingPrice,
		&a.ReservePrice,
		&a.MinIncrement,
		&a.StartTime,
		&a.EndTime,
		&a.CurrentBid,
		&a.CurrentBidderID, // NULL until the first bid
		&a.BidCount,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, seller_id, title, description, category, starting_price, reserve_price,
                              min_increment, start_time, end_time, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.SellerID,
		a.Title,
		a.Description,
		a.Category,
		a.StartingPrice,
		a.ReservePrice,
		a.MinIncrement,
		a.StartTime,
		a.EndTime,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT` + auctionColumns + `FROM auctions WHERE id = $1`
	a, err := scanAuction(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update writes the listing fields and status with a compare-and-set on the stored status.
// Bid fields are never touched here.
func (r *AuctionRepository) Update(ctx context.Context, a *domain.Auction, expected domain.Status) error {
	query := `
        UPDATE auctions
        SET title = $2, description = $3, category = $4, starting_price = $5, reserve_price = $6,
            min_increment = $7, start_time = $8, end_time = $9, status = $10, updated_at = NOW()
        WHERE id = $1 AND status = $11
    `
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.Category,
		a.StartingPrice,
		a.ReservePrice,
		a.MinIncrement,
		a.StartTime,
		a.EndTime,
		a.Status,
		expected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, a.ID, domain.ErrInvalidTransition)
	}
	return nil
}

// RecordBid raises the denormalized highest bid in a single statement, so two concurrent
// bids can never lower it. The locked pre-image decides which leader, if any, the bid displaced.
func (r *AuctionRepository) RecordBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*uuid.UUID, error) {
	query := `
        WITH prev AS (
            SELECT id, current_bid, current_bidder_id FROM auctions WHERE id = $1 FOR UPDATE
        )
        UPDATE auctions a
        SET bid_count = a.bid_count + 1,
            current_bidder_id = CASE WHEN prev.current_bid IS NULL OR $3::numeric > prev.current_bid
                                     THEN $2::uuid ELSE prev.current_bidder_id END,
            current_bid = CASE WHEN prev.current_bid IS NULL OR $3::numeric > prev.current_bid
                               THEN $3::numeric ELSE prev.current_bid END,
            updated_at = NOW()
        FROM prev
        WHERE a.id = prev.id
        RETURNING CASE WHEN (prev.current_bid IS NULL OR $3::numeric > prev.current_bid)
                            AND prev.current_bidder_id <> $2::uuid
                       THEN prev.current_bidder_id END
    `
	var displaced *uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, auctionID, bidderID, amount).Scan(&displaced)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return displaced, nil
}

func (r *AuctionRepository) Close(ctx context.Context, auctionID uuid.UUID, bidderID *uuid.UUID, finalBid decimal.NullDecimal) error {
	query := `
        UPDATE auctions
        SET status = 'closed',
            current_bidder_id = $2,
            current_bid = COALESCE($3, current_bid),
            updated_at = NOW()
        WHERE id = $1 AND status = 'approved'
    `
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, auctionID, bidderID, finalBid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, auctionID, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *AuctionRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Auction, error) {
	query := `SELECT` + auctionColumns + `FROM auctions WHERE status = $1 ORDER BY end_time ASC`
	return r.list(ctx, query, status)
}

func (r *AuctionRepository) ListEndedUnsettled(ctx context.Context, from, to time.Time) ([]*domain.Auction, error) {
	query := `SELECT` + auctionColumns + `FROM auctions
        WHERE status = 'approved' AND end_time BETWEEN $1 AND $2
        ORDER BY end_time ASC`
	return r.list(ctx, query, from, to)
}

func (r *AuctionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Auction, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return auctions, nil
}

func (r *AuctionRepository) missingOr(ctx context.Context, id uuid.UUID, otherwise error) error {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAuctionNotFound
	}
	return otherwise
}
