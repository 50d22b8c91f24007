package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository stores auction_results. The primary key on auction_id is what makes
// settlement create-once under concurrent finalizers.
type ResultRepository struct {
	pool *pgxpool.Pool
}

func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func (r *ResultRepository) Create(ctx context.Context, res *domain.AuctionResult) error {
	query := `
        INSERT INTO auction_results (auction_id, winner_id, final_bid, reserve_met, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		res.AuctionID,
		res.WinnerID,
		res.FinalBid,
		res.ReserveMet,
		res.Status,
		res.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return domain.ErrResultExists
	}
	return err
}

func (r *ResultRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error) {
	query := `
        SELECT auction_id, winner_id, final_bid, reserve_met, status, created_at
        FROM auction_results
        WHERE auction_id = $1
    `
	res := &domain.AuctionResult{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, auctionID).Scan(
		&res.AuctionID,
		&res.WinnerID,
		&res.FinalBid,
		&res.ReserveMet,
		&res.Status,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}
	return res, nil
}
