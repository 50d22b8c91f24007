package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// HoldRepository implements domain.HoldRepository over wallet_holds, keyed by (user_id, auction_id).
type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) Get(ctx context.Context, userID, auctionID uuid.UUID) (*domain.FundHold, error) {
	query := `
        SELECT user_id, auction_id, amount, created_at, updated_at
        FROM wallet_holds
        WHERE user_id = $1 AND auction_id = $2
    `
	h := &domain.FundHold{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, userID, auctionID).Scan(
		&h.UserID,
		&h.AuctionID,
		&h.Amount,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldNotFound
		}
		return nil, err
	}
	return h, nil
}

func (r *HoldRepository) Upsert(ctx context.Context, hold *domain.FundHold) error {
	query := `
        INSERT INTO wallet_holds (user_id, auction_id, amount, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, auction_id) DO UPDATE
        SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		hold.UserID,
		hold.AuctionID,
		hold.Amount,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	return err
}

func (r *HoldRepository) Delete(ctx context.Context, userID, auctionID uuid.UUID) (*domain.FundHold, error) {
	query := `
        DELETE FROM wallet_holds
        WHERE user_id = $1 AND auction_id = $2
        RETURNING user_id, auction_id, amount, created_at, updated_at
    `
	h := &domain.FundHold{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, userID, auctionID).Scan(
		&h.UserID,
		&h.AuctionID,
		&h.Amount,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldNotFound
		}
		return nil, err
	}
	return h, nil
}

func (r *HoldRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.FundHold, error) {
	query := `
        SELECT user_id, auction_id, amount, created_at, updated_at
        FROM wallet_holds
        WHERE auction_id = $1
        ORDER BY created_at ASC
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []*domain.FundHold
	for rows.Next() {
		h := &domain.FundHold{}
		if err := rows.Scan(&h.UserID, &h.AuctionID, &h.Amount, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

func (r *HoldRepository) TotalActiveByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_holds WHERE user_id = $1`
	var total decimal.Decimal
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
