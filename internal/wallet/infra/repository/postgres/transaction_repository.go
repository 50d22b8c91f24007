package postgres

import (
	"context"

	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository writes the append-only wallet journal. There is no update path.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
        INSERT INTO wallet_transactions (id, wallet_id, type, amount, status, reference_id, auction_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		tx.ID,
		tx.WalletID,
		tx.Type,
		tx.Amount,
		tx.Status,
		tx.ReferenceID,
		tx.AuctionID,
		tx.CreatedAt,
	)
	return err
}

const selectTransactions = `
        SELECT id, wallet_id, type, amount, status, reference_id, auction_id, created_at
        FROM wallet_transactions
    `

func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.Transaction, error) {
	return r.list(ctx, selectTransactions+" WHERE wallet_id = $1 ORDER BY created_at ASC", walletID)
}

func (r *TransactionRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Transaction, error) {
	return r.list(ctx, selectTransactions+" WHERE auction_id = $1 ORDER BY created_at ASC", auctionID)
}

func (r *TransactionRepository) list(ctx context.Context, query string, arg uuid.UUID) ([]*domain.Transaction, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t := &domain.Transaction{}
		err := rows.Scan(
			&t.ID,
			&t.WalletID,
			&t.Type,
			&t.Amount,
			&t.Status,
			&t.ReferenceID,
			&t.AuctionID,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}
