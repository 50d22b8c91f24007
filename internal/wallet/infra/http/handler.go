package http

import (
	"context"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/httpserver"
	"github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService is the part of the escrow service the wallet endpoints use.
type WalletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletSummary, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*domain.Transaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*domain.Transaction, error)
	Transactions(ctx context.Context, userID uuid.UUID) ([]*domain.Transaction, error)
}

var errorStatus = httpserver.ErrorStatus{
	{Err: domain.ErrWalletNotFound, Status: fiber.StatusNotFound},
	{Err: domain.ErrInsufficientFunds, Status: fiber.StatusPaymentRequired},
	{Err: domain.ErrInvalidAmount, Status: fiber.StatusUnprocessableEntity},
	{Err: domain.ErrInvalidTransaction, Status: fiber.StatusUnprocessableEntity},
}

type MovementRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type TransactionResponse struct {
	ID          uuid.UUID              `json:"id"`
	WalletID    uuid.UUID              `json:"wallet_id"`
	Type        domain.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Status      string                 `json:"status"`
	ReferenceID *string                `json:"reference_id,omitempty"`
	AuctionID   *uuid.UUID             `json:"auction_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID,
		WalletID:    t.WalletID,
		Type:        t.Type,
		Amount:      t.Amount,
		Status:      string(t.Status),
		ReferenceID: t.ReferenceID,
		AuctionID:   t.AuctionID,
		CreatedAt:   t.CreatedAt,
	}
}

type WalletHandler struct {
	wallets WalletService
}

func NewWalletHandler(wallets WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) RegisterRoutes(router fiber.Router) {
	w := router.Group("/users/:userID/wallet")
	w.Get("/", h.GetWallet)
	w.Post("/deposit", h.Deposit)
	w.Post("/withdraw", h.Withdraw)
	w.Get("/transactions", h.Transactions)
}

func userID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("userID"))
	return id, err == nil
}

// GetWallet handles GET /users/:userID/wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid user id")
	}
	summary, err := h.wallets.GetWallet(c.UserContext(), id)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, summary, "")
}

// Deposit handles POST /users/:userID/wallet/deposit
func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.wallets.Deposit, "deposit completed")
}

// Withdraw handles POST /users/:userID/wallet/withdraw
func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.wallets.Withdraw, "withdrawal completed")
}

type movement func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*domain.Transaction, error)

func (h *WalletHandler) move(c *fiber.Ctx, op movement, message string) error {
	id, ok := userID(c)
	if !ok {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid user id")
	}
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return httpserver.JSONError(c, fiber.StatusUnprocessableEntity, "amount must have at most two decimals")
	}
	tx, err := op(c.UserContext(), id, req.Amount, req.Reference)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusCreated, toTransactionResponse(tx), message)
}

// Transactions handles GET /users/:userID/wallet/transactions
func (h *WalletHandler) Transactions(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid user id")
	}
	txs, err := h.wallets.Transactions(c.UserContext(), id)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, out, "")
}
