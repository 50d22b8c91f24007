package http

import (
	"context"

	"github.com/cristianortiz/escrowEngine/internal/auction/application"
	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/httpserver"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var errorStatus = httpserver.ErrorStatus{
	{Err: domain.ErrAuctionNotFound, Status: fiber.StatusNotFound},
	{Err: domain.ErrResultNotFound, Status: fiber.StatusNotFound},
	{Err: domain.ErrWalletMissing, Status: fiber.StatusNotFound},

	{Err: domain.ErrAuctionNotOpen, Status: fiber.StatusConflict},
	{Err: domain.ErrAuctionNotStarted, Status: fiber.StatusConflict},
	{Err: domain.ErrAuctionEnded, Status: fiber.StatusConflict},
	{Err: domain.ErrInvalidTransition, Status: fiber.StatusConflict},
	{Err: domain.ErrAuctionNotEditable, Status: fiber.StatusConflict},
	{Err: domain.ErrAuctionNotSettleable, Status: fiber.StatusConflict},

	{Err: domain.ErrSelfBidding, Status: fiber.StatusForbidden},
	{Err: domain.ErrNotAuctionSeller, Status: fiber.StatusForbidden},

	{Err: domain.ErrBidTooLow, Status: fiber.StatusUnprocessableEntity},
	{Err: domain.ErrInvalidAmount, Status: fiber.StatusUnprocessableEntity},
	{Err: domain.ErrInvalidAuction, Status: fiber.StatusUnprocessableEntity},
	{Err: domain.ErrUnknownCategory, Status: fiber.StatusUnprocessableEntity},

	{Err: domain.ErrInsufficientFunds, Status: fiber.StatusPaymentRequired},
}

// AuctionHandler exposes the auction use cases over REST.
type AuctionHandler struct {
	auctionService application.AuctionService
}

func NewAuctionHandler(auctionService application.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionService: auctionService}
}

func (h *AuctionHandler) RegisterRoutes(router fiber.Router) {
	auctions := router.Group("/auctions")
	auctions.Post("/", h.CreateAuction)
	auctions.Get("/:id", h.GetAuction)
	auctions.Put("/:id", h.EditAuction)
	auctions.Post("/:id/approve", h.ApproveAuction)
	auctions.Post("/:id/reject", h.RejectAuction)
	auctions.Post("/:id/bids", h.PlaceBid)
	auctions.Get("/:id/live", h.GetLiveState)
	auctions.Get("/:id/result", h.GetResult)

	router.Post("/admin/auctions/:id/finalize", h.ForceFinalize)
}

// PlaceBid handles POST /auctions/:id/bids
func (h *AuctionHandler) PlaceBid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	var req PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid request body")
	}

	bid, err := h.auctionService.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionID: id,
		UserID:    req.UserID,
		Amount:    req.Amount,
	})
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusCreated, toBidResponse(bid), "bid placed")
}

// GetLiveState handles GET /auctions/:id/live
func (h *AuctionHandler) GetLiveState(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	state, err := h.auctionService.GetLiveState(c.UserContext(), id)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, state, "")
}

// GetResult handles GET /auctions/:id/result
func (h *AuctionHandler) GetResult(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	result, err := h.auctionService.GetResult(c.UserContext(), id)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, result, "")
}

// ForceFinalize handles POST /admin/auctions/:id/finalize. A partially failed settlement still
// returns the result; the failed steps are in the logs.
func (h *AuctionHandler) ForceFinalize(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	result, err := h.auctionService.Finalize(c.UserContext(), id)
	if err != nil && result == nil {
		return errorStatus.Fail(c, err)
	}
	if err != nil {
		log.Error("Force finalize settled with errors", zap.String("auctionID", id.String()), zap.Error(err))
		return httpserver.JSONResponse(c, fiber.StatusOK, result, "settled with errors")
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, result, "settled")
}

// CreateAuction handles POST /auctions
func (h *AuctionHandler) CreateAuction(c *fiber.Ctx) error {
	var req AuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid request body")
	}
	a, err := h.auctionService.CreateAuction(c.UserContext(), application.CreateAuctionDTO{
		SellerID: req.SellerID,
		Details:  req.details(),
	})
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusCreated, toAuctionResponse(a), "auction created")
}

// EditAuction handles PUT /auctions/:id
func (h *AuctionHandler) EditAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	var req AuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid request body")
	}
	a, err := h.auctionService.EditAuction(c.UserContext(), application.EditAuctionDTO{
		AuctionID: id,
		SellerID:  req.SellerID,
		Details:   req.details(),
	})
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, toAuctionResponse(a), "auction updated")
}

func (h *AuctionHandler) GetAuction(c *fiber.Ctx) error {
	return h.withAuction(c, h.auctionService.GetAuction, "")
}

func (h *AuctionHandler) ApproveAuction(c *fiber.Ctx) error {
	return h.withAuction(c, h.auctionService.ApproveAuction, "auction approved")
}

func (h *AuctionHandler) RejectAuction(c *fiber.Ctx) error {
	return h.withAuction(c, h.auctionService.RejectAuction, "auction rejected")
}

type auctionOp func(ctx context.Context, id uuid.UUID) (*domain.Auction, error)

func (h *AuctionHandler) withAuction(c *fiber.Ctx, op auctionOp, message string) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpserver.JSONError(c, fiber.StatusBadRequest, "invalid auction id")
	}
	a, err := op(c.UserContext(), id)
	if err != nil {
		return errorStatus.Fail(c, err)
	}
	return httpserver.JSONResponse(c, fiber.StatusOK, toAuctionResponse(a), message)
}
