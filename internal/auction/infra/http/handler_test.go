package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/application"
	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/httpserver"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	application.AuctionService
	bidErr      error
	finalizeErr error
	result      *domain.AuctionResult
	lastBid     application.PlaceBidDTO
	lastCreate  application.CreateAuctionDTO
}

func (s *stubService) PlaceBid(_ context.Context, cmd application.PlaceBidDTO) (*domain.Bid, error) {
	s.lastBid = cmd
	if s.bidErr != nil {
		return nil, s.bidErr
	}
	return &domain.Bid{ID: uuid.New(), AuctionID: cmd.AuctionID, UserID: cmd.UserID, Amount: cmd.Amount, CreatedAt: time.Now()}, nil
}

func (s *stubService) Finalize(context.Context, uuid.UUID) (*domain.AuctionResult, error) {
	return s.result, s.finalizeErr
}

func (s *stubService) GetResult(_ context.Context, id uuid.UUID) (*domain.AuctionResult, error) {
	if s.result == nil {
		return nil, domain.ErrResultNotFound
	}
	return s.result, nil
}

func (s *stubService) CreateAuction(_ context.Context, cmd application.CreateAuctionDTO) (*domain.Auction, error) {
	s.lastCreate = cmd
	return domain.NewAuction(cmd.SellerID, cmd.Details, time.Now())
}

func (s *stubService) ApproveAuction(context.Context, uuid.UUID) (*domain.Auction, error) {
	return nil, fmt.Errorf("manage auction: %w", domain.ErrInvalidTransition)
}

func newApp(svc application.AuctionService) *fiber.App {
	return httpserver.NewServer(NewAuctionHandler(svc)).App()
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, httpserver.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env httpserver.Envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func TestPlaceBid(t *testing.T) {
	auctionID := uuid.New()
	userID := uuid.New()
	body := fmt.Sprintf(`{"user_id":%q,"amount":"125.50"}`, userID)

	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"created", "/auctions/" + auctionID.String() + "/bids", body, nil, fiber.StatusCreated, ""},
		{"bad id", "/auctions/nope/bids", body, nil, fiber.StatusBadRequest, "invalid auction id"},
		{"bad body", "/auctions/" + auctionID.String() + "/bids", "{", nil, fiber.StatusBadRequest, "invalid request body"},
		{"too low", "/auctions/" + auctionID.String() + "/bids", body, fmt.Errorf("place bid: %w", domain.ErrBidTooLow), fiber.StatusUnprocessableEntity, domain.ErrBidTooLow.Error()},
		{"not open", "/auctions/" + auctionID.String() + "/bids", body, domain.ErrAuctionNotOpen, fiber.StatusConflict, domain.ErrAuctionNotOpen.Error()},
		{"self bid", "/auctions/" + auctionID.String() + "/bids", body, domain.ErrSelfBidding, fiber.StatusForbidden, domain.ErrSelfBidding.Error()},
		{"no funds", "/auctions/" + auctionID.String() + "/bids", body, domain.ErrInsufficientFunds, fiber.StatusPaymentRequired, domain.ErrInsufficientFunds.Error()},
		{"missing auction", "/auctions/" + auctionID.String() + "/bids", body, domain.ErrAuctionNotFound, fiber.StatusNotFound, domain.ErrAuctionNotFound.Error()},
		{"internal", "/auctions/" + auctionID.String() + "/bids", body, assert.AnError, fiber.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{bidErr: tt.err}
			status, env := do(t, newApp(svc), fiber.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, env.Error)
			if tt.wantStatus == fiber.StatusCreated {
				assert.Equal(t, auctionID, svc.lastBid.AuctionID)
				assert.Equal(t, userID, svc.lastBid.UserID)
				assert.True(t, decimal.RequireFromString("125.50").Equal(svc.lastBid.Amount))
			}
		})
	}
}

func TestForceFinalize(t *testing.T) {
	id := uuid.New()
	result := &domain.AuctionResult{AuctionID: id, Status: domain.ResultNoBids}

	status, env := do(t, newApp(&stubService{result: result}), fiber.MethodPost, "/admin/auctions/"+id.String()+"/finalize", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "settled", env.Message)

	status, env = do(t, newApp(&stubService{result: result, finalizeErr: assert.AnError}), fiber.MethodPost, "/admin/auctions/"+id.String()+"/finalize", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "settled with errors", env.Message)

	status, _ = do(t, newApp(&stubService{finalizeErr: domain.ErrAuctionNotSettleable}), fiber.MethodPost, "/admin/auctions/"+id.String()+"/finalize", "")
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestGetResult_NotFound(t *testing.T) {
	status, env := do(t, newApp(&stubService{}), fiber.MethodGet, "/auctions/"+uuid.NewString()+"/result", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, domain.ErrResultNotFound.Error(), env.Error)
}

func TestCreateAuction(t *testing.T) {
	seller := uuid.New()
	body := fmt.Sprintf(`{
		"seller_id": %q,
		"title": "Vintage camera",
		"category": "standard",
		"starting_price": "100.00",
		"reserve_price": "150.00",
		"min_increment": "5.00",
		"start_time": "2025-03-01T10:00:00Z",
		"end_time": "2025-03-02T10:00:00Z"
	}`, seller)
	svc := &stubService{}

	status, env := do(t, newApp(svc), fiber.MethodPost, "/auctions", body)

	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, seller, svc.lastCreate.SellerID)
	assert.True(t, svc.lastCreate.Details.ReservePrice.Valid)
	data := env.Data.(map[string]any)
	assert.Equal(t, string(domain.StatusPending), data["status"])
	assert.Equal(t, "105", data["minimum_next_bid"])
}

func TestApproveAuction_Conflict(t *testing.T) {
	status, env := do(t, newApp(&stubService{}), fiber.MethodPost, "/auctions/"+uuid.NewString()+"/approve", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, domain.ErrInvalidTransition.Error(), env.Error)
}
