package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/escrowEngine/internal/auction/application"
	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/cristianortiz/escrowEngine/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionWSHandler routes inbound frames of the auction rooms to the application layer.
type AuctionWSHandler struct {
	auctionService application.AuctionService
	hub            *websocket.Hub
}

func NewAuctionWSHandler(auctionService application.AuctionService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
	}
}

// RegisterRoutes mounts GET /ws/auctions/:id.
func (h *AuctionWSHandler) RegisterRoutes(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws/auctions/:id", fiberws.New(h.Connect))
}

// Connect serves one websocket connection until it closes.
func (h *AuctionWSHandler) Connect(conn *fiberws.Conn) {
	auctionID, err := uuid.Parse(conn.Params("id"))
	if err != nil {
		_ = conn.WriteMessage(fiberws.TextMessage, errorFrame("invalid auction id"))
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := websocket.NewClient(h.hub, conn, auctionID.String(), uuid.NewString())
	h.hub.RegisterClient(client)

	if state, err := h.auctionService.GetLiveState(ctx, auctionID); err == nil {
		h.send(client, ServerAuctionUpdateMessage{
			BaseMessage: BaseMessage{Type: MessageTypeServerInitialState},
			Payload:     state,
		})
	} else {
		h.sendError(client, err.Error())
	}

	go client.WritePump(ctx)
	// blocks until the peer goes away; fiber closes the conn when this returns
	client.ReadPump(ctx)
}

// ListenForMessages consumes the hub inbound queue until ctx is done.
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler listening for inbound messages")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		h.sendError(client, "invalid message format")
		return
	}
	switch base.Type {
	case MessageTypeClientBid:
		h.handleClientBid(ctx, client, data)
	default:
		h.sendError(client, "unknown message type")
	}
}

// handleClientBid places the bid and acks the bidder. The room broadcast comes from the bid path itself.
func (h *AuctionWSHandler) handleClientBid(ctx context.Context, client *websocket.Client, data []byte) {
	var msg ClientBidMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "invalid bid message format")
		return
	}
	if msg.Payload.AuctionID.String() != client.Room {
		h.sendError(client, "auction ID mismatch")
		return
	}

	bid, err := h.auctionService.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID: msg.Payload.AuctionID,
		UserID:    msg.Payload.UserID,
		Amount:    msg.Payload.Amount,
	})
	if err != nil {
		if kind, ok := domain.BidRejection(err); ok {
			h.sendError(client, kind.Error())
			return
		}
		log.Error("websocket bid failed", zap.String("clientID", client.ID), zap.Error(err))
		h.sendError(client, "bid could not be placed")
		return
	}

	ack := ServerBidAcceptedMessage{BaseMessage: BaseMessage{Type: MessageTypeServerBidAccepted}}
	ack.Payload.BidID = bid.ID
	ack.Payload.AuctionID = bid.AuctionID
	ack.Payload.Amount = bid.Amount
	ack.Payload.CreatedAt = bid.CreatedAt
	h.send(client, ack)
}

func (h *AuctionWSHandler) send(client *websocket.Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}
	defer func() {
		// the hub closes Send when the client leaves while a bid is in flight
		if r := recover(); r != nil {
			log.Debug("client gone before reply", zap.String("clientID", client.ID))
		}
	}()
	select {
	case client.Send <- data:
	default:
		log.Warn("client send queue full, message dropped", zap.String("clientID", client.ID))
	}
}

func (h *AuctionWSHandler) sendError(client *websocket.Client, reason string) {
	h.send(client, newErrorMessage(reason))
}

func newErrorMessage(reason string) ServerErrorMessage {
	msg := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	msg.Payload.Error = reason
	return msg
}

func errorFrame(reason string) []byte {
	data, _ := json.Marshal(newErrorMessage(reason))
	return data
}
