package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/notify"
	"github.com/cristianortiz/escrowEngine/internal/shared/websocket"
	"go.uber.org/zap"
)

// Broadcaster pushes auction events to the room of the auction. It serves both the bid path
// (live updates) and settlement (closed notice).
type Broadcaster struct {
	hub *websocket.Hub
}

func NewBroadcaster(hub *websocket.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) AuctionUpdated(state *domain.LiveState) {
	msg := ServerAuctionUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerAuctionUpdate},
		Payload:     state,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal auction update", zap.String("auctionID", state.AuctionID.String()), zap.Error(err))
		return
	}
	b.hub.BroadcastToRoom(state.AuctionID.String(), data)
}

func (b *Broadcaster) AuctionSettled(_ context.Context, ev notify.AuctionSettled) error {
	msg := ServerAuctionClosedMessage{BaseMessage: BaseMessage{Type: MessageTypeServerAuctionClosed}}
	msg.Payload.AuctionID = ev.AuctionID
	msg.Payload.Status = ev.Status
	msg.Payload.WinnerID = ev.WinnerID
	msg.Payload.FinalBid = ev.FinalBid
	msg.Payload.SettledAt = ev.SettledAt

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.hub.BroadcastToRoom(ev.AuctionID.String(), data)
	return nil
}
