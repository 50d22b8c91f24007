package websocket

import (
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType identifies a websocket frame
type MessageType string

const (
	MessageTypeClientBid           MessageType = "client_bid"            // client places a bid
	MessageTypeServerBidAccepted   MessageType = "server_bid_accepted"   // ack to the bidder only
	MessageTypeServerAuctionUpdate MessageType = "server_auction_update" // room broadcast after every accepted bid
	MessageTypeServerAuctionClosed MessageType = "server_auction_closed" // room broadcast after settlement
	MessageTypeServerError         MessageType = "server_error"
	MessageTypeServerInitialState  MessageType = "server_initial_state" // sent once on connect
)

// BaseMessage is embedded by every frame so the type can be read first.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID       `json:"auction_id"`
		UserID    uuid.UUID       `json:"user_id"`
		Amount    decimal.Decimal `json:"amount"`
	} `json:"payload"`
}

type ServerBidAcceptedMessage struct {
	BaseMessage
	Payload struct {
		BidID     uuid.UUID       `json:"bid_id"`
		AuctionID uuid.UUID       `json:"auction_id"`
		Amount    decimal.Decimal `json:"amount"`
		CreatedAt time.Time       `json:"created_at"`
	} `json:"payload"`
}

// ServerAuctionUpdateMessage carries the live snapshot; the initial state frame uses the same payload.
type ServerAuctionUpdateMessage struct {
	BaseMessage
	Payload *domain.LiveState `json:"payload"`
}

type ServerAuctionClosedMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID           `json:"auction_id"`
		Status    string              `json:"status"`
		WinnerID  *uuid.UUID          `json:"winner_id,omitempty"`
		FinalBid  decimal.NullDecimal `json:"final_bid"`
		SettledAt time.Time           `json:"settled_at"`
	} `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}
