package websocket

import (
	"context"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// SendBuffer is the outbound queue length of each client.
	SendBuffer = 32

	queueSize = 256
)

// Hub keeps the registry of connected clients grouped in rooms, one room per auction.
// All registry mutations happen on the Run goroutine.
type Hub struct {
	// room -> clients; the bool is ignored
	rooms      map[string]map[*Client]bool
	broadcast chan *Message
	// joins and leaves share one queue so they apply in call order
	members chan membership
	// InboundMessages is consumed by the module handlers (e.g. the auction handler)
	InboundMessages chan *ClientMessage
}

// Client represents a single websocket connection.
type Client struct {
	Hub *Hub
	// nil in tests that drive the hub directly
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// Room is the auction this client watches.
	Room string
	ID   string
	// Remote address captured at connect time.
	Addr string
}

type membership struct {
	client *Client
	join   bool
}

type Message struct {
	Room string
	Data []byte
}

// ClientMessage wraps a frame read from a client so handlers can reply to it.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:       make(chan *Message, queueSize),
		members:         make(chan membership, queueSize),
		rooms:           make(map[string]map[*Client]bool),
		InboundMessages: make(chan *ClientMessage, queueSize),
	}
}

// NewClient builds a client for conn watching room.
func NewClient(h *Hub, conn *websocket.Conn, room, id string) *Client {
	c := &Client{Hub: h, Conn: conn, Send: make(chan []byte, SendBuffer), Room: room, ID: id}
	if conn != nil {
		c.Addr = conn.RemoteAddr().String()
	}
	return c
}

func (h *Hub) clientCount() int {
	count := 0
	for _, clients := range h.rooms {
		count += len(clients)
	}
	return count
}

func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.rooms, client.Room)
		log.Debug("Auction room removed as empty", zap.String("room", client.Room))
	}
}

// Run serves the hub channels until ctx is done, then closes every client send channel.
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket hub started")
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					h.drop(client)
				}
			}
			log.Info("Websocket hub stopped")
			return

		case m := <-h.members:
			h.apply(m)

		case message := <-h.broadcast:
			h.drainMembership()
			clients := h.rooms[message.Room]
			log.Debug("Broadcasting to room", zap.String("room", message.Room), zap.Int("clients", len(clients)))
			for client := range clients {
				select {
				case client.Send <- message.Data:
				default:
					// slow consumer
					h.drop(client)
					log.Warn("Client send queue full, unregistering",
						zap.String("clientID", client.ID),
						zap.String("room", client.Room),
						zap.String("remote_addr", client.Addr),
					)
				}
			}
		}
	}
}

// drainMembership applies queued registrations first so a client registered before a broadcast
// was queued receives it.
func (h *Hub) drainMembership() {
	for {
		select {
		case m := <-h.members:
			h.apply(m)
		default:
			return
		}
	}
}

func (h *Hub) apply(m membership) {
	if m.join {
		h.add(m.client)
		return
	}
	h.drop(m.client)
	log.Info("Client unregistered",
		zap.String("clientID", m.client.ID),
		zap.String("room", m.client.Room),
		zap.Int("total_clients", h.clientCount()),
	)
}

func (h *Hub) add(client *Client) {
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	log.Info("Client registered",
		zap.String("clientID", client.ID),
		zap.String("room", client.Room),
		zap.String("remote_addr", client.Addr),
		zap.Int("total_clients", h.clientCount()),
	)
}

func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.members <- membership{client: client, join: true}:
	default:
		log.Error("Register queue is full, client registration failed",
			zap.String("clientID", client.ID),
			zap.String("room", client.Room),
		)
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.members <- membership{client: client}:
	default:
		log.Error("Unregister queue is full",
			zap.String("clientID", client.ID),
			zap.String("room", client.Room),
		)
	}
}

// BroadcastToRoom queues data for every client in room. It never blocks; a full queue drops the message.
func (h *Hub) BroadcastToRoom(room string, data []byte) {
	select {
	case h.broadcast <- &Message{Room: room, Data: data}:
	default:
		log.Error("Broadcast queue is full, message dropped", zap.String("room", room))
	}
}

// ReadPump forwards client frames to InboundMessages. One goroutine per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
		log.Debug("ReadPump stopped", zap.String("clientID", c.ID), zap.String("room", c.Room))
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Websocket read error",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.String("remote_addr", c.Addr),
					zap.Error(err),
				)
			}
			return
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			// handlers are not keeping up
			log.Error("Inbound queue is full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("room", c.Room),
			)
		}
	}
}

// WritePump writes queued messages and pings to the connection. It is the only writer of c.Conn.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
		log.Debug("WritePump stopped", zap.String("clientID", c.ID), zap.String("room", c.Room))
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			if err != nil {
				log.Warn("Failed to send close frame", zap.String("clientID", c.ID), zap.Error(err))
			}
			return

		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn("Failed to write ping", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
