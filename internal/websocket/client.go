package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/turfwar-server/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Recent events sent to a client when it starts watching a match
	snapshotLimit   = 20
	snapshotTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Match activity is public.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one browser watching match activity
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// ClientMessage is what a browser sends: subscribe, unsubscribe or ping
type ClientMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger.With("client_id", id),
	}
}

// readPump decodes client commands until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(errorMessage("invalid message format"))
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.watch(msg.MatchID)
	case MessageTypeUnsubscribe:
		if msg.MatchID == "" {
			return
		}
		c.hub.Unsubscribe(c, msg.MatchID)
		c.enqueue(Message{Type: "unsubscribed", MatchID: msg.MatchID, Data: map[string]string{"status": "ok"}})
	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong})
	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// watch subscribes the client to a match and sends it the match's recent
// activity. Unknown matches are refused. The subscription is requested
// before the snapshot is read, so an event may show up in both.
func (c *Client) watch(matchID string) {
	if matchID == "" {
		c.enqueue(errorMessage("match_id required for subscribe"))
		return
	}

	source := c.hub.activitySource()
	if source == nil {
		c.hub.Subscribe(c, matchID)
		c.enqueue(Message{Type: "subscribed", MatchID: matchID, Data: map[string]string{"status": "ok"}})
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, snapshotTimeout)
	defer cancel()

	if _, err := source.GetMatch(ctx, matchID); err != nil {
		if domain.IsNotFoundError(err) {
			c.enqueue(errorMessage("match not found"))
			return
		}
		c.logger.Warn("failed to look up match", "match_id", matchID, "error", err)
	}

	c.hub.Subscribe(c, matchID)
	c.enqueue(Message{Type: "subscribed", MatchID: matchID, Data: map[string]string{"status": "ok"}})

	events, err := source.Activity(ctx, matchID, snapshotLimit)
	if err != nil {
		c.logger.Warn("failed to load match activity", "match_id", matchID, "error", err)
		return
	}
	c.enqueue(Message{Type: MessageTypeSnapshot, MatchID: matchID, Data: events})
}

// enqueue stamps and queues msg, dropping it if the client is not keeping up
func (c *Client) enqueue(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client buffer full, dropping message", "type", msg.Type)
	}
}

func errorMessage(text string) Message {
	return Message{Type: MessageTypeError, Data: map[string]string{"error": text}}
}

// writePump writes queued messages one JSON document per frame and keeps
// the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and starts the client's pumps
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	client.logger.Debug("new websocket connection")
}
