package signaling

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/solocast/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers run a few KB;
	// 64KB leaves room for bundled candidates.
	maxMessageSize = 65536
)

// Client represents one signaling connection. The id is server-assigned
// and is the only identity the relay ever trusts.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   uuid.UUID

	limiter *rate.Limiter
}

// NewClient creates a client around an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, eventsPerSec int) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		id:      uuid.New(),
		limiter: rate.NewLimiter(rate.Limit(eventsPerSec), eventsPerSec*2),
	}
}

// ID returns the server-assigned connection id.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// ReadPump pumps messages from the WebSocket connection into the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError("rate_limited")
			continue
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// The hub closed the channel
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

// handleMessage dispatches one inbound signaling message.
func (c *Client) handleMessage(data []byte) {
	var msg models.SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	c.hub.countEvent(msg.Event)

	switch msg.Event {
	case models.EventBroadcaster:
		var decl models.BroadcastDeclaration
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &decl); err != nil {
				c.sendError("Invalid broadcaster payload")
				return
			}
		}
		c.hub.HandleBroadcaster(c, strings.TrimSpace(decl.StreamName))

	case models.EventStopBroadcast:
		c.hub.HandleStopBroadcast(c)

	case models.EventWatcher:
		var req models.WatchRequest
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				c.sendError("Invalid watcher payload")
				return
			}
		}
		c.hub.HandleWatcher(c, strings.TrimSpace(req.StreamName))

	case models.EventOffer, models.EventAnswer, models.EventCandidate:
		var relay models.SignalRelay
		if err := json.Unmarshal(msg.Payload, &relay); err != nil {
			c.sendError("Invalid relay payload")
			return
		}
		c.hub.Relay(c, msg.Event, relay.To, relay.Data)

	case models.EventRecordingReady:
		var ready models.RecordingReady
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &ready); err != nil {
				c.sendError("Invalid recording-ready payload")
				return
			}
		}
		c.hub.HandleRecordingReady(c, ready.OutputURL)

	default:
		c.sendError("Unknown event type")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	errorMsg := models.OutMessage{
		Event:   models.EventError,
		Payload: models.SignalErrorPayload{Message: message},
	}

	data, _ := json.Marshal(errorMsg)
	select {
	case c.send <- data:
	default:
	}
}
