package signaling

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/solocast/backend/internal/metrics"
	"github.com/solocast/backend/internal/models"
)

// Hub owns the set of live signaling connections and relays handshake
// messages between them. All session state lives in the Directory; the
// hub never inspects offer/answer/candidate payloads.
type Hub struct {
	directory *Directory
	metrics   *metrics.Metrics

	// Registered clients
	clients map[uuid.UUID]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// announceReplaced emits a broadcaster-stopped notification before a
	// replacement announcement. Off by default: the original protocol
	// superseded broadcasters silently.
	announceReplaced bool
}

// NewHub creates a new Hub around the given directory. metrics may be nil.
func NewHub(directory *Directory, m *metrics.Metrics, announceReplaced bool) *Hub {
	return &Hub{
		directory:        directory,
		metrics:          m,
		clients:          make(map[uuid.UUID]*Client),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		announceReplaced: announceReplaced,
	}
}

// Run starts the hub's registration loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.directory.Register(client.id)
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	log.Printf("Client connected: %s", client.id)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	h.mu.Unlock()
	close(client.send)
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	log.Printf("Client disconnected: %s", client.id)

	if h.directory.Remove(client.id) {
		// The broadcaster is gone; end the session for everyone.
		h.broadcastExcept(client.id, models.OutMessage{Event: models.EventBroadcasterStopped})
		log.Printf("Broadcaster stopped (disconnect): %s", client.id)
		return
	}

	// A watcher left; tell the broadcaster so it can release the peer.
	if broadcasterID, _, ok := h.directory.Broadcaster(); ok {
		h.sendTo(broadcasterID, models.OutMessage{
			Event:   models.EventDisconnectPeer,
			Payload: client.id.String(),
		})
	}
}

// HandleBroadcaster processes a "broadcaster" declaration: the caller
// takes the single broadcaster slot, replacing any prior holder, and
// availability is announced to every other connection.
func (h *Hub) HandleBroadcaster(c *Client, streamName string) {
	replaced, hadPrior := h.directory.SetBroadcaster(c.id, streamName)

	if hadPrior && replaced != c.id && h.announceReplaced {
		h.broadcastExcept(c.id, models.OutMessage{Event: models.EventBroadcasterStopped})
	}

	log.Printf("Broadcaster is: %s stream: %q", c.id, streamName)
	h.broadcastExcept(c.id, models.OutMessage{
		Event:   models.EventBroadcaster,
		Payload: models.BroadcastAnnounce{StreamName: streamName},
	})
}

// HandleStopBroadcast ends the session if the caller holds the slot.
// Requests from anyone else are ignored.
func (h *Hub) HandleStopBroadcast(c *Client) {
	if !h.directory.ClearBroadcaster(c.id) {
		return
	}
	h.broadcastExcept(c.id, models.OutMessage{Event: models.EventBroadcasterStopped})
	log.Printf("Broadcaster stopped via stop-broadcast: %s", c.id)
}

// HandleWatcher validates a watch request against the live session and,
// on a match, forwards the requester's id to the broadcaster. The hub
// takes no further part in the handshake.
func (h *Hub) HandleWatcher(c *Client, streamName string) {
	broadcasterID, sessionName, ok := h.directory.Broadcaster()
	if !ok {
		h.sendTo(c.id, models.OutMessage{Event: models.EventNoBroadcaster})
		return
	}

	// A named session admits exact matches only; an unnamed session
	// admits any request. A mismatch never falls back to the live stream.
	if sessionName != "" && streamName != sessionName {
		log.Printf("Watcher %s requested stream %q but active stream is %q - denying", c.id, streamName, sessionName)
		h.sendTo(c.id, models.OutMessage{Event: models.EventNoBroadcaster})
		return
	}

	h.directory.SetWatcher(c.id)
	h.sendTo(broadcasterID, models.OutMessage{
		Event:   models.EventWatcher,
		Payload: c.id.String(),
	})
}

// Relay forwards an offer, answer, or candidate to the named
// destination, stamping the verified sender id. A malformed or unknown
// destination drops the message: the peer may simply be gone already.
func (h *Hub) Relay(c *Client, event, to string, data json.RawMessage) {
	destID, err := uuid.Parse(to)
	if err != nil {
		h.dropRelay()
		return
	}

	delivered := h.sendTo(destID, models.OutMessage{
		Event: event,
		Payload: models.SignalRelay{
			From: c.id.String(),
			Data: data,
		},
	})
	if !delivered {
		h.dropRelay()
	}
}

// HandleRecordingReady broadcasts a recording announcement stamped with
// the session's stream name. Only the current broadcaster may emit it.
func (h *Hub) HandleRecordingReady(c *Client, outputURL *string) {
	broadcasterID, sessionName, ok := h.directory.Broadcaster()
	if !ok || broadcasterID != c.id {
		return
	}
	h.broadcastExcept(c.id, models.OutMessage{
		Event: models.EventRecordingReady,
		Payload: models.RecordingReady{
			OutputURL:  outputURL,
			StreamName: sessionName,
		},
	})
	log.Printf("Notified viewers about recording from %s", c.id)
}

// sendTo delivers msg to one connection. It reports false when the
// connection no longer exists; a full send buffer drops the message.
func (h *Hub) sendTo(id uuid.UUID, msg models.OutMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case client.send <- data:
	default:
		// Client's send channel is full, skip
	}
	return true
}

// broadcastExcept delivers msg to every connection except the named one.
func (h *Hub) broadcastExcept(except uuid.UUID, msg models.OutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		if id == except {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, skip
		}
	}
}

func (h *Hub) dropRelay() {
	if h.metrics != nil {
		h.metrics.IncRelayDrop()
	}
}

func (h *Hub) countEvent(event string) {
	if h.metrics != nil {
		h.metrics.IncSignalEvent(event)
	}
}
