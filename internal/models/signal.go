package models

import "encoding/json"

// Signaling event types. The client-to-server and server-to-client sets
// overlap: offer/answer/candidate keep their name in both directions,
// with the address field flipped from "to" to "from".
const (
	EventBroadcaster        = "broadcaster"
	EventStopBroadcast      = "stop-broadcast"
	EventBroadcasterStopped = "broadcaster-stopped"
	EventNoBroadcaster      = "no-broadcaster"
	EventWatcher            = "watcher"
	EventOffer              = "offer"
	EventAnswer             = "answer"
	EventCandidate          = "candidate"
	EventDisconnectPeer     = "disconnectPeer"
	EventRecordingReady     = "recording-ready"
	EventError              = "error"
)

// SignalMessage is the wire envelope for every signaling message.
// Inbound payloads stay raw until the event type selects a concrete
// payload struct; outbound payloads are marshaled in place.
type SignalMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutMessage is the server-side envelope used when emitting events.
type OutMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// BroadcastDeclaration is the payload of a client "broadcaster" event.
type BroadcastDeclaration struct {
	StreamName string `json:"streamName"`
}

// BroadcastAnnounce is the payload of the server "broadcaster" event
// announcing a live session to every other connection.
type BroadcastAnnounce struct {
	StreamName string `json:"streamName"`
}

// WatchRequest is the payload of a client "watcher" event.
type WatchRequest struct {
	StreamName string `json:"streamName"`
}

// SignalRelay carries an opaque offer/answer/candidate payload. Clients
// set To; the server replaces any sender claim with the verified
// connection id in From before forwarding. Data is never inspected.
type SignalRelay struct {
	To   string          `json:"to,omitempty"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data"`
}

// RecordingReady announces a finished recording. Only the current
// broadcaster may emit it; the server stamps StreamName on the way out.
type RecordingReady struct {
	OutputURL  *string `json:"outputUrl"`
	StreamName string  `json:"streamName"`
}

type SignalErrorPayload struct {
	Message string `json:"message"`
}
