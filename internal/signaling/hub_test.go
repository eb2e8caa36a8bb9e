package signaling

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/solocast/backend/internal/models"
)

func newTestHub(announceReplaced bool) *Hub {
	return NewHub(NewDirectory(), nil, announceReplaced)
}

func newTestClient(h *Hub) *Client {
	c := &Client{
		hub:  h,
		send: make(chan []byte, 16),
		id:   uuid.New(),
	}
	h.addClient(c)
	return c
}

// recv pops one pending message or fails the test.
func recv(t *testing.T, c *Client) models.SignalMessage {
	t.Helper()
	select {
	case b := <-c.send:
		var msg models.SignalMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("undecodable message %q: %v", b, err)
		}
		return msg
	default:
		t.Fatal("no pending message")
		return models.SignalMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("unexpected message: %s", b)
	default:
	}
}

func TestBroadcasterAnnouncement(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w1 := newTestClient(h)
	w2 := newTestClient(h)

	h.HandleBroadcaster(b, "alice")

	for _, c := range []*Client{w1, w2} {
		msg := recv(t, c)
		if msg.Event != models.EventBroadcaster {
			t.Fatalf("expected broadcaster announcement, got %q", msg.Event)
		}
		var announce models.BroadcastAnnounce
		if err := json.Unmarshal(msg.Payload, &announce); err != nil || announce.StreamName != "alice" {
			t.Fatalf("unexpected announcement payload %s", msg.Payload)
		}
	}
	assertNoMessage(t, b)
}

func TestWatcherStreamNameMatching(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w := newTestClient(h)

	// No broadcaster yet
	h.HandleWatcher(w, "alice")
	if msg := recv(t, w); msg.Event != models.EventNoBroadcaster {
		t.Fatalf("expected no-broadcaster, got %q", msg.Event)
	}

	h.HandleBroadcaster(b, "alice")
	recv(t, w) // announcement

	// Mismatch never falls back to the live stream
	h.HandleWatcher(w, "bob")
	if msg := recv(t, w); msg.Event != models.EventNoBroadcaster {
		t.Fatalf("expected no-broadcaster on mismatch, got %q", msg.Event)
	}
	assertNoMessage(t, b)

	// Exact match forwards the watcher id to the broadcaster
	h.HandleWatcher(w, "alice")
	msg := recv(t, b)
	if msg.Event != models.EventWatcher {
		t.Fatalf("expected watcher event, got %q", msg.Event)
	}
	var watcherID string
	if err := json.Unmarshal(msg.Payload, &watcherID); err != nil || watcherID != w.id.String() {
		t.Fatalf("unexpected watcher payload %s", msg.Payload)
	}
	assertNoMessage(t, w)
}

func TestWatcherUnnamedSessionAcceptsAnyRequest(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b, "")
	recv(t, w)

	for _, requested := range []string{"", "whatever"} {
		h.HandleWatcher(w, requested)
		if msg := recv(t, b); msg.Event != models.EventWatcher {
			t.Fatalf("request %q: expected watcher event, got %q", requested, msg.Event)
		}
		assertNoMessage(t, w)
	}
}

func TestRelayRewritesSender(t *testing.T) {
	h := newTestHub(false)
	sender := newTestClient(h)
	dest := newTestClient(h)

	// The caller claims to be someone else; the relay must stamp the
	// verified connection id.
	spoofed := uuid.New().String()
	raw := fmt.Sprintf(
		`{"event":"offer","payload":{"to":%q,"from":%q,"data":{"sdp":"v=0"}}}`,
		dest.id, spoofed,
	)
	sender.handleMessage([]byte(raw))

	msg := recv(t, dest)
	if msg.Event != models.EventOffer {
		t.Fatalf("expected offer, got %q", msg.Event)
	}
	var relay models.SignalRelay
	if err := json.Unmarshal(msg.Payload, &relay); err != nil {
		t.Fatalf("bad relay payload: %v", err)
	}
	if relay.From != sender.id.String() {
		t.Fatalf("sender id not rewritten: got %q, want %q", relay.From, sender.id)
	}
	if string(relay.Data) != `{"sdp":"v=0"}` {
		t.Fatalf("payload not forwarded verbatim: %s", relay.Data)
	}
}

func TestRelayDropsUnknownDestination(t *testing.T) {
	h := newTestHub(false)
	sender := newTestClient(h)

	h.Relay(sender, models.EventCandidate, uuid.New().String(), json.RawMessage(`{}`))
	h.Relay(sender, models.EventCandidate, "not-a-uuid", json.RawMessage(`{}`))

	assertNoMessage(t, sender)
}

func TestStopBroadcast(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b, "alice")
	recv(t, w)

	// Stop from a non-broadcaster is ignored
	h.HandleStopBroadcast(w)
	assertNoMessage(t, b)

	h.HandleStopBroadcast(b)
	if msg := recv(t, w); msg.Event != models.EventBroadcasterStopped {
		t.Fatalf("expected broadcaster-stopped, got %q", msg.Event)
	}

	// Duplicate stop is harmless
	h.HandleStopBroadcast(b)
	assertNoMessage(t, w)
}

func TestBroadcasterDisconnect(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w1 := newTestClient(h)
	w2 := newTestClient(h)

	h.HandleBroadcaster(b, "alice")
	recv(t, w1)
	recv(t, w2)

	h.removeClient(b)

	for _, w := range []*Client{w1, w2} {
		if msg := recv(t, w); msg.Event != models.EventBroadcasterStopped {
			t.Fatalf("expected broadcaster-stopped, got %q", msg.Event)
		}
		assertNoMessage(t, w)
	}

	// The session is gone
	h.HandleWatcher(w1, "alice")
	if msg := recv(t, w1); msg.Event != models.EventNoBroadcaster {
		t.Fatalf("expected no-broadcaster after disconnect, got %q", msg.Event)
	}
}

func TestWatcherDisconnectNotifiesBroadcaster(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b, "alice")
	recv(t, w)

	h.removeClient(w)

	msg := recv(t, b)
	if msg.Event != models.EventDisconnectPeer {
		t.Fatalf("expected disconnectPeer, got %q", msg.Event)
	}
	var peerID string
	if err := json.Unmarshal(msg.Payload, &peerID); err != nil || peerID != w.id.String() {
		t.Fatalf("unexpected disconnectPeer payload %s", msg.Payload)
	}
}

func TestBroadcasterReplacementSilentByDefault(t *testing.T) {
	h := newTestHub(false)
	b1 := newTestClient(h)
	b2 := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b1, "alice")
	recv(t, w)
	recv(t, b2)

	h.HandleBroadcaster(b2, "bob")

	msg := recv(t, w)
	if msg.Event != models.EventBroadcaster {
		t.Fatalf("expected only the new announcement, got %q", msg.Event)
	}
	assertNoMessage(t, w)

	if id, _, ok := h.directory.Broadcaster(); !ok || id != b2.id {
		t.Fatal("broadcaster slot not transferred")
	}
}

func TestBroadcasterReplacementAnnounced(t *testing.T) {
	h := newTestHub(true)
	b1 := newTestClient(h)
	b2 := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b1, "alice")
	recv(t, w)
	recv(t, b2)

	h.HandleBroadcaster(b2, "bob")

	if msg := recv(t, w); msg.Event != models.EventBroadcasterStopped {
		t.Fatalf("expected broadcaster-stopped first, got %q", msg.Event)
	}
	if msg := recv(t, w); msg.Event != models.EventBroadcaster {
		t.Fatalf("expected new announcement, got %q", msg.Event)
	}
}

func TestRecordingReadyOnlyFromBroadcaster(t *testing.T) {
	h := newTestHub(false)
	b := newTestClient(h)
	w := newTestClient(h)

	h.HandleBroadcaster(b, "alice")
	recv(t, w)

	url := "/recordings/screen/recording-alice.mp4"

	// A watcher cannot announce recordings
	h.HandleRecordingReady(w, &url)
	assertNoMessage(t, b)

	h.HandleRecordingReady(b, &url)
	msg := recv(t, w)
	if msg.Event != models.EventRecordingReady {
		t.Fatalf("expected recording-ready, got %q", msg.Event)
	}
	var ready models.RecordingReady
	if err := json.Unmarshal(msg.Payload, &ready); err != nil {
		t.Fatalf("bad recording-ready payload: %v", err)
	}
	if ready.OutputURL == nil || *ready.OutputURL != url {
		t.Fatalf("output url not forwarded: %+v", ready)
	}
	if ready.StreamName != "alice" {
		t.Fatalf("stream name not stamped: %+v", ready)
	}
}
