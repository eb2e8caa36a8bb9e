package signaling

import (
	"sync"

	"github.com/google/uuid"
)

// Role classifies a live connection.
type Role int

const (
	RoleUnassigned Role = iota
	RoleBroadcaster
	RoleWatcher
)

// Directory is the process-wide table of live connections and the
// single broadcaster slot. Every mutation is atomic under one lock, so
// "who is the broadcaster" is never observed half-updated.
type Directory struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Role

	broadcasterID uuid.UUID
	streamName    string
	live          bool
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		conns: make(map[uuid.UUID]Role),
	}
}

// Register records a new connection with no role.
func (d *Directory) Register(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[id] = RoleUnassigned
}

// SetBroadcaster assigns the broadcaster slot to id with the given
// stream name, replacing any prior holder. It returns the replaced
// connection id and whether a prior broadcaster existed.
func (d *Directory) SetBroadcaster(id uuid.UUID, streamName string) (replaced uuid.UUID, hadPrior bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.live {
		replaced = d.broadcasterID
		hadPrior = true
		if _, ok := d.conns[replaced]; ok {
			d.conns[replaced] = RoleUnassigned
		}
	}

	d.conns[id] = RoleBroadcaster
	d.broadcasterID = id
	d.streamName = streamName
	d.live = true
	return replaced, hadPrior
}

// SetWatcher marks id as a watcher. The broadcaster slot is never
// touched here: watch requests must not end a live session.
func (d *Directory) SetWatcher(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live && d.broadcasterID == id {
		return
	}
	d.conns[id] = RoleWatcher
}

// Broadcaster returns the current broadcaster connection id and stream
// name, or ok=false when no session is live.
func (d *Directory) Broadcaster() (id uuid.UUID, streamName string, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.live {
		return uuid.UUID{}, "", false
	}
	return d.broadcasterID, d.streamName, true
}

// IsBroadcaster reports whether id currently holds the broadcaster slot.
func (d *Directory) IsBroadcaster(id uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.live && d.broadcasterID == id
}

// ClearBroadcaster releases the slot if id holds it. It returns false
// when id is not the current broadcaster, which makes duplicate stop
// requests harmless.
func (d *Directory) ClearBroadcaster(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.live || d.broadcasterID != id {
		return false
	}
	d.live = false
	d.streamName = ""
	if _, ok := d.conns[id]; ok {
		d.conns[id] = RoleUnassigned
	}
	return true
}

// Remove deletes the connection and reports whether it held the
// broadcaster slot, which is cleared as part of the same mutation.
func (d *Directory) Remove(id uuid.UUID) (wasBroadcaster bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, id)
	if d.live && d.broadcasterID == id {
		d.live = false
		d.streamName = ""
		return true
	}
	return false
}

// Len returns the number of registered connections.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
