package signaling

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestDirectorySingleBroadcasterSlot(t *testing.T) {
	d := NewDirectory()

	first := uuid.New()
	second := uuid.New()
	d.Register(first)
	d.Register(second)

	if _, hadPrior := d.SetBroadcaster(first, "alice"); hadPrior {
		t.Fatal("expected no prior broadcaster")
	}

	id, name, ok := d.Broadcaster()
	if !ok || id != first || name != "alice" {
		t.Fatalf("unexpected broadcaster: %v %q %v", id, name, ok)
	}

	replaced, hadPrior := d.SetBroadcaster(second, "bob")
	if !hadPrior || replaced != first {
		t.Fatalf("expected replacement of %v, got %v (hadPrior=%v)", first, replaced, hadPrior)
	}

	id, name, ok = d.Broadcaster()
	if !ok || id != second || name != "bob" {
		t.Fatalf("unexpected broadcaster after replacement: %v %q %v", id, name, ok)
	}
	if d.IsBroadcaster(first) {
		t.Fatal("replaced connection still reported as broadcaster")
	}
}

func TestDirectoryClearBroadcasterIdempotent(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	d.Register(id)
	d.SetBroadcaster(id, "")

	if !d.ClearBroadcaster(id) {
		t.Fatal("first clear should succeed")
	}
	if d.ClearBroadcaster(id) {
		t.Fatal("second clear should be a no-op")
	}
	if _, _, ok := d.Broadcaster(); ok {
		t.Fatal("broadcaster slot should be empty")
	}
}

func TestDirectoryClearRejectsNonHolder(t *testing.T) {
	d := NewDirectory()
	holder := uuid.New()
	other := uuid.New()
	d.Register(holder)
	d.Register(other)
	d.SetBroadcaster(holder, "alice")

	if d.ClearBroadcaster(other) {
		t.Fatal("non-holder cleared the broadcaster slot")
	}
	if id, _, ok := d.Broadcaster(); !ok || id != holder {
		t.Fatal("broadcaster slot changed unexpectedly")
	}
}

func TestDirectoryRemoveClearsSlot(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()
	d.Register(id)
	d.SetBroadcaster(id, "alice")

	if !d.Remove(id) {
		t.Fatal("Remove should report the broadcaster left")
	}
	if _, _, ok := d.Broadcaster(); ok {
		t.Fatal("broadcaster slot should be empty after removal")
	}
	if d.Remove(id) {
		t.Fatal("second Remove should not report a broadcaster")
	}
}

func TestDirectoryConcurrentDeclarations(t *testing.T) {
	d := NewDirectory()

	const n = 32
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		d.Register(ids[i])
	}

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			d.SetBroadcaster(id, id.String())
		}(ids[i])
	}
	wg.Wait()

	winner, name, ok := d.Broadcaster()
	if !ok {
		t.Fatal("expected a broadcaster to hold the slot")
	}
	if name != winner.String() {
		t.Fatalf("slot holds id %v but stream name %q", winner, name)
	}

	found := false
	for _, id := range ids {
		if id == winner {
			found = true
		} else if d.IsBroadcaster(id) {
			t.Fatalf("two connections hold the broadcaster slot: %v and %v", winner, id)
		}
	}
	if !found {
		t.Fatalf("winner %v is not one of the declared connections", winner)
	}
}
