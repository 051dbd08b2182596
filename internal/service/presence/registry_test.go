package presence

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"
)

func newTestRegistry() *Registry {
	log := slog.Default()
	return NewRegistry(NewBroadcaster(log), log)
}

func newTestClient(userID string) *Client {
	return NewClient(nil, userID, slog.Default())
}

func drainLastEvent(t *testing.T, c *Client) Event {
	t.Helper()
	var payload []byte
	for {
		select {
		case p := <-c.Outbox():
			payload = p
		default:
			if payload == nil {
				t.Fatal("no event queued")
			}
			var evt Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			return evt
		}
	}
}

func TestSnapshotReflectsRegistrations(t *testing.T) {
	r := newTestRegistry()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	r.Register(alice)
	r.Register(bob)

	got := r.Snapshot()
	want := []string{"alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot: got %v want %v", got, want)
	}

	r.Unregister(alice)
	got = r.Snapshot()
	want = []string{"bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot after unregister: got %v want %v", got, want)
	}
}

func TestRegisterIsLastWriterWins(t *testing.T) {
	r := newTestRegistry()

	first := newTestClient("bob")
	second := newTestClient("bob")
	r.Register(first)
	r.Register(second)

	current, ok := r.Lookup("bob")
	if !ok {
		t.Fatal("expected bob to be registered")
	}
	if current != second {
		t.Fatal("expected the newest connection to win")
	}
	if got := r.Snapshot(); len(got) != 1 {
		t.Fatalf("expected exactly one entry for bob, got %v", got)
	}
}

func TestStaleUnregisterIsNoOp(t *testing.T) {
	r := newTestRegistry()

	first := newTestClient("bob")
	second := newTestClient("bob")
	r.Register(first)
	r.Register(second)

	// The delayed disconnect of the superseded handle must not evict the
	// newer connection.
	r.Unregister(first)

	current, ok := r.Lookup("bob")
	if !ok || current != second {
		t.Fatal("stale unregister evicted the active connection")
	}
}

func TestLookupAbsentUser(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.Lookup("nobody"); ok {
		t.Fatal("expected lookup miss for unknown user")
	}
}

func TestAnnounceReachesEveryConnection(t *testing.T) {
	r := newTestRegistry()

	alice := newTestClient("alice")
	r.Register(alice)
	bob := newTestClient("bob")
	r.Register(bob)

	for _, c := range []*Client{alice, bob} {
		evt := drainLastEvent(t, c)
		if evt.Event != EventOnlineUsers {
			t.Fatalf("expected %s event, got %s", EventOnlineUsers, evt.Event)
		}
		data, ok := evt.Data.([]interface{})
		if !ok || len(data) != 2 {
			t.Fatalf("expected two online users, got %v", evt.Data)
		}
	}
}

func TestAnnounceOnUnregister(t *testing.T) {
	r := newTestRegistry()

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	r.Register(alice)
	r.Register(bob)
	r.Unregister(bob)

	evt := drainLastEvent(t, alice)
	if evt.Event != EventOnlineUsers {
		t.Fatalf("expected %s event, got %s", EventOnlineUsers, evt.Event)
	}
	data, ok := evt.Data.([]interface{})
	if !ok || len(data) != 1 || data[0] != "alice" {
		t.Fatalf("expected online set [alice], got %v", evt.Data)
	}
}

func TestClientHandleAttributes(t *testing.T) {
	first := newTestClient("alice")
	second := newTestClient("alice")

	if first.UserID() != "alice" {
		t.Fatalf("expected owner alice, got %q", first.UserID())
	}
	if first.ID() == "" || first.ID() == second.ID() {
		t.Fatalf("expected distinct connection identifiers, got %q and %q", first.ID(), second.ID())
	}
	if first.CreatedAt().IsZero() {
		t.Fatal("expected creation timestamp to be set")
	}
}

func TestPushDropsWhenOutboxFull(t *testing.T) {
	c := newTestClient("alice")
	for i := 0; i < outboxSize; i++ {
		if !c.Push(EventNotification, i) {
			t.Fatalf("push %d unexpectedly dropped", i)
		}
	}
	if c.Push(EventNotification, "overflow") {
		t.Fatal("expected push to drop once the outbox is full")
	}
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	c := newTestClient("alice")
	c.Close()
	if c.Push(EventNotification, "late") {
		t.Fatal("expected push to a closed connection to be dropped")
	}
}
