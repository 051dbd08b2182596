package ws

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bitmitra/realtime/internal/service/presence"
)

func setupServer(t *testing.T) (*httptest.Server, *presence.Registry) {
	t.Helper()
	log := slog.Default()
	registry := presence.NewRegistry(presence.NewBroadcaster(log), log)

	r := chi.NewRouter()
	New(registry, log).RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, registry
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readOnlineUsers(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var evt struct {
			Event string   `json:"event"`
			Data  []string `json:"data"`
		}
		if err := json.Unmarshal(payload, &evt); err != nil {
			continue
		}
		if evt.Event == presence.EventOnlineUsers {
			sort.Strings(evt.Data)
			return evt.Data
		}
	}
}

func waitForSnapshot(t *testing.T, registry *presence.Registry, want []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reflect.DeepEqual(registry.Snapshot(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("snapshot never reached %v, got %v", want, registry.Snapshot())
}

func TestConnectReceivesOnlineSet(t *testing.T) {
	server, registry := setupServer(t)

	alice := dial(t, server, "alice")
	if got := readOnlineUsers(t, alice); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("expected [alice], got %v", got)
	}
	if got := registry.Snapshot(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("snapshot: got %v", got)
	}
}

func TestSecondConnectionAnnouncedToEveryone(t *testing.T) {
	server, _ := setupServer(t)

	alice := dial(t, server, "alice")
	readOnlineUsers(t, alice)

	bob := dial(t, server, "bob")
	want := []string{"alice", "bob"}
	if got := readOnlineUsers(t, alice); !reflect.DeepEqual(got, want) {
		t.Fatalf("alice: expected %v, got %v", want, got)
	}
	if got := readOnlineUsers(t, bob); !reflect.DeepEqual(got, want) {
		t.Fatalf("bob: expected %v, got %v", want, got)
	}
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	server, registry := setupServer(t)

	alice := dial(t, server, "alice")
	readOnlineUsers(t, alice)
	bob := dial(t, server, "bob")
	readOnlineUsers(t, bob)

	bob.Close()
	waitForSnapshot(t, registry, []string{"alice"})

	if got := readOnlineUsers(t, alice); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("expected [alice] after bob left, got %v", got)
	}
}

func TestPingKeepalive(t *testing.T) {
	server, _ := setupServer(t)

	alice := dial(t, server, "alice")
	readOnlineUsers(t, alice)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := alice.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(payload) == "pong" {
			return
		}
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	server, registry := setupServer(t)

	first := dial(t, server, "bob")
	readOnlineUsers(t, first)

	// Reconnect without closing the first transport: exactly one entry for
	// bob must remain, held by the newest handle.
	second := dial(t, server, "bob")
	if got := readOnlineUsers(t, second); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("expected [bob], got %v", got)
	}
	if got := registry.Snapshot(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("snapshot: got %v", got)
	}

	// Closing the superseded transport fires a stale unregister; bob must
	// stay online.
	first.Close()
	time.Sleep(50 * time.Millisecond)
	if got := registry.Snapshot(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("stale disconnect took bob offline: %v", got)
	}
}
