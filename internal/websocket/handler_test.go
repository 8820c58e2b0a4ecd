package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"room-chat-backend/internal/hub"
	"room-chat-backend/internal/store"
)

type memoryGateway struct {
	mu       sync.Mutex
	messages map[string][]store.Message
	seq      int64
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{messages: make(map[string][]store.Message)}
}

func (m *memoryGateway) UpsertRoom(ctx context.Context, name string) error { return nil }

func (m *memoryGateway) CreateUser(ctx context.Context, username, room, connectionID string) error {
	return nil
}

func (m *memoryGateway) DeleteUserByConnection(ctx context.Context, connectionID string) error {
	return nil
}

func (m *memoryGateway) CreateMessage(ctx context.Context, room, username, body string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg := store.Message{
		ID:        fmt.Sprintf("msg-%d", m.seq),
		Room:      room,
		Username:  username,
		Body:      body,
		Timestamp: time.Date(2024, 1, 3, 12, 0, int(m.seq), 0, time.UTC),
		Seq:       m.seq,
	}
	m.messages[room] = append(m.messages[room], msg)
	return msg, nil
}

func (m *memoryGateway) ListRecentMessages(ctx context.Context, room string, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]store.Message(nil), m.messages[room]...)
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func setupWebsocketServer(t *testing.T, origins ...string) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(newMemoryGateway())
	handler := NewHandler(h, origins)
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	frame := map[string]any{"type": typ}
	if data != nil {
		frame["data"] = data
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if frame.Type == typ {
			return frame
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, username, room string) {
	t.Helper()
	sendFrame(t, conn, FrameJoinRoom, JoinRoomReq{Room: room, Username: username})
	readUntil(t, conn, string(hub.EventHistory))
}

func TestJoinReceivesHistoryAndPresence(t *testing.T) {
	srv, _ := setupWebsocketServer(t)
	alice := dial(t, srv)

	sendFrame(t, alice, FrameJoinRoom, JoinRoomReq{Room: "general", Username: "alice"})

	history := readUntil(t, alice, string(hub.EventHistory))
	var messages []store.Message
	if err := json.Unmarshal(history.Data, &messages); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history, got %d", len(messages))
	}

	presence := readUntil(t, alice, string(hub.EventPresence))
	var payload hub.PresencePayload
	if err := json.Unmarshal(presence.Data, &payload); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if payload.Count != 1 || payload.Usernames[0] != "alice" {
		t.Fatalf("unexpected presence %+v", payload)
	}
}

func TestChatMessageReachesRoom(t *testing.T) {
	srv, _ := setupWebsocketServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	join(t, alice, "alice", "general")
	join(t, bob, "bob", "general")

	// Room and username in the payload are ignored.
	sendFrame(t, alice, FrameChatMessage, map[string]string{
		"message":  "hello",
		"room":     "random",
		"username": "mallory",
	})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		frame := readUntil(t, conn, string(hub.EventMessage))
		var msg hub.MessagePayload
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			t.Fatalf("%s: decode message: %v", name, err)
		}
		if msg.Body != "hello" || msg.Username != "alice" {
			t.Fatalf("%s: unexpected message %+v", name, msg)
		}
		if msg.ID == "" || msg.Timestamp.IsZero() {
			t.Fatalf("%s: expected store id and timestamp", name)
		}
		readUntil(t, conn, string(hub.EventStopTyping))
	}
}

func TestTypingFramesGoToOthers(t *testing.T) {
	srv, _ := setupWebsocketServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	join(t, alice, "alice", "general")
	join(t, bob, "bob", "general")

	sendFrame(t, alice, FrameTyping, nil)

	frame := readUntil(t, bob, string(hub.EventTyping))
	var payload hub.TypingPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if payload.Username != "alice" {
		t.Fatalf("unexpected typist %q", payload.Username)
	}

	sendFrame(t, alice, FrameStopTyping, nil)
	readUntil(t, bob, string(hub.EventStopTyping))
}

func TestInvalidFrameGetsErrorAndKeepsConnection(t *testing.T) {
	srv, _ := setupWebsocketServer(t)
	alice := dial(t, srv)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readUntil(t, alice, string(EventError))
	var res ErrorRes
	if err := json.Unmarshal(frame.Data, &res); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if res.Message != "invalid frame" {
		t.Fatalf("unexpected error message %q", res.Message)
	}

	sendFrame(t, alice, "shout", nil)
	readUntil(t, alice, string(EventError))

	join(t, alice, "alice", "general")
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	srv, h := setupWebsocketServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	join(t, alice, "alice", "general")
	join(t, bob, "bob", "general")

	alice.Close()

	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame Frame
		if err := bob.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for presence: %v", err)
		}
		if frame.Type != string(hub.EventPresence) {
			continue
		}
		var payload hub.PresencePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			t.Fatalf("decode presence: %v", err)
		}
		if payload.Count == 1 {
			break
		}
	}
	if got := h.Presence("general"); got.Count != 1 || got.Usernames[0] != "bob" {
		t.Fatalf("unexpected presence %+v", got)
	}
}

func TestRejectsUnknownOrigin(t *testing.T) {
	srv, _ := setupWebsocketServer(t, "http://localhost:3000")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	conn.Close()
}

func TestSendClosesSlowClient(t *testing.T) {
	cl := &WSClient{
		Message: make(chan hub.Event, 1),
		ID:      "slow",
		done:    make(chan struct{}),
	}

	if err := cl.Send(hub.Event{Type: hub.EventTyping}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := cl.Send(hub.Event{Type: hub.EventTyping}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	select {
	case <-cl.done:
	default:
		t.Fatal("expected client to be closed")
	}
	if err := cl.Send(hub.Event{Type: hub.EventTyping}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed after close, got %v", err)
	}
}

func TestCheckOrigin(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"http://a"}, origin: "", want: true},
		{name: "empty list", allowed: nil, origin: "http://b", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://b", want: true},
		{name: "match", allowed: []string{"http://a", "http://b"}, origin: "http://b", want: true},
		{name: "mismatch", allowed: []string{"http://a"}, origin: "http://b", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := checkOrigin(tc.allowed)(req); got != tc.want {
				t.Fatalf("checkOrigin = %v, want %v", got, tc.want)
			}
		})
	}
}
