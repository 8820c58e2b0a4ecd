package hub

import (
	"time"

	"room-chat-backend/internal/store"
)

type EventType string

const (
	EventHistory    EventType = "loadHistory"
	EventMessage    EventType = "chatMessage"
	EventPresence   EventType = "onlineUsers"
	EventSystem     EventType = "systemMessage"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stopTyping"
)

// Event is one egress notification addressed to a single connection.
type Event struct {
	Type EventType
	Data any
}

// Sender delivers events to one live connection. Send must not block; a
// connection that cannot keep up is expected to drop itself.
type Sender interface {
	Send(Event) error
}

type MessagePayload struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Body         string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connectionId"`
}

type PresencePayload struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}

type SystemPayload struct {
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingPayload struct {
	Username string `json:"username"`
}

type StopTypingPayload struct{}

// HistoryPayload is replayed to a joining connection, oldest first.
type HistoryPayload []store.Message
