package websocket

import (
	"encoding/json"

	"room-chat-backend/internal/hub"
)

// Ingress frame types.
const (
	FrameJoinRoom    = "joinRoom"
	FrameChatMessage = "chatMessage"
	FrameTyping      = "typing"
	FrameStopTyping  = "stopTyping"
)

// EventError is sent back for frames that cannot be decoded.
const EventError hub.EventType = "error"

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Type hub.EventType `json:"type"`
	Data any           `json:"data"`
}

type JoinRoomReq struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// ChatMessageReq carries only the body. Room and username come from the
// connection's session.
type ChatMessageReq struct {
	Message string `json:"message"`
}

type ErrorRes struct {
	Message string `json:"message"`
}
