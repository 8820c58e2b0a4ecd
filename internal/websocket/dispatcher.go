package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"room-chat-backend/internal/hub"
	"room-chat-backend/internal/store"
)

// ChatHub is the part of *hub.Hub the transport drives.
type ChatHub interface {
	Connect(id string, s hub.Sender)
	Disconnect(ctx context.Context, id string)
	Join(ctx context.Context, id, username, room string) error
	Submit(ctx context.Context, id, body string) (store.Message, error)
	Typing(ctx context.Context, id string) error
	StopTyping(ctx context.Context, id string) error
}

type dispatcher struct {
	hub ChatHub
}

// dispatch decodes one ingress frame and hands it to the hub. Failures are
// logged and dropped; they never end the connection.
func (d *dispatcher) dispatch(ctx context.Context, cl *WSClient, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[websocket] recovered from panic handling frame from %s: %v", cl.ID, r)
		}
	}()

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		d.reject(cl, "invalid frame", err)
		return
	}

	var err error
	switch frame.Type {
	case FrameJoinRoom:
		var req JoinRoomReq
		if err := decodeData(frame.Data, &req); err != nil {
			d.reject(cl, "invalid joinRoom payload", err)
			return
		}
		err = d.hub.Join(ctx, cl.ID, req.Username, req.Room)
	case FrameChatMessage:
		var req ChatMessageReq
		if err := decodeData(frame.Data, &req); err != nil {
			d.reject(cl, "invalid chatMessage payload", err)
			return
		}
		_, err = d.hub.Submit(ctx, cl.ID, req.Message)
	case FrameTyping:
		err = d.hub.Typing(ctx, cl.ID)
	case FrameStopTyping:
		err = d.hub.StopTyping(ctx, cl.ID)
	default:
		d.reject(cl, "unknown frame type", fmt.Errorf("type %q", frame.Type))
		return
	}
	if err != nil {
		log.Printf("[websocket] %s from %s dropped: %v", frame.Type, cl.ID, err)
	}
}

func (d *dispatcher) reject(cl *WSClient, msg string, err error) {
	log.Printf("[websocket] %s from %s: %v", msg, cl.ID, err)
	_ = cl.Send(hub.Event{Type: EventError, Data: ErrorRes{Message: msg}})
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(raw, v)
}
