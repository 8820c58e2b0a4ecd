package hub

import (
	"context"
	"fmt"
	"log"
	"strings"

	"room-chat-backend/internal/store"
)

// Submit persists a message from the connection's user and broadcasts it to
// the whole room, sender included. Nothing is broadcast unless the store
// accepted the message; the store's timestamp is the one delivered.
func (h *Hub) Submit(ctx context.Context, id, body string) (store.Message, error) {
	sess, unlock, ok := h.lockSession(id)
	if !ok {
		return store.Message{}, ErrUnknownConnection
	}
	defer unlock()

	body = strings.TrimSpace(body)
	if body == "" {
		return store.Message{}, fmt.Errorf("submit: empty message: %w", ErrValidation)
	}

	var msg store.Message
	err := h.withStore(ctx, "create_message", func(ctx context.Context) error {
		var err error
		msg, err = h.store.CreateMessage(ctx, sess.Room, sess.Username, body)
		return err
	})
	if err != nil {
		log.Printf("[hub] message from %s in %q dropped: %v", id, sess.Room, err)
		return store.Message{}, fmt.Errorf("submit: %w", err)
	}
	incMessages()

	h.broadcast(sess.Room, Event{Type: EventMessage, Data: MessagePayload{
		ID:           msg.ID,
		Username:     msg.Username,
		Body:         msg.Body,
		Timestamp:    msg.Timestamp,
		ConnectionID: id,
	}}, "")

	h.typing.stop(sess.Room)
	h.broadcastStopTyping(sess.Room)
	return msg, nil
}
