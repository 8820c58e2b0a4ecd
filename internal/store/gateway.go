// Package store is the durable side of the chat hub: rooms, the users bound
// to live connections, and the ordered message log of every room.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable wraps every I/O failure of a Gateway.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrDuplicateKey reports a lost race on a unique key. Upserts treat it as
	// success.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Message is a persisted chat message. Timestamp and Seq are assigned by the
// store; within a room messages are ordered by Timestamp, then Seq.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq"`
}

type Gateway interface {
	UpsertRoom(ctx context.Context, name string) error
	CreateUser(ctx context.Context, username, room, connectionID string) error
	DeleteUserByConnection(ctx context.Context, connectionID string) error
	// CreateMessage persists a message and returns it with its id, timestamp
	// and sequence filled in.
	CreateMessage(ctx context.Context, room, username, body string) (Message, error)
	// ListRecentMessages returns at most limit messages, oldest first.
	ListRecentMessages(ctx context.Context, room string, limit int) ([]Message, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
