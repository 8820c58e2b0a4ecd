package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"room-chat-backend/internal/database"
	"room-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoClient is the subset of *database.DynamoDBClient the gateway uses.
type DynamoClient interface {
	PutItem(ctx context.Context, tableName string, item interface{}) error
	PutItemIfAbsent(ctx context.Context, tableName, keyAttr string, item interface{}) error
	UpdateItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, updateExpr string, exprAttrValues map[string]types.AttributeValue, exprAttrNames map[string]string, out interface{}) error
	DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error
	QueryLatest(ctx context.Context, tableName, keyCondExpr string, exprAttrValues map[string]types.AttributeValue, exprAttrNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error)
}

type DynamoGateway struct {
	client DynamoClient
	now    func() time.Time
}

func NewDynamoGateway(db *database.Database) *DynamoGateway {
	return NewDynamoGatewayWithClient(db.Client, time.Now)
}

func NewDynamoGatewayWithClient(client DynamoClient, now func() time.Time) *DynamoGateway {
	if now == nil {
		now = time.Now
	}
	return &DynamoGateway{
		client: client,
		now:    now,
	}
}

func (g *DynamoGateway) UpsertRoom(ctx context.Context, name string) error {
	room := model.RoomItem{
		Name:      name,
		CreatedAt: g.now().UTC().Format(time.RFC3339),
	}
	err := g.client.PutItemIfAbsent(ctx, model.RoomsTable, "name", room)
	if errors.Is(err, database.ErrConditionFailed) {
		return nil
	}
	if err != nil {
		return unavailable("upsert room", err)
	}
	return nil
}

func (g *DynamoGateway) CreateUser(ctx context.Context, username, room, connectionID string) error {
	user := model.UserItem{
		ConnectionID: connectionID,
		Username:     username,
		Room:         room,
		JoinedAt:     g.now().UTC().Format(time.RFC3339),
	}
	if err := g.client.PutItem(ctx, model.UsersTable, user); err != nil {
		return unavailable("create user", err)
	}
	return nil
}

func (g *DynamoGateway) DeleteUserByConnection(ctx context.Context, connectionID string) error {
	err := g.client.DeleteItem(ctx, model.UsersTable, map[string]types.AttributeValue{
		"connectionId": database.AttrString(connectionID),
	})
	if err != nil {
		return unavailable("delete user", err)
	}
	return nil
}

func (g *DynamoGateway) CreateMessage(ctx context.Context, room, username, body string) (Message, error) {
	counter, err := g.nextSeq(ctx, room)
	if err != nil {
		return Message{}, unavailable("create message", err)
	}

	msg := Message{
		ID:        uuid.NewString(),
		Room:      room,
		Username:  username,
		Body:      body,
		Timestamp: g.stamp(counter.LastMessageAt),
		Seq:       counter.MessageSeq,
	}

	if err := g.client.PutItem(ctx, model.MessagesTable, toMessageItem(msg)); err != nil {
		return Message{}, unavailable("create message", err)
	}
	g.recordStamp(ctx, room, msg.Timestamp)
	return msg, nil
}

func (g *DynamoGateway) ListRecentMessages(ctx context.Context, room string, limit int) ([]Message, error) {
	items, err := g.client.QueryLatest(
		ctx,
		model.MessagesTable,
		"#room = :room",
		map[string]types.AttributeValue{
			":room": database.AttrString(room),
		},
		map[string]string{
			"#room": "room",
		},
		int32(limit),
	)
	if err != nil {
		return nil, unavailable("list messages", err)
	}

	messages := make([]Message, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var item model.MessageItem
		if err := attributevalue.UnmarshalMap(items[i], &item); err != nil {
			return nil, unavailable("list messages", err)
		}
		msg, err := fromMessageItem(item)
		if err != nil {
			log.Printf("[store] skipping message %s: %v", model.MessageKey(item.Room, item.Seq), err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// nextSeq bumps the room's message counter and returns the room item after
// the bump. The update also creates the room item when an earlier upsert was
// lost.
func (g *DynamoGateway) nextSeq(ctx context.Context, room string) (model.RoomItem, error) {
	var updated model.RoomItem
	err := g.client.UpdateItem(
		ctx,
		model.RoomsTable,
		map[string]types.AttributeValue{
			"name": database.AttrString(room),
		},
		"ADD #seq :one SET #createdAt = if_not_exists(#createdAt, :now)",
		map[string]types.AttributeValue{
			":one": database.AttrNumber(1),
			":now": database.AttrString(g.now().UTC().Format(time.RFC3339)),
		},
		map[string]string{
			"#seq":       "messageSeq",
			"#createdAt": "createdAt",
		},
		&updated,
	)
	if err != nil {
		return model.RoomItem{}, err
	}
	if updated.MessageSeq <= 0 {
		return model.RoomItem{}, fmt.Errorf("room %s returned sequence %d", room, updated.MessageSeq)
	}
	return updated, nil
}

// stamp returns the server time for a new message, never earlier than last,
// the timestamp of the room's previous message.
func (g *DynamoGateway) stamp(last string) time.Time {
	ts := g.now().UTC()
	if last == "" {
		return ts
	}
	prev, err := time.Parse(time.RFC3339Nano, last)
	if err != nil {
		log.Printf("[store] ignoring bad lastMessageAt %q: %v", last, err)
		return ts
	}
	if ts.Before(prev) {
		return prev
	}
	return ts
}

// recordStamp stores ts on the room item for the next message to clamp
// against. The message is already durable, so a failure is only logged.
func (g *DynamoGateway) recordStamp(ctx context.Context, room string, ts time.Time) {
	err := g.client.UpdateItem(
		ctx,
		model.RoomsTable,
		map[string]types.AttributeValue{
			"name": database.AttrString(room),
		},
		"SET #last = :ts",
		map[string]types.AttributeValue{
			":ts": database.AttrString(ts.Format(time.RFC3339Nano)),
		},
		map[string]string{
			"#last": "lastMessageAt",
		},
		nil,
	)
	if err != nil {
		log.Printf("[store] record last message time for %q: %v", room, err)
	}
}

func toMessageItem(msg Message) model.MessageItem {
	return model.MessageItem{
		Room:      msg.Room,
		Seq:       msg.Seq,
		MessageID: msg.ID,
		Username:  msg.Username,
		Body:      msg.Body,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}
}

func fromMessageItem(item model.MessageItem) (Message, error) {
	ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return Message{
		ID:        item.MessageID,
		Room:      item.Room,
		Username:  item.Username,
		Body:      item.Body,
		Timestamp: ts,
		Seq:       item.Seq,
	}, nil
}

// Schema lists the tables the gateway reads and writes.
func Schema() []database.TableSpec {
	return []database.TableSpec{
		{Name: model.RoomsTable, HashKey: "name", HashType: types.ScalarAttributeTypeS},
		{Name: model.UsersTable, HashKey: "connectionId", HashType: types.ScalarAttributeTypeS},
		{
			Name:      model.MessagesTable,
			HashKey:   "room",
			HashType:  types.ScalarAttributeTypeS,
			RangeKey:  "seq",
			RangeType: types.ScalarAttributeTypeN,
		},
	}
}

// EnsureSchema creates any missing table of Schema.
func EnsureSchema(ctx context.Context, db *database.Database) error {
	for _, spec := range Schema() {
		if err := db.Client.EnsureTable(ctx, spec, 30*time.Second); err != nil {
			return err
		}
	}
	return nil
}
