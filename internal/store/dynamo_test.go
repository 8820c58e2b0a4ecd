package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"room-chat-backend/internal/database"
	"room-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type memoryDynamo struct {
	mu       sync.Mutex
	rooms    map[string]model.RoomItem
	users    map[string]model.UserItem
	messages map[string][]model.MessageItem
	fail     error
}

func newMemoryDynamo() *memoryDynamo {
	return &memoryDynamo{
		rooms:    make(map[string]model.RoomItem),
		users:    make(map[string]model.UserItem),
		messages: make(map[string][]model.MessageItem),
	}
}

func (m *memoryDynamo) PutItem(ctx context.Context, tableName string, item interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	switch v := item.(type) {
	case model.UserItem:
		m.users[v.ConnectionID] = v
	case model.MessageItem:
		m.messages[v.Room] = append(m.messages[v.Room], v)
	case model.RoomItem:
		m.rooms[v.Name] = v
	}
	return nil
}

func (m *memoryDynamo) PutItemIfAbsent(ctx context.Context, tableName, keyAttr string, item interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	room := item.(model.RoomItem)
	if _, ok := m.rooms[room.Name]; ok {
		return database.ErrConditionFailed
	}
	m.rooms[room.Name] = room
	return nil
}

func (m *memoryDynamo) UpdateItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, updateExpr string, exprAttrValues map[string]types.AttributeValue, exprAttrNames map[string]string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	name := key["name"].(*types.AttributeValueMemberS).Value
	room := m.rooms[name]
	room.Name = name
	if _, ok := exprAttrValues[":one"]; ok {
		room.MessageSeq++
	}
	if ts, ok := exprAttrValues[":ts"]; ok {
		room.LastMessageAt = ts.(*types.AttributeValueMemberS).Value
	}
	m.rooms[name] = room

	if out == nil {
		return nil
	}
	av, err := attributevalue.MarshalMap(room)
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalMap(av, out)
}

func (m *memoryDynamo) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.users, key["connectionId"].(*types.AttributeValueMemberS).Value)
	return nil
}

func (m *memoryDynamo) QueryLatest(ctx context.Context, tableName, keyCondExpr string, exprAttrValues map[string]types.AttributeValue, exprAttrNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	room := exprAttrValues[":room"].(*types.AttributeValueMemberS).Value
	all := m.messages[room]

	out := make([]map[string]types.AttributeValue, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && int32(len(out)) == limit {
			break
		}
		av, err := attributevalue.MarshalMap(all[i])
		if err != nil {
			return nil, err
		}
		out = append(out, av)
	}
	return out, nil
}

func TestUpsertRoomIsIdempotent(t *testing.T) {
	client := newMemoryDynamo()
	gw := NewDynamoGatewayWithClient(client, nil)

	if err := gw.UpsertRoom(context.Background(), "general"); err != nil {
		t.Fatalf("first UpsertRoom error: %v", err)
	}
	if err := gw.UpsertRoom(context.Background(), "general"); err != nil {
		t.Fatalf("second UpsertRoom error: %v", err)
	}
	if len(client.rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(client.rooms))
	}
}

func TestCreateUserAndDelete(t *testing.T) {
	client := newMemoryDynamo()
	gw := NewDynamoGatewayWithClient(client, nil)
	ctx := context.Background()

	if err := gw.CreateUser(ctx, "alice", "general", "conn-1"); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if client.users["conn-1"].Username != "alice" {
		t.Fatalf("unexpected user %+v", client.users["conn-1"])
	}
	if err := gw.DeleteUserByConnection(ctx, "conn-1"); err != nil {
		t.Fatalf("DeleteUserByConnection error: %v", err)
	}
	if _, ok := client.users["conn-1"]; ok {
		t.Fatal("expected user to be deleted")
	}
}

func TestCreateMessageAssignsMonotonicTimestamps(t *testing.T) {
	client := newMemoryDynamo()
	// A clock that runs backwards on every read.
	start := time.Date(2024, 1, 2, 15, 0, 10, 0, time.UTC)
	calls := 0
	gw := NewDynamoGatewayWithClient(client, func() time.Time {
		ts := start.Add(-time.Duration(calls) * time.Second)
		calls++
		return ts
	})

	ctx := context.Background()
	first, err := gw.CreateMessage(ctx, "general", "alice", "hi")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	second, err := gw.CreateMessage(ctx, "general", "bob", "there")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}

	if !second.Timestamp.Equal(first.Timestamp) {
		t.Fatalf("expected clamped timestamp %s, got %s", first.Timestamp, second.Timestamp)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, second.ID)
	}
}

func TestCreateMessageClampsAgainstStoredTimestamp(t *testing.T) {
	client := newMemoryDynamo()
	ctx := context.Background()
	later := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	first, err := NewDynamoGatewayWithClient(client, func() time.Time { return later }).
		CreateMessage(ctx, "general", "alice", "hi")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if got := client.rooms["general"].LastMessageAt; got != later.Format(time.RFC3339Nano) {
		t.Fatalf("expected lastMessageAt %s, got %q", later.Format(time.RFC3339Nano), got)
	}

	// A second gateway with a slower clock sees the stored time.
	second, err := NewDynamoGatewayWithClient(client, func() time.Time { return later.Add(-time.Minute) }).
		CreateMessage(ctx, "general", "bob", "there")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if !second.Timestamp.Equal(first.Timestamp) {
		t.Fatalf("expected clamped timestamp %s, got %s", first.Timestamp, second.Timestamp)
	}

	other, err := NewDynamoGatewayWithClient(client, func() time.Time { return later.Add(-time.Minute) }).
		CreateMessage(ctx, "random", "carol", "hey")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if !other.Timestamp.Equal(later.Add(-time.Minute)) {
		t.Fatalf("expected unclamped timestamp in another room, got %s", other.Timestamp)
	}
}

func TestListRecentMessagesOldestFirst(t *testing.T) {
	client := newMemoryDynamo()
	gw := NewDynamoGatewayWithClient(client, nil)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		if _, err := gw.CreateMessage(ctx, "general", "alice", body); err != nil {
			t.Fatalf("CreateMessage error: %v", err)
		}
	}

	messages, err := gw.ListRecentMessages(ctx, "general", 2)
	if err != nil {
		t.Fatalf("ListRecentMessages error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Body != "two" || messages[1].Body != "three" {
		t.Fatalf("unexpected order %s, %s", messages[0].Body, messages[1].Body)
	}
}

func TestGatewayWrapsFailuresAsUnavailable(t *testing.T) {
	client := newMemoryDynamo()
	client.fail = errors.New("connection refused")
	gw := NewDynamoGatewayWithClient(client, nil)
	ctx := context.Background()

	checks := map[string]error{
		"UpsertRoom": gw.UpsertRoom(ctx, "general"),
		"CreateUser": gw.CreateUser(ctx, "alice", "general", "conn-1"),
		"DeleteUser": gw.DeleteUserByConnection(ctx, "conn-1"),
	}
	_, err := gw.CreateMessage(ctx, "general", "alice", "hi")
	checks["CreateMessage"] = err
	_, err = gw.ListRecentMessages(ctx, "general", 50)
	checks["ListRecentMessages"] = err

	for op, err := range checks {
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s: expected ErrUnavailable, got %v", op, err)
		}
	}
}

func TestSchemaMatchesItemKeys(t *testing.T) {
	keys := map[string][2]string{}
	for _, spec := range Schema() {
		keys[spec.Name] = [2]string{spec.HashKey, spec.RangeKey}
	}

	item, err := attributevalue.MarshalMap(model.MessageItem{Room: "general", Seq: 1, Timestamp: "t"})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	for _, attr := range keys[model.MessagesTable] {
		if _, ok := item[attr]; !ok {
			t.Fatalf("message item has no key attribute %q", attr)
		}
	}

	if keys[model.RoomsTable][0] != "name" || keys[model.UsersTable][0] != "connectionId" {
		t.Fatalf("unexpected hash keys %v", keys)
	}
}
