package model

import "strconv"

const (
	RoomsTable    = "Rooms"
	UsersTable    = "Users"
	MessagesTable = "Messages"
)

// RoomItem is the durable room record. It is created once and never deleted;
// MessageSeq is the counter that hands out message sequence numbers and
// LastMessageAt the timestamp of the newest message.
type RoomItem struct {
	Name          string `dynamodbav:"name"`
	MessageSeq    int64  `dynamodbav:"messageSeq,omitempty"`
	LastMessageAt string `dynamodbav:"lastMessageAt,omitempty"`
	CreatedAt     string `dynamodbav:"createdAt"`
}

type UserItem struct {
	ConnectionID string `dynamodbav:"connectionId"`
	Username     string `dynamodbav:"username"`
	Room         string `dynamodbav:"room"`
	JoinedAt     string `dynamodbav:"joinedAt"`
}

type MessageItem struct {
	Room      string `dynamodbav:"room"`
	Seq       int64  `dynamodbav:"seq"`
	MessageID string `dynamodbav:"messageId"`
	Username  string `dynamodbav:"username"`
	Body      string `dynamodbav:"message"`
	Timestamp string `dynamodbav:"timestamp"`
}

func MessageKey(room string, seq int64) string {
	return room + "#" + strconv.FormatInt(seq, 10)
}
