// Package hub coordinates rooms: who is connected, which room each
// connection is bound to, and which events every member receives.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"room-chat-backend/internal/store"
)

// HistoryLimit is the number of messages replayed to a joining connection.
const HistoryLimit = 50

const defaultStoreTimeout = 5 * time.Second

var (
	ErrValidation        = errors.New("hub: validation failed")
	ErrUnknownConnection = errors.New("hub: unknown connection")
)

type Option func(*Hub)

func WithStoreTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.storeTimeout = d
		}
	}
}

func WithTypingTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.typingTimeout = d
		}
	}
}

// WithAfterFunc replaces the scheduler used for typing expiry.
func WithAfterFunc(f AfterFunc) Option {
	return func(h *Hub) {
		if f != nil {
			h.afterFunc = f
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

type Hub struct {
	store    store.Gateway
	registry *registry
	locks    *roomLocks
	typing   *typingState

	storeTimeout  time.Duration
	typingTimeout time.Duration
	afterFunc     AfterFunc
	now           func() time.Time
}

func New(gw store.Gateway, opts ...Option) *Hub {
	h := &Hub{
		store:         gw,
		registry:      newRegistry(),
		locks:         newRoomLocks(),
		storeTimeout:  defaultStoreTimeout,
		typingTimeout: DefaultTypingTimeout,
		afterFunc:     realAfterFunc,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.typing = newTypingState(h.afterFunc, h.typingTimeout, h.now)
	return h
}

// Connect registers the send capability of a new connection. Events for id
// are delivered to s until Disconnect.
func (h *Hub) Connect(id string, s Sender) {
	if h.registry.connect(id, s) {
		incConnected()
	}
}

// Disconnect tears down the connection. It is safe to call more than once and
// concurrently with a Join for the same id.
func (h *Hub) Disconnect(ctx context.Context, id string) {
	if h.registry.disconnect(id) {
		decConnected()
	}
	h.Leave(ctx, id)
}

// Join binds the connection to room under username, leaving its previous
// room first.
func (h *Hub) Join(ctx context.Context, id, username, room string) error {
	username = strings.TrimSpace(username)
	room = strings.TrimSpace(room)
	if username == "" || room == "" {
		return fmt.Errorf("join: username and room are required: %w", ErrValidation)
	}

	for {
		prev, hadPrev := h.registry.session(id)
		rooms := []string{room}
		if hadPrev {
			rooms = append(rooms, prev.Room)
		}

		unlock := h.locks.lock(rooms...)
		cur, has := h.registry.session(id)
		if has != hadPrev || (has && cur.Room != prev.Room) {
			unlock()
			continue
		}

		err := h.joinLocked(ctx, Session{ConnectionID: id, Username: username, Room: room}, cur, has)
		unlock()
		return err
	}
}

func (h *Hub) joinLocked(ctx context.Context, sess, prev Session, hadPrev bool) error {
	prevEmpty, err := h.registry.bind(sess)
	if err != nil {
		return fmt.Errorf("join %s: %w", sess.Room, err)
	}
	h.updateGauges()

	moved := hadPrev && prev.Room != sess.Room
	if moved && prevEmpty {
		h.typing.stop(prev.Room)
		log.Printf("[hub] room %q removed", prev.Room)
	}
	log.Printf("[hub] %s joined room %q as %q", sess.ConnectionID, sess.Room, sess.Username)

	if err := h.withStore(ctx, "upsert_room", func(ctx context.Context) error {
		return h.store.UpsertRoom(ctx, sess.Room)
	}); err != nil {
		log.Printf("[hub] upsert room %q: %v", sess.Room, err)
	}
	if err := h.withStore(ctx, "create_user", func(ctx context.Context) error {
		return h.store.CreateUser(ctx, sess.Username, sess.Room, sess.ConnectionID)
	}); err != nil {
		log.Printf("[hub] save user %s: %v", sess.ConnectionID, err)
	}

	var history []store.Message
	if err := h.withStore(ctx, "list_messages", func(ctx context.Context) error {
		var err error
		history, err = h.store.ListRecentMessages(ctx, sess.Room, HistoryLimit)
		return err
	}); err != nil {
		log.Printf("[hub] load history for %q: %v", sess.Room, err)
	} else {
		if history == nil {
			history = []store.Message{}
		}
		h.sendTo(sess.ConnectionID, Event{Type: EventHistory, Data: HistoryPayload(history)})
	}

	if moved && !prevEmpty {
		h.broadcastPresence(prev.Room)
		h.systemNotice(prev.Room, prev.Username+" left the room")
	}
	h.broadcastPresence(sess.Room)
	h.systemNotice(sess.Room, sess.Username+" joined the room")
	return nil
}

// Leave unbinds the connection from its room. It is a no-op for connections
// without a session.
func (h *Hub) Leave(ctx context.Context, id string) {
	sess, unlock, ok := h.lockSession(id)
	if !ok {
		return
	}
	defer unlock()

	sess, roomEmpty, ok := h.registry.unbind(id, sess.Room)
	if !ok {
		return
	}
	h.updateGauges()
	log.Printf("[hub] %s (%q) left room %q", id, sess.Username, sess.Room)

	if err := h.withStore(ctx, "delete_user", func(ctx context.Context) error {
		return h.store.DeleteUserByConnection(ctx, id)
	}); err != nil {
		log.Printf("[hub] remove user %s: %v", id, err)
	}

	if roomEmpty {
		h.typing.stop(sess.Room)
		log.Printf("[hub] room %q removed", sess.Room)
		return
	}

	h.broadcastPresence(sess.Room)
	h.systemNotice(sess.Room, sess.Username+" left the room")
}

// Typing latches the connection's user as the room's typist and tells the
// other members.
func (h *Hub) Typing(ctx context.Context, id string) error {
	sess, unlock, ok := h.lockSession(id)
	if !ok {
		return ErrUnknownConnection
	}
	defer unlock()

	room := sess.Room
	h.typing.start(room, sess.Username, func(gen uint64) {
		h.expireTyping(room, gen)
	})
	h.broadcast(room, Event{Type: EventTyping, Data: TypingPayload{Username: sess.Username}}, id)
	return nil
}

// StopTyping clears the room's typing latch and tells every member.
func (h *Hub) StopTyping(ctx context.Context, id string) error {
	sess, unlock, ok := h.lockSession(id)
	if !ok {
		return ErrUnknownConnection
	}
	defer unlock()

	h.typing.stop(sess.Room)
	h.broadcastStopTyping(sess.Room)
	return nil
}

func (h *Hub) expireTyping(room string, gen uint64) {
	unlock := h.locks.lock(room)
	defer unlock()

	if h.typing.expire(room, gen) {
		h.broadcastStopTyping(room)
	}
}

// TypingState reports who currently holds the room's typing latch.
func (h *Hub) TypingState(room string) (username string, ok bool) {
	username, _, ok = h.typing.current(room)
	return username, ok
}

// History returns the last limit persisted messages of room, oldest first.
// It runs inside the room's section so it never interleaves with a submit.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]store.Message, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, fmt.Errorf("history: room is required: %w", ErrValidation)
	}
	if limit <= 0 {
		limit = HistoryLimit
	}

	unlock := h.locks.lock(room)
	defer unlock()

	var history []store.Message
	err := h.withStore(ctx, "list_messages", func(ctx context.Context) error {
		var err error
		history, err = h.store.ListRecentMessages(ctx, room, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", room, err)
	}
	return history, nil
}

// lockSession enters the section of the room the connection is bound to and
// returns its session. The session is re-read after locking so a concurrent
// room change is never missed.
func (h *Hub) lockSession(id string) (Session, func(), bool) {
	for {
		sess, ok := h.registry.session(id)
		if !ok {
			return Session{}, nil, false
		}
		unlock := h.locks.lock(sess.Room)
		cur, ok := h.registry.session(id)
		if ok && cur.Room == sess.Room {
			return cur, unlock, true
		}
		unlock()
	}
}

// withStore runs one persistence call with a bounded deadline. Duplicate keys
// count as success.
func (h *Hub) withStore(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil || errors.Is(err, store.ErrDuplicateKey) {
		return nil
	}
	incStoreFailure(op)
	return err
}

func (h *Hub) sendTo(id string, ev Event) {
	s, ok := h.registry.sender(id)
	if !ok {
		return
	}
	if err := s.Send(ev); err != nil {
		log.Printf("[hub] send %s to %s: %v", ev.Type, id, err)
	}
}

func (h *Hub) broadcast(room string, ev Event, except string) {
	for _, s := range h.registry.recipients(room, except) {
		if err := s.Send(ev); err != nil {
			log.Printf("[hub] broadcast %s in %q: %v", ev.Type, room, err)
		}
	}
}

func (h *Hub) broadcastStopTyping(room string) {
	h.broadcast(room, Event{Type: EventStopTyping, Data: StopTypingPayload{}}, "")
}

func (h *Hub) systemNotice(room, text string) {
	h.broadcast(room, Event{Type: EventSystem, Data: SystemPayload{Text: text, Timestamp: h.now().UTC()}}, "")
}

func (h *Hub) updateGauges() {
	rooms, sessions := h.registry.counts()
	setRooms(rooms)
	setSessions(sessions)
}
