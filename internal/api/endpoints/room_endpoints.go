package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"room-chat-backend/internal/hub"
	"room-chat-backend/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// RoomReader is the read side of the hub served over HTTP.
type RoomReader interface {
	History(ctx context.Context, room string, limit int) ([]store.Message, error)
	Presence(room string) hub.PresencePayload
}

type RoomEndpoints interface {
	Messages(http.ResponseWriter, *http.Request) error
	Rooms(http.ResponseWriter, *http.Request) error
}

type RoomPaths struct {
	MessagesPrefix string // followed by {room}
	RoomsPrefix    string // followed by {room}/presence
}

type roomEndpoints struct {
	rooms RoomReader
	paths RoomPaths
}

func NewRoomEndpoints(rooms RoomReader, prefix string) RoomEndpoints {
	base := strings.TrimRight(prefix, "/")
	return NewRoomEndpointsWithPaths(rooms, RoomPaths{
		MessagesPrefix: base + "/messages/",
		RoomsPrefix:    base + "/rooms/",
	})
}

func NewRoomEndpointsWithPaths(rooms RoomReader, paths RoomPaths) RoomEndpoints {
	return &roomEndpoints{rooms: rooms, paths: paths}
}

func (h *roomEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListMessages,
	})
}

func (h *roomEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	rest, err := extractFromPath(r.URL.Path, h.paths.RoomsPrefix)
	if err != nil {
		return err
	}
	room, ok := strings.CutSuffix(rest, "/presence")
	if !ok || room == "" {
		return &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("unknown room path %q", r.URL.Path)}
	}
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return WriteJSON(w, http.StatusOK, h.rooms.Presence(room))
		},
	})
}

func (h *roomEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	room, err := extractFromPath(r.URL.Path, h.paths.MessagesPrefix)
	if err != nil {
		return err
	}
	if room == "" || strings.Contains(room, "/") {
		return &HTTPError{StatusCode: http.StatusNotFound, Message: "Room not found", ErrorLog: fmt.Errorf("invalid room path %q", r.URL.Path)}
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid limit", ErrorLog: err}
	}

	messages, err := h.rooms.History(r.Context(), room, limit)
	if err != nil {
		return historyError(err)
	}
	if messages == nil {
		messages = []store.Message{}
	}
	return WriteJSON(w, http.StatusOK, messages)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse limit %q: %w", raw, err)
	}
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}

func historyError(err error) error {
	switch {
	case errors.Is(err, hub.ErrValidation):
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid room", ErrorLog: err}
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "History unavailable", ErrorLog: err}
	default:
		return err
	}
}
