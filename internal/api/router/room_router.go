package router

import (
	"net/http"
	"strings"

	"room-chat-backend/internal/api"
	"room-chat-backend/internal/api/endpoints"
)

func RoomRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.RoomPaths{
			MessagesPrefix: base + "/messages/",
			RoomsPrefix:    base + "/rooms/",
		}
		roomEndpoints := endpoints.NewRoomEndpointsWithPaths(s.Hub(), paths)

		mux.HandleFunc(paths.MessagesPrefix, s.MakeHTTPHandleFunc(roomEndpoints.Messages))
		mux.HandleFunc(paths.RoomsPrefix, s.MakeHTTPHandleFunc(roomEndpoints.Rooms))
	}
}
