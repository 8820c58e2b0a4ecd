package router

import (
	"log"
	"net/http"

	"room-chat-backend/internal/api"
	"room-chat-backend/internal/api/endpoints"
)

func WebsocketRoutes(path string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		handler := s.WebsocketHandler()
		if handler == nil {
			log.Printf("[api] no websocket handler, %s not registered", path)
			return
		}
		wsEndpoints := endpoints.NewWebsocketEndpoints(handler)
		mux.HandleFunc(path, s.MakeHTTPHandleFunc(wsEndpoints.Websocket))
	}
}
