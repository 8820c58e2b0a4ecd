package endpoints

import (
	"fmt"
	"net/http"
)

// Upgrader takes over the connection of a websocket request.
type Upgrader interface {
	ServeWS(http.ResponseWriter, *http.Request)
}

type WebsocketEndpoints interface {
	Websocket(http.ResponseWriter, *http.Request) error
}

type websocketEndpoints struct {
	upgrader Upgrader
}

func NewWebsocketEndpoints(upgrader Upgrader) WebsocketEndpoints {
	return &websocketEndpoints{upgrader: upgrader}
}

func (h *websocketEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if h.upgrader == nil {
		return &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("websocket not configured")}
	}
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			h.upgrader.ServeWS(w, r)
			return nil
		},
	})
}
