package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"room-chat-backend/utils"
)

type Handler struct {
	dispatcher *dispatcher
	upgrader   websocket.Upgrader
	newID      func() string
}

// NewHandler builds the upgrade handler. An empty origin list or "*" accepts
// any origin.
func NewHandler(h ChatHub, allowedOrigins []string) *Handler {
	return &Handler{
		dispatcher: &dispatcher{hub: h},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		newID: utils.NewID,
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request and starts the client's pumps. It returns as
// soon as the pumps are running.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		log.Printf("[websocket] upgrade from %s: %v", utils.RealClientIP(r), err)
		return
	}

	cl := newClient(conn, h.newID())
	h.dispatcher.hub.Connect(cl.ID, cl)
	incConnections()
	log.Printf("[websocket] client %s connected from %s", cl.ID, utils.RealClientIP(r))

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.dispatcher)
}
