package websocket

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"room-chat-backend/internal/hub"
)

const (
	sendBufferSize = 32
	maxFrameSize   = 512 * 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
)

var ErrClientClosed = errors.New("websocket: client closed")

type WSClient struct {
	Conn     *websocket.Conn
	Message  chan hub.Event
	ID       string
	done     chan struct{} // closed once the client starts shutting down
	mu       sync.Mutex    // guards isClosed and done
	isClosed bool
}

func newClient(conn *websocket.Conn, id string) *WSClient {
	return &WSClient{
		Conn:    conn,
		Message: make(chan hub.Event, sendBufferSize),
		ID:      id,
		done:    make(chan struct{}),
	}
}

// Send queues ev for the write pump without blocking. A client whose buffer
// is full is closed; its read pump then disconnects it from the hub.
func (cl *WSClient) Send(ev hub.Event) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.isClosed {
		return ErrClientClosed
	}
	select {
	case cl.Message <- ev:
		return nil
	default:
		incSlowConsumers()
		cl.closeLocked()
		log.Printf("[websocket] client %s too slow, closing", cl.ID)
		return ErrClientClosed
	}
}

func (cl *WSClient) close() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.closeLocked()
}

func (cl *WSClient) closeLocked() {
	if cl.isClosed {
		return
	}
	cl.isClosed = true
	close(cl.done)
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			// WriteControl may run concurrently with the write pump.
			if err := cl.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("[websocket] ping %s: %v", cl.ID, err)
				cl.close()
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.close()
		cl.Conn.Close()
	}()

	for {
		select {
		case <-cl.done:
			_ = cl.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-cl.Message:
			_ = cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.Conn.WriteJSON(outFrame{Type: ev.Type, Data: ev.Data}); err != nil {
				log.Printf("[websocket] write to %s: %v", cl.ID, err)
				return
			}
			incDelivered()
		}
	}
}

func (cl *WSClient) readMessage(d *dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		cl.close()
		// The session outlives ctx only for the teardown writes.
		d.hub.Disconnect(context.Background(), cl.ID)
		decConnections()
		log.Printf("[websocket] client %s disconnected", cl.ID)
	}()

	cl.Conn.SetReadLimit(maxFrameSize)
	_ = cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Printf("[websocket] read from %s: %v", cl.ID, err)
			}
			return
		}
		_ = cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
		d.dispatch(ctx, cl, data)
	}
}
