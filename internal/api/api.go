package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"room-chat-backend/internal/api/middleware"
	"room-chat-backend/internal/hub"
	"room-chat-backend/internal/queue"
	"room-chat-backend/internal/websocket"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	hub                 *hub.Hub
	handler             *websocket.Handler
	cors                middleware.CORSConfig
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
	server              *http.Server
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, h *hub.Hub, handler *websocket.Handler, allowedOrigins []string, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		hub:                 h,
		handler:             handler,
		cors: middleware.CORSConfig{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Requested-With", "X-Request-ID"},
		},
		routeRegistrars: registrars,
		metrics:         newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
		server: &http.Server{
			Addr:              listenAddr,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler builds the instrumented mux with every registered route and
// /metrics.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())
	return s.metrics.instrument(mux)
}

// Run serves until Shutdown is called or the listener fails.
func (s *APIServer) Run() error {
	s.server.Handler = s.Handler()

	log.Printf("Server listening on http://localhost%s", s.listenAddr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and, once in-flight handlers are done,
// drains the worker queue. Hijacked websocket connections are not tracked by
// http.Server and end with the process.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		// Handlers may still enqueue; leave the queue open.
		return err
	}
	s.requestQueueManager.Shutdown()
	return nil
}

func (s *APIServer) Hub() *hub.Hub {
	return s.hub
}

func (s *APIServer) WebsocketHandler() *websocket.Handler {
	return s.handler
}
