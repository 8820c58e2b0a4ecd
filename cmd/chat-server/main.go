package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"room-chat-backend/internal/api"
	"room-chat-backend/internal/api/router"
	"room-chat-backend/internal/database"
	"room-chat-backend/internal/env"
	"room-chat-backend/internal/hub"
	"room-chat-backend/internal/queue"
	"room-chat-backend/internal/store"
	"room-chat-backend/internal/websocket"
)

func main() {
	cfg, err := env.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	if cfg.CreateTables {
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("create tables: %v", err)
		}
	}

	var gateway store.Gateway = store.NewDynamoGateway(db)
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPass,
			DB:       0,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis %s unreachable, history reads fall back to dynamodb: %v", cfg.RedisURL, err)
		}
		cancel()
		gateway = store.NewCachedGateway(gateway, rdb, cfg.HistoryTTL)
	}

	chatHub := hub.New(gateway,
		hub.WithStoreTimeout(cfg.StoreTimeout),
		hub.WithTypingTimeout(cfg.TypingTimeout),
	)

	queueManager := queue.NewRequestQueueManager(cfg.QueueSize, cfg.QueueWorkers)
	server := api.NewAPIServer(
		cfg.ListenAddr(),
		queueManager,
		chatHub,
		websocket.NewHandler(chatHub, cfg.AllowedOrigins),
		cfg.AllowedOrigins,
		router.UtilsRoutes("/api/v1"),
		router.RoomRoutes("/api/v1"),
		router.WebsocketRoutes("/ws"),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Run()
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
