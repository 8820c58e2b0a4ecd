package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// HistoryCap is the number of most recent messages kept per room in Redis.
const HistoryCap = 50

const defaultCacheTimeout = 2 * time.Second

// CachedGateway keeps the tail of every room's message log in a Redis list in
// front of another Gateway. A list that exists always holds the true last
// min(total, HistoryCap) messages of its room; writes only append to lists
// that are already present. Redis errors fall back to the wrapped Gateway.
//
// Callers serialize writes and reads of one room (the hub holds the room lock
// across both), so a refill cannot race an append.
type CachedGateway struct {
	next    Gateway
	rdb     redis.Cmdable
	ttl     time.Duration
	timeout time.Duration

	mu sync.Mutex
	// dirty rooms may have a list in Redis that missed a write. They are
	// served from the wrapped Gateway until a Del or refill succeeds.
	dirty map[string]struct{}
}

func NewCachedGateway(next Gateway, rdb redis.Cmdable, ttl time.Duration) *CachedGateway {
	return &CachedGateway{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		timeout: defaultCacheTimeout,
		dirty:   make(map[string]struct{}),
	}
}

func historyKey(room string) string {
	return fmt.Sprintf("chat:room:%s:recent", room)
}

// cacheContext detaches cache upkeep from the caller. A write that reached the
// durable store must reach the cache too, even when the caller gave up.
func (c *CachedGateway) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}

func (c *CachedGateway) UpsertRoom(ctx context.Context, name string) error {
	return c.next.UpsertRoom(ctx, name)
}

func (c *CachedGateway) CreateUser(ctx context.Context, username, room, connectionID string) error {
	return c.next.CreateUser(ctx, username, room, connectionID)
}

func (c *CachedGateway) DeleteUserByConnection(ctx context.Context, connectionID string) error {
	return c.next.DeleteUserByConnection(ctx, connectionID)
}

func (c *CachedGateway) CreateMessage(ctx context.Context, room, username, body string) (Message, error) {
	msg, err := c.next.CreateMessage(ctx, room, username, body)
	if err != nil {
		return Message{}, err
	}

	cctx, cancel := c.cacheContext(ctx)
	defer cancel()

	if c.isDirty(room) {
		c.drop(cctx, room)
		return msg, nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		c.invalidate(cctx, room, err)
		return msg, nil
	}

	key := historyKey(room)
	_, err = c.rdb.TxPipelined(cctx, func(pipe redis.Pipeliner) error {
		pipe.RPushX(cctx, key, payload)
		pipe.LTrim(cctx, key, -HistoryCap, -1)
		return nil
	})
	if err != nil {
		c.invalidate(cctx, room, err)
	}
	return msg, nil
}

func (c *CachedGateway) ListRecentMessages(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 || limit > HistoryCap {
		return c.next.ListRecentMessages(ctx, room, limit)
	}

	cctx, cancel := c.cacheContext(ctx)
	defer cancel()

	key := historyKey(room)
	if !c.isDirty(room) {
		raw, err := c.rdb.LRange(cctx, key, -int64(limit), -1).Result()
		if err != nil {
			log.Printf("[store] redis read %s failed, using durable store: %v", key, err)
			return c.next.ListRecentMessages(ctx, room, limit)
		}

		if len(raw) > 0 {
			messages, err := decodeMessages(raw)
			if err == nil {
				return messages, nil
			}
			c.invalidate(cctx, room, err)
			return c.next.ListRecentMessages(ctx, room, limit)
		}
	}

	history, err := c.next.ListRecentMessages(ctx, room, HistoryCap)
	if err != nil {
		return nil, err
	}
	c.fill(cctx, room, history)

	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// fill replaces the room's list with history, the durable last HistoryCap
// messages.
func (c *CachedGateway) fill(ctx context.Context, room string, history []Message) {
	if len(history) == 0 {
		if c.isDirty(room) {
			c.drop(ctx, room)
		}
		return
	}

	values := make([]interface{}, 0, len(history))
	for _, msg := range history {
		payload, err := json.Marshal(msg)
		if err != nil {
			log.Printf("[store] encode message %s: %v", msg.ID, err)
			return
		}
		values = append(values, payload)
	}

	key := historyKey(room)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		log.Printf("[store] redis fill %s failed: %v", key, err)
		return
	}
	c.setDirty(room, false)
}

// invalidate drops a list that may have missed a write. The room stays dirty
// until the Del goes through.
func (c *CachedGateway) invalidate(ctx context.Context, room string, cause error) {
	log.Printf("[store] redis cache %s out of sync: %v", historyKey(room), cause)
	c.setDirty(room, true)
	c.drop(ctx, room)
}

func (c *CachedGateway) drop(ctx context.Context, room string) {
	key := historyKey(room)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("[store] redis invalidate %s failed: %v", key, err)
		return
	}
	c.setDirty(room, false)
}

func (c *CachedGateway) isDirty(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.dirty[room]
	return ok
}

func (c *CachedGateway) setDirty(room string, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dirty {
		c.dirty[room] = struct{}{}
	} else {
		delete(c.dirty, room)
	}
}

func decodeMessages(raw []string) ([]Message, error) {
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
