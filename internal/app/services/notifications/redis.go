package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/system"
	"github.com/brickvault/platform/pkg/logger"
)

const redisChannel = "notifications"

// RedisHub bridges the local hub across instances through Redis pub/sub.
// Publishes go to the Redis channel; a background receiver feeds each
// instance's local hub, so subscribers see notifications published anywhere.
type RedisHub struct {
	rdb   *redis.Client
	local *LocalHub
	log   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ Hub = (*RedisHub)(nil)
var _ system.Service = (*RedisHub)(nil)

// NewRedisHub creates a Redis-bridged hub.
func NewRedisHub(rdb *redis.Client, local *LocalHub, log *logger.Logger) *RedisHub {
	if local == nil {
		local = NewLocalHub()
	}
	if log == nil {
		log = logger.NewDefault("notification-hub")
	}
	return &RedisHub{rdb: rdb, local: local, log: log}
}

// Publish broadcasts through Redis. The local fan-out happens when the
// message comes back on the subscription, keeping single- and multi-instance
// delivery on one path.
func (h *RedisHub) Publish(n notification.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.WithError(err).Warn("notification encode failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.rdb.Publish(ctx, redisChannel, payload).Err(); err != nil {
		h.log.WithError(err).Warn("notification publish failed, delivering locally")
		h.local.Publish(n)
	}
}

// Subscribe registers a consumer on the local hub.
func (h *RedisHub) Subscribe(userID string) (<-chan notification.Notification, func()) {
	return h.local.Subscribe(userID)
}

func (h *RedisHub) Name() string { return "notification-hub" }

func (h *RedisHub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.mu.Unlock()

	sub := h.rdb.Subscribe(runCtx, redisChannel)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n notification.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					h.log.WithError(err).Warn("notification decode failed")
					continue
				}
				h.local.Publish(n)
			}
		}
	}()

	h.log.Info("notification hub started")
	return nil
}

func (h *RedisHub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	cancel := h.cancel
	h.running = false
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.log.Info("notification hub stopped")
	return nil
}
