package flags

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/brickvault/platform/internal/app/system"
	"github.com/brickvault/platform/pkg/logger"
)

var _ system.Service = (*Invalidator)(nil)

// Invalidator evicts locally cached flags when another instance publishes a
// change.
type Invalidator struct {
	service *Service
	rdb     *redis.Client
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewInvalidator creates a lifecycle-managed invalidation subscriber.
func NewInvalidator(service *Service, rdb *redis.Client, log *logger.Logger) *Invalidator {
	if log == nil {
		log = logger.NewDefault("flag-invalidator")
	}
	return &Invalidator{service: service, rdb: rdb, log: log}
}

func (i *Invalidator) Name() string { return "flag-invalidator" }

func (i *Invalidator) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.running = true
	i.mu.Unlock()

	sub := i.rdb.Subscribe(runCtx, invalidateChannel)

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
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
				i.service.Evict(msg.Payload)
			}
		}
	}()

	i.log.Info("flag invalidator started")
	return nil
}

func (i *Invalidator) Stop(ctx context.Context) error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return nil
	}
	cancel := i.cancel
	i.running = false
	i.cancel = nil
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		i.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	i.log.Info("flag invalidator stopped")
	return nil
}
