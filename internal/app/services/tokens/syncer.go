package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/brickvault/platform/internal/app/system"
	"github.com/brickvault/platform/pkg/logger"
)

var _ system.Service = (*Syncer)(nil)

// Syncer periodically refreshes token metadata and holder balances from the
// node so API reads never block on RPC.
type Syncer struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSyncer creates a lifecycle-managed token syncer.
func NewSyncer(service *Service, interval time.Duration, log *logger.Logger) *Syncer {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewDefault("token-syncer")
	}
	return &Syncer{
		service:  service,
		log:      log,
		interval: interval,
	}
}

func (s *Syncer) Name() string { return "token-syncer" }

func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.Info("token syncer started")
	return nil
}

func (s *Syncer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("token syncer stopped")
	return nil
}

func (s *Syncer) tick(ctx context.Context) {
	if s.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	toks, err := s.service.List(ctx)
	if err != nil {
		s.log.WithError(err).Warn("token syncer tick failed")
		return
	}
	for _, tok := range toks {
		if _, err := s.service.Sync(ctx, tok.ID); err != nil {
			s.log.WithError(err).
				WithField("token_id", tok.ID).
				Warn("token sync failed")
		}
	}
}
