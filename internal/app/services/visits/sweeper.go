package visits

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brickvault/platform/internal/app/system"
	"github.com/brickvault/platform/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Sweeper sends visit reminders on a cron schedule.
type Sweeper struct {
	service  *Service
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a lifecycle-managed reminder sweeper. An empty schedule
// runs every 15 minutes.
func NewSweeper(service *Service, schedule string, log *logger.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@every 15m"
	}
	if log == nil {
		log = logger.NewDefault("visit-sweeper")
	}
	return &Sweeper{
		service:  service,
		log:      log,
		schedule: schedule,
	}
}

func (s *Sweeper) Name() string { return "visit-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sweep() }); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("visit sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("visit sweeper stopped")
	return nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.service.SendReminders(ctx, time.Now()); err != nil {
		s.log.WithError(err).Warn("visit reminder sweep failed")
	}
}
