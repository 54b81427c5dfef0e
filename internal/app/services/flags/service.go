// Package flags implements database-backed feature flags served from a TTL
// cache, with percentage rollouts hashed per subject.
package flags

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// DefaultCacheTTL bounds how stale a served flag may be.
const DefaultCacheTTL = 30 * time.Second

const invalidateChannel = "flag-invalidate"

type cacheEntry struct {
	flag      flag.Flag
	found     bool
	expiresAt time.Time
}

// Service manages feature flags.
type Service struct {
	store storage.FlagStore
	rdb   *redis.Client // optional cross-instance invalidation
	ttl   time.Duration
	log   *logger.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// New constructs a flag service. rdb may be nil for single-instance
// deployments; ttl <= 0 uses DefaultCacheTTL.
func New(store storage.FlagStore, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewDefault("flags")
	}
	return &Service{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
		cache: make(map[string]cacheEntry),
	}
}

// IsEnabled reports whether a flag is on for a subject. Unknown flags are
// disabled. With a rollout percentage set, a stable per-subject hash decides
// so a subject's answer does not flap between requests.
func (s *Service) IsEnabled(ctx context.Context, key, subject string) bool {
	f, found := s.lookup(ctx, key)
	if !found || !f.Enabled {
		return false
	}
	if f.RolloutPercent <= 0 || f.RolloutPercent >= 100 {
		return true
	}
	return bucket(key, subject) < f.RolloutPercent
}

// Upsert creates or replaces a flag and invalidates caches.
func (s *Service) Upsert(ctx context.Context, f flag.Flag) (flag.Flag, error) {
	f.Key = strings.TrimSpace(f.Key)
	if f.Key == "" {
		return flag.Flag{}, fmt.Errorf("key is required")
	}
	if f.RolloutPercent < 0 || f.RolloutPercent > 100 {
		return flag.Flag{}, fmt.Errorf("rollout_percent must be between 0 and 100")
	}

	saved, err := s.store.UpsertFlag(ctx, f)
	if err != nil {
		return flag.Flag{}, err
	}
	s.invalidate(ctx, saved.Key)

	s.log.WithField("key", saved.Key).
		WithField("enabled", saved.Enabled).
		WithField("rollout_percent", saved.RolloutPercent).
		Info("flag upserted")
	return saved, nil
}

// Delete removes a flag and invalidates caches.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.store.DeleteFlag(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	s.log.WithField("key", key).Info("flag deleted")
	return nil
}

// Get returns a single flag, bypassing the cache.
func (s *Service) Get(ctx context.Context, key string) (flag.Flag, error) {
	return s.store.GetFlag(ctx, key)
}

// List returns all flags, bypassing the cache.
func (s *Service) List(ctx context.Context) ([]flag.Flag, error) {
	return s.store.ListFlags(ctx)
}

// Evict drops one key from the local cache. Called by the invalidation
// subscriber when another instance changes a flag.
func (s *Service) Evict(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

func (s *Service) lookup(ctx context.Context, key string) (flag.Flag, bool) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.flag, entry.found
	}

	f, err := s.store.GetFlag(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.WithError(err).WithField("key", key).Warn("flag lookup failed")
		// Serve the stale entry if we have one rather than flipping the
		// flag off during a database blip.
		if ok {
			return entry.flag, entry.found
		}
		return flag.Flag{}, false
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{flag: f, found: found, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return f, found
}

func (s *Service) invalidate(ctx context.Context, key string) {
	s.Evict(key)
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, invalidateChannel, key).Err(); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("flag invalidation publish failed")
	}
}

// bucket maps a key/subject pair to 0..99.
func bucket(key, subject string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	return int(h.Sum32() % 100)
}
