// Package audit records the append-only action trail. Events land in the
// store, in a bounded in-memory ring for cheap recent-activity reads, and
// optionally in a JSONL file sink.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Sink receives every recorded event. Errors are best-effort.
type Sink interface {
	Write(ev audit.Event) error
}

// Service records audit events.
type Service struct {
	store storage.AuditStore
	sink  Sink
	log   *logger.Logger

	mu      sync.Mutex
	recent  []audit.Event
	ringMax int
}

// New constructs an audit service. sink may be nil; ringMax <= 0 keeps 200
// recent events.
func New(store storage.AuditStore, sink Sink, ringMax int, log *logger.Logger) *Service {
	if ringMax <= 0 {
		ringMax = 200
	}
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Service{store: store, sink: sink, ringMax: ringMax, log: log}
}

// Record appends an event. Store failures are returned; ring and sink
// writes never fail the caller.
func (s *Service) Record(ctx context.Context, ev audit.Event) error {
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	stored, err := s.store.AppendEvent(ctx, ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.recent = append(s.recent, stored)
	if len(s.recent) > s.ringMax {
		s.recent = s.recent[len(s.recent)-s.ringMax:]
	}
	s.mu.Unlock()

	if s.sink != nil {
		// Best-effort persistence; keep the request path clean.
		_ = s.sink.Write(stored)
	}
	return nil
}

// Recent returns up to limit of the most recent events from the ring,
// newest first, without touching the store.
func (s *Service) Recent(limit int) []audit.Event {
	if limit <= 0 || limit > s.ringMax {
		limit = s.ringMax
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recent)
	if n > limit {
		n = limit
	}
	out := make([]audit.Event, n)
	for i := 0; i < n; i++ {
		out[i] = s.recent[len(s.recent)-1-i]
	}
	return out
}

// List queries the store, newest first, optionally filtered by entity.
func (s *Service) List(ctx context.Context, entity string, limit int) ([]audit.Event, error) {
	return s.store.ListEvents(ctx, entity, limit)
}

// FileSink appends events as JSONL.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

var _ Sink = (*FileSink)(nil)

// NewFileSink opens path for appending. An empty path returns a nil sink.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(ev audit.Event) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close releases the sink file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
